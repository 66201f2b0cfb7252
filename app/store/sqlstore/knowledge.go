package sqlstore

import (
	"context"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/ironvale-labs/dtcforge/pkg/types"
)

// KnowledgeStore implements app/store.KnowledgeStore: the normalized
// knowledge-graph tables plus their provenance (dtc_entity_sources) and
// audit (resolution_log) trails (spec §3, §4.10). The nine entity-kind
// Upsert methods all go through upsertKeyedRow (INSERT ... ON CONFLICT DO
// NOTHING, then a re-select by natural key), keyed on the column spec §8
// names for that table: `(dtc_master_id, lower(text_field))`, except
// forum threads `(dtc_master_id, url)` and TSB references
// `(dtc_master_id, tsb_number)`.
type KnowledgeStore struct {
	CommonFields
	entitySourceTable   string
	resolutionLogTable string
}

func NewKnowledgeStore(provider SqlProviderAchieve) *KnowledgeStore {
	s := &KnowledgeStore{
		entitySourceTable:  types.TableDTCEntitySources.Name(),
		resolutionLogTable: types.TableResolutionLog.Name(),
	}
	s.SetProvider(provider)
	s.SetTable(types.TableDTCMaster)
	return s
}

func (s *KnowledgeStore) UpsertDTCMaster(ctx context.Context, row *types.DTCMaster) (types.ResolutionAction, error) {
	now := time.Now()
	row.CreatedAt, row.UpdatedAt = now, now

	id, created, err := s.upsertKeyedRow(ctx, s.GetTable(),
		"code",
		"id, code, generic_description, category, severity_level, confidence_score, conflict_flag, created_at, updated_at",
		[]interface{}{row.ID, row.Code, row.GenericDescription, row.Category, row.SeverityLevel, row.ConfidenceScore, row.ConflictFlag, row.CreatedAt, row.UpdatedAt},
		sq.Eq{"code": row.Code})
	if err != nil {
		return "", err
	}
	row.ID = id
	return actionFor(created), nil
}

func (s *KnowledgeStore) GetDTCMasterByCode(ctx context.Context, code string) (*types.DTCMaster, error) {
	query, args, err := sq.Select("*").From(s.GetTable()).Where(sq.Eq{"code": code}).ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}
	var row types.DTCMaster
	if err = s.GetReplica(ctx).Get(&row, query, args...); err != nil {
		return nil, err
	}
	return &row, nil
}

// upsertKeyedRow is the shared shape behind every entity-kind Upsert
// method below: try to insert; ON CONFLICT DO NOTHING; the insert's
// affected-row count tells whether this call created the row or found an
// existing one; then always re-select by the natural key for the row's id.
func (s *KnowledgeStore) upsertKeyedRow(ctx context.Context, table, conflictCols, insertCols string, args []interface{}, selectWhere sq.Eq) (id string, created bool, err error) {
	query := "INSERT INTO " + table + " (" + insertCols + ") VALUES (" + placeholdersFor(len(args)) + ") ON CONFLICT (" + conflictCols + ") DO NOTHING"
	res, execErr := s.GetMaster(ctx).Exec(query, args...)
	if execErr != nil {
		return "", false, execErr
	}
	inserted, raErr := res.RowsAffected()
	if raErr != nil {
		return "", false, raErr
	}

	selQuery, selArgs, buildErr := sq.Select("id", "created_at").From(table).Where(selectWhere).ToSql()
	if buildErr != nil {
		return "", false, ErrorSqlBuild(buildErr)
	}

	var found struct {
		ID        string    `db:"id"`
		CreatedAt time.Time `db:"created_at"`
	}
	if getErr := s.GetReplica(ctx).Get(&found, selQuery, selArgs...); getErr != nil {
		return "", false, getErr
	}

	return found.ID, inserted > 0, nil
}

func placeholdersFor(n int) string {
	out := ""
	for i := 1; i <= n; i++ {
		if i > 1 {
			out += ", "
		}
		out += "$" + strconv.Itoa(i)
	}
	return out
}

func (s *KnowledgeStore) UpsertCause(ctx context.Context, row *types.DTCPossibleCause) (types.ResolutionAction, error) {
	id, created, err := s.upsertKeyedRow(ctx, types.TableDTCPossibleCauses.Name(),
		"dtc_master_id, (lower(description))",
		"id, dtc_master_id, description, probability_weight, conflict_flag, created_at, updated_at",
		[]interface{}{row.ID, row.DTCMasterID, row.Description, row.ProbabilityWeight, row.ConflictFlag, time.Now(), time.Now()},
		sq.Eq{"dtc_master_id": row.DTCMasterID, "lower(description)": lower(row.Description)})
	if err != nil {
		return "", err
	}
	row.ID = id
	return actionFor(created), nil
}

func (s *KnowledgeStore) UpsertDiagnosticStep(ctx context.Context, row *types.DTCDiagnosticStep) (types.ResolutionAction, error) {
	id, created, err := s.upsertKeyedRow(ctx, types.TableDTCDiagnosticSteps.Name(),
		"dtc_master_id, (lower(description))",
		"id, dtc_master_id, step_order, description, tools_required, expected_values, conflict_flag, created_at, updated_at",
		[]interface{}{row.ID, row.DTCMasterID, row.StepOrder, row.Description, row.ToolsRequired, row.ExpectedValues, row.ConflictFlag, time.Now(), time.Now()},
		sq.Eq{"dtc_master_id": row.DTCMasterID, "lower(description)": lower(row.Description)})
	if err != nil {
		return "", err
	}
	row.ID = id
	return actionFor(created), nil
}

func (s *KnowledgeStore) UpsertSymptom(ctx context.Context, row *types.DTCSymptom) (types.ResolutionAction, error) {
	id, created, err := s.upsertKeyedRow(ctx, types.TableDTCSymptoms.Name(),
		"dtc_master_id, (lower(description))",
		"id, dtc_master_id, description, frequency_score, created_at, updated_at",
		[]interface{}{row.ID, row.DTCMasterID, row.Description, row.FrequencyScore, time.Now(), time.Now()},
		sq.Eq{"dtc_master_id": row.DTCMasterID, "lower(description)": lower(row.Description)})
	if err != nil {
		return "", err
	}
	row.ID = id
	return actionFor(created), nil
}

func (s *KnowledgeStore) UpsertVerifiedFix(ctx context.Context, row *types.DTCVerifiedFix) (types.ResolutionAction, error) {
	id, created, err := s.upsertKeyedRow(ctx, types.TableDTCVerifiedFixes.Name(),
		"dtc_master_id, (lower(description))",
		"id, dtc_master_id, description, confirmed_repairs, created_at, updated_at",
		[]interface{}{row.ID, row.DTCMasterID, row.Description, row.ConfirmedRepairs, time.Now(), time.Now()},
		sq.Eq{"dtc_master_id": row.DTCMasterID, "lower(description)": lower(row.Description)})
	if err != nil {
		return "", err
	}
	row.ID = id
	return actionFor(created), nil
}

func (s *KnowledgeStore) UpsertRelatedPart(ctx context.Context, row *types.DTCRelatedPart) (types.ResolutionAction, error) {
	id, created, err := s.upsertKeyedRow(ctx, types.TableDTCRelatedParts.Name(),
		"dtc_master_id, (lower(part_name))",
		"id, dtc_master_id, part_name, created_at",
		[]interface{}{row.ID, row.DTCMasterID, row.PartName, time.Now()},
		sq.Eq{"dtc_master_id": row.DTCMasterID, "lower(part_name)": lower(row.PartName)})
	if err != nil {
		return "", err
	}
	row.ID = id
	return actionFor(created), nil
}

func (s *KnowledgeStore) UpsertRelatedSensor(ctx context.Context, row *types.DTCRelatedSensor) (types.ResolutionAction, error) {
	id, created, err := s.upsertKeyedRow(ctx, types.TableDTCRelatedSensors.Name(),
		"dtc_master_id, (lower(sensor_name))",
		"id, dtc_master_id, sensor_name, sensor_type, typical_range, unit, conflict_flag, created_at",
		[]interface{}{row.ID, row.DTCMasterID, row.SensorName, row.SensorType, row.TypicalRange, row.Unit, row.ConflictFlag, time.Now()},
		sq.Eq{"dtc_master_id": row.DTCMasterID, "lower(sensor_name)": lower(row.SensorName)})
	if err != nil {
		return "", err
	}
	row.ID = id
	return actionFor(created), nil
}

func (s *KnowledgeStore) UpsertLiveDataParameter(ctx context.Context, row *types.DTCLiveDataParameter) (types.ResolutionAction, error) {
	id, created, err := s.upsertKeyedRow(ctx, types.TableDTCLiveDataParameters.Name(),
		"dtc_master_id, (lower(name))",
		"id, dtc_master_id, name, typical_range, unit, created_at",
		[]interface{}{row.ID, row.DTCMasterID, row.Name, row.TypicalRange, row.Unit, time.Now()},
		sq.Eq{"dtc_master_id": row.DTCMasterID, "lower(name)": lower(row.Name)})
	if err != nil {
		return "", err
	}
	row.ID = id
	return actionFor(created), nil
}

func (s *KnowledgeStore) UpsertForumThread(ctx context.Context, row *types.ForumThread) (types.ResolutionAction, error) {
	id, created, err := s.upsertKeyedRow(ctx, types.TableForumThreads.Name(),
		"dtc_master_id, url",
		"id, dtc_master_id, title, url, solution_marked, created_at",
		[]interface{}{row.ID, row.DTCMasterID, row.Title, row.URL, row.SolutionMarked, time.Now()},
		sq.Eq{"dtc_master_id": row.DTCMasterID, "url": row.URL})
	if err != nil {
		return "", err
	}
	row.ID = id
	return actionFor(created), nil
}

func (s *KnowledgeStore) UpsertTSBReference(ctx context.Context, row *types.TSBReference) (types.ResolutionAction, error) {
	id, created, err := s.upsertKeyedRow(ctx, types.TableTSBReferences.Name(),
		"dtc_master_id, tsb_number",
		"id, dtc_master_id, tsb_number, title, affected_models, summary, conflict_flag, created_at",
		[]interface{}{row.ID, row.DTCMasterID, row.TSBNumber, row.Title, row.AffectedModels, row.Summary, row.ConflictFlag, time.Now()},
		sq.Eq{"dtc_master_id": row.DTCMasterID, "tsb_number": row.TSBNumber})
	if err != nil {
		return "", err
	}
	row.ID = id
	return actionFor(created), nil
}

func (s *KnowledgeStore) AppendEntitySource(ctx context.Context, row *types.EntitySource) (bool, error) {
	if row.ExtractedAt.IsZero() {
		row.ExtractedAt = time.Now()
	}
	query, args, err := sq.Insert(s.entitySourceTable).
		Columns("id", "entity_table", "entity_id", "chunk_id", "trust", "relevance", "extracted_at").
		Values(row.ID, row.EntityTable, row.EntityID, row.ChunkID, row.Trust, row.Relevance, row.ExtractedAt).
		Suffix("ON CONFLICT (entity_table, entity_id, chunk_id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, ErrorSqlBuild(err)
	}
	res, err := s.GetMaster(ctx).Exec(query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *KnowledgeStore) AppendResolutionLog(ctx context.Context, row *types.ResolutionLogEntry) error {
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	query, args, err := sq.Insert(s.resolutionLogTable).
		Columns("id", "run_id", "document_id", "action", "entity_table", "entity_id", "details", "created_at").
		Values(row.ID, row.RunID, row.DocumentID, row.Action, row.EntityTable, row.EntityID, row.Details, row.CreatedAt).
		ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(query, args...)
	return err
}

// RecomputeAggregates recomputes evidence_count/avg_trust/avg_relevance for
// one knowledge-graph row from its full dtc_entity_sources history (spec
// §8: a Resolve replay must not double-count evidence already recorded by
// a prior run). Tables whose score derives directly from evidence_count
// (dtc_possible_causes' probability_weight, dtc_symptoms' frequency_score)
// get that column recomputed in the same statement, from the same
// evidence_count this call just refreshed, using the identical clamped
// formulas as pkg/scoring.ProbabilityWeight / pkg/scoring.FrequencyScore
// expressed as SQL so the two never drift: a second Resolve run contributing
// evidence to an already-merged cause or symptom must land those fields at
// the same value scoring.go would compute, not the stale figure from the
// row's first insert.
func (s *KnowledgeStore) RecomputeAggregates(ctx context.Context, table types.TableName, entityID string) error {
	extra := ""
	switch table {
	case types.TableDTCPossibleCauses:
		extra = `,
		probability_weight = GREATEST(0, LEAST(1, 0.5 + 0.1 * (agg.evidence_count - 1)))`
	case types.TableDTCSymptoms:
		extra = `,
		frequency_score = LEAST(10, GREATEST(0, agg.evidence_count))`
	}

	query := `UPDATE ` + table.Name() + ` t SET
		evidence_count = agg.evidence_count,
		avg_trust = agg.avg_trust,
		avg_relevance = agg.avg_relevance` + extra + `
		FROM (
			SELECT COUNT(*) AS evidence_count, AVG(trust) AS avg_trust, AVG(relevance) AS avg_relevance
			FROM ` + s.entitySourceTable + `
			WHERE entity_table = $1 AND entity_id = $2
		) agg
		WHERE t.id = $2`

	_, err := s.GetMaster(ctx).Exec(query, table.Name(), entityID)
	return err
}

func actionFor(created bool) types.ResolutionAction {
	if created {
		return types.ActionCreated
	}
	return types.ActionUpdated
}

func lower(s string) string {
	// Matches Postgres lower() for the ASCII case this corpus's automotive
	// text is written in; the SQL-side lower() in the conflict key is the
	// authoritative comparison, this is only used to build this call's own
	// WHERE clause value.
	out := []byte(s)
	for i, b := range out {
		if b >= 'A' && b <= 'Z' {
			out[i] = b + ('a' - 'A')
		}
	}
	return string(out)
}
