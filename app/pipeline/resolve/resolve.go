// Package resolve implements the Resolve stage (spec §4.10): the terminal
// stage that turns a document's staged entities into the normalized
// knowledge graph. It fingerprints and aggregates each entity kind,
// computes the unified score S, links asserted vehicles to their DTCs,
// upserts every knowledge-graph row with provenance, and commits the
// document to `complete` — all inside one transaction, the way
// original_source/workers/conflict/worker.py resolves a single document's
// batch in one pass. Resolve uses no reasoning model, so unlike the other
// stages it only ever hits KindTransient on a database error; there is no
// JSON-parse fallback path here.
package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/ironvale-labs/dtcforge/app/core"
	"github.com/ironvale-labs/dtcforge/pkg/dedupe"
	"github.com/ironvale-labs/dtcforge/pkg/pipelineerr"
	"github.com/ironvale-labs/dtcforge/pkg/scoring"
	"github.com/ironvale-labs/dtcforge/pkg/types"
)

// Do resolves documentID's staged entities into the knowledge graph and
// advances the document to complete. It is a self-advancing stage like
// Crawl (runtime.StageDef.NextStage == "" when wired) — the final
// AdvanceStage call happens inside this function's own transaction rather
// than the generic runtime.advance() step, since Resolve's transaction
// must cover both the upserts and the stage transition atomically.
func Do(ctx context.Context, c *core.Core, documentID string) *pipelineerr.StageError {
	rows, err := c.Store.StagedEntities.ListStagedEntities(ctx, documentID)
	if err != nil {
		return pipelineerr.Transient("resolve.Do", "failed to list staged entities", err)
	}

	entities := make([]types.StagedEntity, 0, len(rows))
	for _, r := range rows {
		entities = append(entities, r.ToStagedEntity())
	}

	err = c.DB.Transaction(ctx, func(ctx context.Context) error {
		return resolveInTransaction(ctx, c, documentID, entities)
	})
	if err != nil {
		return pipelineerr.Transient("resolve.Do", "resolution transaction failed", err)
	}
	return nil
}

func resolveInTransaction(ctx context.Context, c *core.Core, documentID string, entities []types.StagedEntity) error {
	runID := uuid.NewString()

	// A document can reach Resolve with nothing staged at all: every chunk
	// Evaluate saw failed the relevance gate, so Extract never ran (spec §8
	// scenario 3). Nothing was created, but the universal invariant that
	// every staged extraction either lands in the graph or is recorded as
	// rejected still needs a row to point to — there just isn't one to
	// point at an entity, so entity_table/entity_id stay empty.
	if len(entities) == 0 {
		if err := c.Store.Knowledge.AppendResolutionLog(ctx, rejectedLogEntry(runID, documentID)); err != nil {
			return fmt.Errorf("append rejected resolution log: %w", err)
		}
		if err := c.Store.Documents.SetResolutionSummary(ctx, documentID, nil, nil, nil, nil, nil); err != nil {
			return fmt.Errorf("set resolution summary: %w", err)
		}
		return c.Store.Documents.AdvanceStage(ctx, documentID, types.StageComplete)
	}

	vehicleMentions := byKind(entities, types.EntityVehicleMention)
	docVehicle := resolveDocVehicleContext(vehicleMentions)

	dtcMasterIDs := make(map[string]string)
	var confidences []float64

	// DTC master rows are upserted first (full fields) so that a code that
	// also appears in a cause/step/sensor/TSB group resolves to a row with a
	// real description rather than a bare placeholder winning the ON
	// CONFLICT DO NOTHING race; a code that appears only in such groups gets
	// a placeholder from ensureDTCMaster (spec §4.10 Phase E; ordering is an
	// implementation detail, not a deviation from "one transaction per
	// document").
	for _, re := range rank(groupsForKind(entities, types.EntityDTCMaster), docVehicle, vehicleMentions, scoring.KindDiagnosticStep) {
		best := bestMember(re.group.Members)
		dtc := decodeDTC(best)
		row := &types.DTCMaster{
			ID:                 uuid.NewString(),
			Code:               re.group.DTCCode,
			GenericDescription: best.Text,
			Category:           dtc.Category,
			SeverityLevel:      dtc.Severity,
			ConflictFlag:       dedupe.HasValueConflict(re.group.Members, func(e types.StagedEntity) string { return decodeDTC(e).Severity }),
		}
		row.ConfidenceScore = scoring.Confidence(re.agg.EvidenceCount, re.agg.AvgTrust, re.agg.EvidenceCount > 0)
		confidences = append(confidences, row.ConfidenceScore)

		action, err := c.Store.Knowledge.UpsertDTCMaster(ctx, row)
		if err != nil {
			return fmt.Errorf("upsert dtc_master %s: %w", re.group.DTCCode, err)
		}
		dtcMasterIDs[re.group.DTCCode] = row.ID
		if err := recordProvenance(ctx, c, runID, documentID, types.TableDTCMaster.Name(), row.ID, action, re.group.Members); err != nil {
			return err
		}
	}

	if err := resolveCauses(ctx, c, documentID, runID, entities, dtcMasterIDs, docVehicle, vehicleMentions); err != nil {
		return err
	}
	if err := resolveSteps(ctx, c, documentID, runID, entities, dtcMasterIDs, docVehicle, vehicleMentions); err != nil {
		return err
	}
	if err := resolveSensors(ctx, c, documentID, runID, entities, dtcMasterIDs, docVehicle, vehicleMentions); err != nil {
		return err
	}
	if err := resolveTSBs(ctx, c, documentID, runID, entities, dtcMasterIDs, docVehicle, vehicleMentions); err != nil {
		return err
	}
	if err := linkVehicles(ctx, c, vehicleMentions, dtcMasterIDs); err != nil {
		return err
	}

	category := categoryRollup(byKind(entities, types.EntityDocumentCategory))
	var vehicleMake, vehicleModel *string
	var vehicleYear *int
	if docVehicle != nil {
		vehicleMake = &docVehicle.Make
		vehicleModel = &docVehicle.Model
		vehicleYear = &docVehicle.YearStart
	}
	confidence := meanConfidence(confidences)

	if err := c.Store.Documents.SetResolutionSummary(ctx, documentID, category, vehicleMake, vehicleModel, vehicleYear, confidence); err != nil {
		return fmt.Errorf("set resolution summary: %w", err)
	}
	return c.Store.Documents.AdvanceStage(ctx, documentID, types.StageComplete)
}

// rejectedLogEntry builds the single audit row a document with no staged
// entities gets: no entity_table/entity_id since nothing was ever upserted,
// just the rejected action and spec §8's fixed details string.
func rejectedLogEntry(runID, documentID string) *types.ResolutionLogEntry {
	return &types.ResolutionLogEntry{
		ID:         uuid.NewString(),
		RunID:      runID,
		DocumentID: documentID,
		Action:     types.ActionRejected,
		Details:    "no eligible chunks",
	}
}

// meanConfidence is the document-level confidence summary: the mean of
// every DTC this run resolved, or nil when nothing was extracted at all.
func meanConfidence(confidences []float64) *float64 {
	if len(confidences) == 0 {
		return nil
	}
	var sum float64
	for _, v := range confidences {
		sum += v
	}
	mean := sum / float64(len(confidences))
	return &mean
}

func resolveCauses(ctx context.Context, c *core.Core, documentID, runID string, entities []types.StagedEntity, dtcMasterIDs map[string]string, docVehicle *vehicleContext, mentions []types.StagedEntity) error {
	for _, re := range rank(groupsForKind(entities, types.EntityCause), docVehicle, mentions, scoring.KindCause) {
		dtcID, err := ensureDTCMaster(ctx, c, re.group.DTCCode, dtcMasterIDs)
		if err != nil {
			return err
		}
		best := bestMember(re.group.Members)
		row := &types.DTCPossibleCause{
			ID:                uuid.NewString(),
			DTCMasterID:       dtcID,
			Description:       best.Text,
			ProbabilityWeight: scoring.ProbabilityWeight(re.agg.EvidenceCount),
		}
		row.ConflictFlag = dedupe.HasValueConflict(re.group.Members, func(e types.StagedEntity) string { return decodeCause(e).Likelihood })
		action, err := c.Store.Knowledge.UpsertCause(ctx, row)
		if err != nil {
			return fmt.Errorf("upsert cause: %w", err)
		}
		if err := c.Store.Knowledge.RecomputeAggregates(ctx, types.TableDTCPossibleCauses, row.ID); err != nil {
			return fmt.Errorf("recompute cause aggregates: %w", err)
		}
		if err := recordProvenance(ctx, c, runID, documentID, types.TableDTCPossibleCauses.Name(), row.ID, action, re.group.Members); err != nil {
			return err
		}
	}
	return nil
}

func resolveSteps(ctx context.Context, c *core.Core, documentID, runID string, entities []types.StagedEntity, dtcMasterIDs map[string]string, docVehicle *vehicleContext, mentions []types.StagedEntity) error {
	for _, re := range rank(groupsForKind(entities, types.EntityDiagnosticStep), docVehicle, mentions, scoring.KindDiagnosticStep) {
		dtcID, err := ensureDTCMaster(ctx, c, re.group.DTCCode, dtcMasterIDs)
		if err != nil {
			return err
		}
		best := bestMember(re.group.Members)
		step := decodeStep(best)
		row := &types.DTCDiagnosticStep{
			ID:             uuid.NewString(),
			DTCMasterID:    dtcID,
			StepOrder:      step.StepOrder,
			Description:    best.Text,
			ToolsRequired:  step.ToolsRequired,
			ExpectedValues: step.ExpectedValues,
		}
		row.ConflictFlag = dedupe.HasValueConflict(re.group.Members, func(e types.StagedEntity) string { return decodeStep(e).ExpectedValues })
		action, err := c.Store.Knowledge.UpsertDiagnosticStep(ctx, row)
		if err != nil {
			return fmt.Errorf("upsert diagnostic step: %w", err)
		}
		if err := c.Store.Knowledge.RecomputeAggregates(ctx, types.TableDTCDiagnosticSteps, row.ID); err != nil {
			return fmt.Errorf("recompute step aggregates: %w", err)
		}
		if err := recordProvenance(ctx, c, runID, documentID, types.TableDTCDiagnosticSteps.Name(), row.ID, action, re.group.Members); err != nil {
			return err
		}
	}
	return nil
}

func resolveSensors(ctx context.Context, c *core.Core, documentID, runID string, entities []types.StagedEntity, dtcMasterIDs map[string]string, docVehicle *vehicleContext, mentions []types.StagedEntity) error {
	for _, re := range rank(groupsForKind(entities, types.EntityRelatedSensor), docVehicle, mentions, scoring.KindSensor) {
		dtcID, err := ensureDTCMaster(ctx, c, re.group.DTCCode, dtcMasterIDs)
		if err != nil {
			return err
		}
		best := bestMember(re.group.Members)
		sensor := decodeSensor(best)
		row := &types.DTCRelatedSensor{
			ID:           uuid.NewString(),
			DTCMasterID:  dtcID,
			SensorName:   best.Text,
			SensorType:   sensor.SensorType,
			TypicalRange: sensor.TypicalRange,
			Unit:         sensor.Unit,
		}
		row.ConflictFlag = dedupe.HasValueConflict(re.group.Members, func(e types.StagedEntity) string { return decodeSensor(e).TypicalRange })
		action, err := c.Store.Knowledge.UpsertRelatedSensor(ctx, row)
		if err != nil {
			return fmt.Errorf("upsert related sensor: %w", err)
		}
		if err := c.Store.Knowledge.RecomputeAggregates(ctx, types.TableDTCRelatedSensors, row.ID); err != nil {
			return fmt.Errorf("recompute sensor aggregates: %w", err)
		}
		if err := recordProvenance(ctx, c, runID, documentID, types.TableDTCRelatedSensors.Name(), row.ID, action, re.group.Members); err != nil {
			return err
		}
	}
	return nil
}

func resolveTSBs(ctx context.Context, c *core.Core, documentID, runID string, entities []types.StagedEntity, dtcMasterIDs map[string]string, docVehicle *vehicleContext, mentions []types.StagedEntity) error {
	for _, re := range rank(groupsForKind(entities, types.EntityTSBReference), docVehicle, mentions, scoring.KindForumThread) {
		dtcID, err := ensureDTCMaster(ctx, c, re.group.DTCCode, dtcMasterIDs)
		if err != nil {
			return err
		}
		best := bestMember(re.group.Members)
		tsb := decodeTSB(best)
		row := &types.TSBReference{
			ID:             uuid.NewString(),
			DTCMasterID:    dtcID,
			TSBNumber:      best.Text,
			Title:          tsb.Title,
			AffectedModels: tsb.AffectedModels,
			Summary:        tsb.Summary,
		}
		row.ConflictFlag = dedupe.HasValueConflict(re.group.Members, func(e types.StagedEntity) string { return decodeTSB(e).AffectedModels })
		action, err := c.Store.Knowledge.UpsertTSBReference(ctx, row)
		if err != nil {
			return fmt.Errorf("upsert tsb reference: %w", err)
		}
		if err := c.Store.Knowledge.RecomputeAggregates(ctx, types.TableTSBReferences, row.ID); err != nil {
			return fmt.Errorf("recompute tsb aggregates: %w", err)
		}
		if err := recordProvenance(ctx, c, runID, documentID, types.TableTSBReferences.Name(), row.ID, action, re.group.Members); err != nil {
			return err
		}
	}
	return nil
}

// linkVehicles upserts every distinct asserted vehicle and links it to the
// DTC codes its mention named (spec §4.10 Phase D). It runs after the DTC
// master upserts above so every code it needs already has a row.
func linkVehicles(ctx context.Context, c *core.Core, mentions []types.StagedEntity, dtcMasterIDs map[string]string) error {
	for _, group := range groupsByText(mentions) {
		best := bestMember(group)
		veh := decodeVehicle(best)
		if veh.Make == "" && veh.Model == "" {
			continue
		}

		vehicleRow, err := c.Store.Vehicles.UpsertVehicle(ctx, &types.Vehicle{
			ID:        uuid.NewString(),
			Make:      veh.Make,
			Model:     veh.Model,
			YearStart: veh.YearStart,
			YearEnd:   veh.YearEnd,
		})
		if err != nil {
			return fmt.Errorf("upsert vehicle: %w", err)
		}

		for _, m := range group {
			dtcID, err := ensureDTCMaster(ctx, c, m.DTCCode, dtcMasterIDs)
			if err != nil {
				return err
			}
			mv := decodeVehicle(m)
			if err := c.Store.Vehicles.LinkVehicleToDTC(ctx, &types.VehicleDTCLink{
				ID:           uuid.NewString(),
				VehicleID:    vehicleRow.ID,
				DTCMasterID:  dtcID,
				Engine:       mv.Engine,
				Transmission: mv.Transmission,
			}); err != nil {
				return fmt.Errorf("link vehicle to dtc: %w", err)
			}
		}
	}
	return nil
}

// ensureDTCMaster returns the DTC master ID for code, creating a bare
// placeholder row if nothing in this run's dtc_master pass produced one
// (e.g. a cause mentions a code the model never classified in dtc_codes).
// UpsertDTCMaster's ON CONFLICT DO NOTHING means this never clobbers a
// fuller row created earlier in the same transaction or a prior run.
func ensureDTCMaster(ctx context.Context, c *core.Core, code string, dtcMasterIDs map[string]string) (string, error) {
	if id, ok := dtcMasterIDs[code]; ok {
		return id, nil
	}
	row := &types.DTCMaster{ID: uuid.NewString(), Code: code}
	if _, err := c.Store.Knowledge.UpsertDTCMaster(ctx, row); err != nil {
		return "", fmt.Errorf("ensure placeholder dtc_master %s: %w", code, err)
	}
	dtcMasterIDs[code] = row.ID
	return row.ID, nil
}

func recordProvenance(ctx context.Context, c *core.Core, runID, documentID, table, entityID string, action types.ResolutionAction, members []types.StagedEntity) error {
	for _, m := range members {
		if _, err := c.Store.Knowledge.AppendEntitySource(ctx, &types.EntitySource{
			ID:          uuid.NewString(),
			EntityTable: table,
			EntityID:    entityID,
			ChunkID:     m.ChunkID,
			Trust:       m.ChunkTrust,
			Relevance:   m.ChunkRelevance,
		}); err != nil {
			return fmt.Errorf("append entity source: %w", err)
		}
	}
	entityIDCopy := entityID
	return c.Store.Knowledge.AppendResolutionLog(ctx, &types.ResolutionLogEntry{
		ID:          uuid.NewString(),
		RunID:       runID,
		DocumentID:  documentID,
		Action:      action,
		EntityTable: table,
		EntityID:    &entityIDCopy,
	})
}

// resolvedEntity pairs a fingerprint group with its unified score so
// callers can sort before upserting (spec §4.10: reproducible ordering
// for ties, by (S desc, evidence_count desc, avg_trust desc,
// avg_relevance desc, fingerprint asc)).
type resolvedEntity struct {
	group *dedupe.Group
	agg   types.Aggregates
	score float64
}

func rank(groups []*dedupe.Group, docVehicle *vehicleContext, mentions []types.StagedEntity, kind scoring.EntityKind) []resolvedEntity {
	out := make([]resolvedEntity, 0, len(groups))
	for _, g := range groups {
		agg := g.Aggregate()
		match := vehicleMatchForDTC(g.DTCCode, docVehicle, mentions)
		impact := practicalImpactFor(kind, agg)
		s := scoring.UnifiedScore(scoring.ScoreComponents{
			EvidenceQuality:    scoring.EvidenceQualityScore(agg.AvgTrust, agg.AvgRelevance),
			Consensus:          scoring.ConsensusScore(agg.EvidenceCount),
			VehicleSpecificity: scoring.VehicleSpecificityScore(match),
			PracticalImpact:    impact,
		})
		out = append(out, resolvedEntity{group: g, agg: agg, score: s})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		if out[i].agg.EvidenceCount != out[j].agg.EvidenceCount {
			return out[i].agg.EvidenceCount > out[j].agg.EvidenceCount
		}
		if out[i].agg.AvgTrust != out[j].agg.AvgTrust {
			return out[i].agg.AvgTrust > out[j].agg.AvgTrust
		}
		if out[i].agg.AvgRelevance != out[j].agg.AvgRelevance {
			return out[i].agg.AvgRelevance > out[j].agg.AvgRelevance
		}
		return out[i].group.Fingerprint < out[j].group.Fingerprint
	})
	return out
}

// practicalImpactFor computes the Practical Impact component for a group,
// given its kind-specific aggregate. Causes use the probability weight
// directly; diagnostic steps, sensors, and TSB references carry no
// defined practical-impact formula (spec §4.10 only names fixes/parts,
// causes, symptoms, forum threads) so they score 0 on that component.
func practicalImpactFor(kind scoring.EntityKind, agg types.Aggregates) float64 {
	switch kind {
	case scoring.KindCause:
		return scoring.PracticalImpactScore(kind, scoring.ProbabilityWeight(agg.EvidenceCount))
	default:
		return 0
	}
}

// vehicleContext is the document's asserted (make, model, year) window,
// chosen by majority vote across every vehicle mention in the document
// (SPEC_FULL §12's vehicle-linkage rollup).
type vehicleContext struct {
	Make      string
	Model     string
	YearStart int
	YearEnd   int
}

func resolveDocVehicleContext(mentions []types.StagedEntity) *vehicleContext {
	if len(mentions) == 0 {
		return nil
	}

	decoded := make(map[string]vehicleContext)
	key := func(e types.StagedEntity) string {
		v := decodeVehicle(e)
		k := strings.ToLower(v.Make) + "|" + strings.ToLower(v.Model) + "|" + fmt.Sprint(v.YearStart) + "|" + fmt.Sprint(v.YearEnd)
		decoded[k] = vehicleContext{Make: v.Make, Model: v.Model, YearStart: v.YearStart, YearEnd: v.YearEnd}
		return k
	}

	winner := dedupe.MajorityVote(mentions, key)
	if winner == "" {
		return nil
	}
	ctx := decoded[winner]
	return &ctx
}

// vehicleMatchForDTC classifies how specifically code's evidence ties to
// the document's vehicle context (spec §4.10's vehicle-specificity
// component). No vehicle mention for this code at all is treated as
// OEM-agnostic (VehicleNoAssertion), not a contradiction.
func vehicleMatchForDTC(code string, docCtx *vehicleContext, mentions []types.StagedEntity) scoring.VehicleMatch {
	if docCtx == nil {
		return scoring.VehicleNoAssertion
	}

	var related []types.StagedEntity
	for _, m := range mentions {
		if m.DTCCode == code {
			related = append(related, m)
		}
	}
	if len(related) == 0 {
		return scoring.VehicleNoAssertion
	}

	for _, m := range related {
		v := decodeVehicle(m)
		if strings.EqualFold(v.Make, docCtx.Make) && strings.EqualFold(v.Model, docCtx.Model) &&
			v.YearStart == docCtx.YearStart && v.YearEnd == docCtx.YearEnd {
			return scoring.VehicleExactMatch
		}
	}
	for _, m := range related {
		if strings.EqualFold(decodeVehicle(m).Make, docCtx.Make) {
			return scoring.VehicleMakeOnlyMatch
		}
	}
	return scoring.VehicleContradicts
}

// categoryRollup picks the document's overall category by majority vote
// across every chunk's classification (SPEC_FULL §12), tie-broken by
// first-seen chunk order.
func categoryRollup(categoryEntities []types.StagedEntity) *string {
	if len(categoryEntities) == 0 {
		return nil
	}
	winner := dedupe.MajorityVote(categoryEntities, func(e types.StagedEntity) string { return e.Text })
	if winner == "" {
		return nil
	}
	return &winner
}

func byKind(entities []types.StagedEntity, kind types.EntityKind) []types.StagedEntity {
	var out []types.StagedEntity
	for _, e := range entities {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func groupsForKind(entities []types.StagedEntity, kind types.EntityKind) []*dedupe.Group {
	return dedupe.GroupByFingerprint(byKind(entities, kind))
}

// groupsByText clusters vehicle mentions that share the same (make, model)
// text, the fingerprint key Extract gave them, into one vehicle-upsert
// unit each — distinct from groupsForKind only in that callers here need
// the raw []types.StagedEntity slice per cluster, not a *dedupe.Group.
func groupsByText(mentions []types.StagedEntity) [][]types.StagedEntity {
	index := make(map[string]int)
	var out [][]types.StagedEntity
	for _, m := range mentions {
		key := dedupe.Fingerprint(m.Text)
		if i, ok := index[key]; ok {
			out[i] = append(out[i], m)
			continue
		}
		index[key] = len(out)
		out = append(out, []types.StagedEntity{m})
	}
	return out
}

// bestMember picks the group member with the highest trust*relevance
// product to supply the structured fields a fingerprint match doesn't
// itself disambiguate (category, severity, step order, ...), breaking
// ties toward the earliest chunk.
func bestMember(members []types.StagedEntity) types.StagedEntity {
	best := members[0]
	bestScore := best.ChunkTrust * best.ChunkRelevance
	for _, m := range members[1:] {
		score := m.ChunkTrust * m.ChunkRelevance
		if score > bestScore || (score == bestScore && m.ChunkIndex < best.ChunkIndex) {
			best = m
			bestScore = score
		}
	}
	return best
}

func decodeDTC(e types.StagedEntity) types.ExtractedDTC {
	var v types.ExtractedDTC
	decodeRaw(e, &v)
	return v
}

func decodeCause(e types.StagedEntity) types.ExtractedCause {
	var v types.ExtractedCause
	decodeRaw(e, &v)
	return v
}

func decodeStep(e types.StagedEntity) types.ExtractedStep {
	var v types.ExtractedStep
	decodeRaw(e, &v)
	return v
}

func decodeSensor(e types.StagedEntity) types.ExtractedSensor {
	var v types.ExtractedSensor
	decodeRaw(e, &v)
	return v
}

func decodeTSB(e types.StagedEntity) types.ExtractedTSB {
	var v types.ExtractedTSB
	decodeRaw(e, &v)
	return v
}

func decodeVehicle(e types.StagedEntity) types.ExtractedVehicleMention {
	var v types.ExtractedVehicleMention
	decodeRaw(e, &v)
	return v
}

func decodeRaw(e types.StagedEntity, out any) {
	raw, ok := e.Raw.(json.RawMessage)
	if !ok || len(raw) == 0 {
		return
	}
	_ = json.Unmarshal(raw, out)
}
