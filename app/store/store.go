// Package store declares the repository interfaces stage workers depend
// on, following the teacher's app/store contract-vs-implementation split
// (interfaces here, jmoiron/sqlx + Masterminds/squirrel implementations in
// app/store/sqlstore) so a worker can be tested against a fake without
// touching Postgres.
package store

import (
	"context"

	"github.com/ironvale-labs/dtcforge/pkg/types"
)

// DocumentStore owns Document, CrawlRequest, and ProcessingLogEntry rows
// (spec §3).
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *types.Document) error
	GetDocument(ctx context.Context, id string) (*types.Document, error)
	GetDocumentByContentHash(ctx context.Context, hash string) (*types.Document, error)
	AdvanceStage(ctx context.Context, id string, next types.DocumentStage) error
	MarkError(ctx context.Context, id string, message string) error
	SetChunkCount(ctx context.Context, id string, count int) error
	ListStuckSince(ctx context.Context, stage types.DocumentStage, olderThan int64) ([]*types.Document, error)

	// SetResolutionSummary persists Resolve's per-document rollup (spec
	// §4.10 Phase F): majority-vote category, winning vehicle context, and
	// overall confidence score. Any of category/make/model/year/confidence
	// may be nil when nothing was extracted to support it.
	SetResolutionSummary(ctx context.Context, id string, category *string, vehicleMake *string, vehicleModel *string, vehicleYear *int, confidenceScore *float64) error

	CreateCrawlRequest(ctx context.Context, req *types.CrawlRequest) error
	GetCrawlRequest(ctx context.Context, id string) (*types.CrawlRequest, error)
	MarkCrawlRequestFailed(ctx context.Context, id string, reason string) error
	MarkCrawlRequestDone(ctx context.Context, id string, documentID string) error

	AppendProcessingLog(ctx context.Context, entry *types.ProcessingLogEntry) error
}

// ChunkStore owns Chunk and ChunkEvaluation rows (spec §3).
type ChunkStore interface {
	CreateChunks(ctx context.Context, chunks []*types.Chunk) error
	ListChunks(ctx context.Context, documentID string) ([]*types.Chunk, error)
	SetEmbedding(ctx context.Context, chunkID string, embedding []float32) error
	UpsertEvaluation(ctx context.Context, eval *types.ChunkEvaluation) error
	GetEvaluation(ctx context.Context, chunkID string) (*types.ChunkEvaluation, error)
	ListEligibleForExtraction(ctx context.Context, documentID string, relevanceGate float64) ([]*types.Chunk, error)
}

// StagedEntityStore owns the Extract stage's staging rows (spec §4.9).
type StagedEntityStore interface {
	InsertStagedEntities(ctx context.Context, rows []*types.StagedEntityRow) error
	ListStagedEntities(ctx context.Context, documentID string) ([]*types.StagedEntityRow, error)
}

// KnowledgeStore owns the normalized knowledge-graph tables and their
// provenance/audit trails (spec §4.10).
type KnowledgeStore interface {
	UpsertDTCMaster(ctx context.Context, row *types.DTCMaster) (action types.ResolutionAction, err error)
	GetDTCMasterByCode(ctx context.Context, code string) (*types.DTCMaster, error)

	UpsertCause(ctx context.Context, row *types.DTCPossibleCause) (action types.ResolutionAction, err error)
	UpsertDiagnosticStep(ctx context.Context, row *types.DTCDiagnosticStep) (action types.ResolutionAction, err error)
	UpsertSymptom(ctx context.Context, row *types.DTCSymptom) (action types.ResolutionAction, err error)
	UpsertVerifiedFix(ctx context.Context, row *types.DTCVerifiedFix) (action types.ResolutionAction, err error)
	UpsertRelatedPart(ctx context.Context, row *types.DTCRelatedPart) (action types.ResolutionAction, err error)
	UpsertRelatedSensor(ctx context.Context, row *types.DTCRelatedSensor) (action types.ResolutionAction, err error)
	UpsertLiveDataParameter(ctx context.Context, row *types.DTCLiveDataParameter) (action types.ResolutionAction, err error)
	UpsertForumThread(ctx context.Context, row *types.ForumThread) (action types.ResolutionAction, err error)
	UpsertTSBReference(ctx context.Context, row *types.TSBReference) (action types.ResolutionAction, err error)

	AppendEntitySource(ctx context.Context, row *types.EntitySource) (inserted bool, err error)
	AppendResolutionLog(ctx context.Context, row *types.ResolutionLogEntry) error

	// RecomputeAggregates recomputes evidence_count/avg_trust/avg_relevance
	// for one knowledge-graph row from its full entity_source history (not
	// just the current Resolve run's batch), so replaying the same batch
	// never double-counts (spec §8: "evidence_count does not double on
	// replay of the same (chunk_id, entity) pair").
	RecomputeAggregates(ctx context.Context, table types.TableName, entityID string) error
}

// VehicleStore owns Vehicle and VehicleDTCLink rows (spec §4.10 Phase D).
type VehicleStore interface {
	UpsertVehicle(ctx context.Context, v *types.Vehicle) (*types.Vehicle, error)
	LinkVehicleToDTC(ctx context.Context, link *types.VehicleDTCLink) error
}
