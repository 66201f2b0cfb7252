package sqlstore

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/ironvale-labs/dtcforge/pkg/types"
)

// DocumentStore implements app/store.DocumentStore: Document, CrawlRequest,
// and ProcessingLogEntry rows (spec §3). Grounded in the teacher's
// knowledge.go store — same CommonFields/squirrel idiom, generalized to the
// document lifecycle's stage-transition columns instead of chat knowledge
// rows.
type DocumentStore struct {
	CommonFields
	crawlTable string
	logTable   string
}

func NewDocumentStore(provider SqlProviderAchieve) *DocumentStore {
	s := &DocumentStore{crawlTable: types.TableCrawlRequests.Name(), logTable: types.TableProcessingLog.Name()}
	s.SetProvider(provider)
	s.SetTable(types.TableDocuments)
	return s
}

func (s *DocumentStore) CreateDocument(ctx context.Context, doc *types.Document) error {
	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	query, args, err := sq.Insert(s.GetTable()).
		Columns("id", "title", "source_url", "content_hash", "mime_type", "blob_bucket", "blob_key",
			"processing_stage", "chunk_count", "created_at", "updated_at").
		Values(doc.ID, doc.Title, doc.SourceURL, doc.ContentHash, doc.MimeType, doc.BlobBucket, doc.BlobKey,
			doc.ProcessingStage, doc.ChunkCount, doc.CreatedAt, doc.UpdatedAt).
		ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(query, args...)
	return err
}

func (s *DocumentStore) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	query, args, err := sq.Select("*").From(s.GetTable()).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var doc types.Document
	if err = s.GetReplica(ctx).Get(&doc, query, args...); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *DocumentStore) GetDocumentByContentHash(ctx context.Context, hash string) (*types.Document, error) {
	query, args, err := sq.Select("*").From(s.GetTable()).Where(sq.Eq{"content_hash": hash}).ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var doc types.Document
	if err = s.GetReplica(ctx).Get(&doc, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

// AdvanceStage performs the stage-column transition in §4.4's do_stage
// transaction; the caller commits/pushes the next queue entry separately.
func (s *DocumentStore) AdvanceStage(ctx context.Context, id string, next types.DocumentStage) error {
	query, args, err := sq.Update(s.GetTable()).
		Set("processing_stage", next).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(query, args...)
	return err
}

// SetResolutionSummary persists Resolve's per-document rollup (spec §4.10
// Phase F) in the same update as the rest of the Resolve transaction.
func (s *DocumentStore) SetResolutionSummary(ctx context.Context, id string, category *string, vehicleMake *string, vehicleModel *string, vehicleYear *int, confidenceScore *float64) error {
	query, args, err := sq.Update(s.GetTable()).
		Set("document_category", category).
		Set("vehicle_make", vehicleMake).
		Set("vehicle_model", vehicleModel).
		Set("vehicle_year", vehicleYear).
		Set("confidence_score", confidenceScore).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(query, args...)
	return err
}

func (s *DocumentStore) MarkError(ctx context.Context, id string, message string) error {
	query, args, err := sq.Update(s.GetTable()).
		Set("processing_stage", types.StageError).
		Set("error_message", message).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(query, args...)
	return err
}

func (s *DocumentStore) SetChunkCount(ctx context.Context, id string, count int) error {
	query, args, err := sq.Update(s.GetTable()).
		Set("chunk_count", count).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(query, args...)
	return err
}

// ListStuckSince backs the reaper (spec §9's open question): documents
// whose processing_stage has not advanced in longer than the configured
// threshold, and which are not yet terminal.
func (s *DocumentStore) ListStuckSince(ctx context.Context, stage types.DocumentStage, olderThan int64) ([]*types.Document, error) {
	cutoff := time.Unix(olderThan, 0)
	query, args, err := sq.Select("*").From(s.GetTable()).
		Where(sq.Eq{"processing_stage": stage}).
		Where(sq.Lt{"updated_at": cutoff}).
		ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var docs []*types.Document
	if err = s.GetReplica(ctx).Select(&docs, query, args...); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *DocumentStore) CreateCrawlRequest(ctx context.Context, req *types.CrawlRequest) error {
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	query, args, err := sq.Insert(s.crawlTable).
		Columns("id", "url", "status", "depth", "max_depth", "parent_url", "created_at").
		Values(req.ID, req.URL, req.Status, req.Depth, req.MaxDepth, req.ParentURL, req.CreatedAt).
		ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(query, args...)
	return err
}

func (s *DocumentStore) GetCrawlRequest(ctx context.Context, id string) (*types.CrawlRequest, error) {
	query, args, err := sq.Select("*").From(s.crawlTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}
	var req types.CrawlRequest
	if err = s.GetReplica(ctx).Get(&req, query, args...); err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *DocumentStore) MarkCrawlRequestFailed(ctx context.Context, id string, reason string) error {
	query, args, err := sq.Update(s.crawlTable).
		Set("status", types.CrawlStatusFailed).
		Set("error_message", reason).
		Set("completed_at", time.Now()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(query, args...)
	return err
}

func (s *DocumentStore) MarkCrawlRequestDone(ctx context.Context, id string, documentID string) error {
	query, args, err := sq.Update(s.crawlTable).
		Set("status", types.CrawlStatusCompleted).
		Set("completed_at", time.Now()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(query, args...)
	return err
}

func (s *DocumentStore) AppendProcessingLog(ctx context.Context, entry *types.ProcessingLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	query, args, err := sq.Insert(s.logTable).
		Columns("id", "document_id", "stage", "status", "message", "duration_ms", "created_at").
		Values(entry.ID, entry.DocumentID, entry.Stage, entry.Status, entry.Message, entry.DurationMS, entry.CreatedAt).
		ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(query, args...)
	return err
}
