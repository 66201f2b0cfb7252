package sqlstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/ironvale-labs/dtcforge/pkg/types"
)

// StagedEntityStore implements app/store.StagedEntityStore: the Extract
// stage's non-normalized staging rows (spec §4.9).
type StagedEntityStore struct {
	CommonFields
}

func NewStagedEntityStore(provider SqlProviderAchieve) *StagedEntityStore {
	s := &StagedEntityStore{}
	s.SetProvider(provider)
	s.SetTable(types.TableStagedEntities)
	return s
}

func (s *StagedEntityStore) InsertStagedEntities(ctx context.Context, rows []*types.StagedEntityRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := sq.Insert(s.GetTable()).
		Columns("id", "document_id", "kind", "dtc_code", "text", "payload", "chunk_id", "chunk_trust", "chunk_relevance", "chunk_index", "created_at")
	now := time.Now()
	for _, r := range rows {
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		query = query.Values(r.ID, r.DocumentID, r.Kind, r.DTCCode, r.Text, r.Payload, r.ChunkID, r.ChunkTrust, r.ChunkRelevance, r.ChunkIndex, r.CreatedAt)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *StagedEntityStore) ListStagedEntities(ctx context.Context, documentID string) ([]*types.StagedEntityRow, error) {
	query, args, err := sq.Select("*").From(s.GetTable()).
		Where(sq.Eq{"document_id": documentID}).
		OrderBy("chunk_index ASC").
		ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var rows []*types.StagedEntityRow
	if err = s.GetReplica(ctx).Select(&rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
