package sqlstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pgvector/pgvector-go"

	"github.com/ironvale-labs/dtcforge/pkg/types"
)

// ChunkStore implements app/store.ChunkStore: Chunk and ChunkEvaluation
// rows (spec §3, §4.7, §4.8). Grounded in the teacher's vector.go for the
// pgvector.Vector column handling.
type ChunkStore struct {
	CommonFields
	evalTable string
}

func NewChunkStore(provider SqlProviderAchieve) *ChunkStore {
	s := &ChunkStore{evalTable: types.TableChunkEvaluations.Name()}
	s.SetProvider(provider)
	s.SetTable(types.TableChunks)
	return s
}

func (s *ChunkStore) CreateChunks(ctx context.Context, chunks []*types.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	query := sq.Insert(s.GetTable()).
		Columns("id", "document_id", "chunk_index", "content", "char_start", "char_end", "token_count", "created_at")
	now := time.Now()
	for _, c := range chunks {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		query = query.Values(c.ID, c.DocumentID, c.Index, c.Content, c.CharStart, c.CharEnd, c.TokenCount, c.CreatedAt)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *ChunkStore) ListChunks(ctx context.Context, documentID string) ([]*types.Chunk, error) {
	query, args, err := sq.Select("*").From(s.GetTable()).
		Where(sq.Eq{"document_id": documentID}).
		OrderBy("chunk_index ASC").
		ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var chunks []*types.Chunk
	if err = s.GetReplica(ctx).Select(&chunks, query, args...); err != nil {
		return nil, err
	}
	return chunks, nil
}

// SetEmbedding stores the chunk's vector via pgvector-go's wire type,
// keeping the []float32 representation in pkg/types free of a third-party
// dependency leaking into the domain model.
func (s *ChunkStore) SetEmbedding(ctx context.Context, chunkID string, embedding []float32) error {
	query, args, err := sq.Update(s.GetTable()).
		Set("embedding", pgvector.NewVector(embedding)).
		Where(sq.Eq{"id": chunkID}).
		ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(query, args...)
	return err
}

func (s *ChunkStore) UpsertEvaluation(ctx context.Context, eval *types.ChunkEvaluation) error {
	if eval.CreatedAt.IsZero() {
		eval.CreatedAt = time.Now()
	}

	query, args, err := sq.Insert(s.evalTable).
		Columns("chunk_id", "trust_score", "relevance_score", "automotive_domain", "reasoning", "evaluating_model", "created_at").
		Values(eval.ChunkID, eval.TrustScore, eval.RelevanceScore, eval.Domain, eval.Reasoning, eval.Model, eval.CreatedAt).
		Suffix("ON CONFLICT (chunk_id) DO UPDATE SET trust_score = EXCLUDED.trust_score, relevance_score = EXCLUDED.relevance_score, automotive_domain = EXCLUDED.automotive_domain, reasoning = EXCLUDED.reasoning, evaluating_model = EXCLUDED.evaluating_model").
		ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = s.GetMaster(ctx).Exec(query, args...)
	return err
}

// GetEvaluation fetches one chunk's evaluation row, used by Extract to
// carry the chunk's trust/relevance onto every entity it stages.
func (s *ChunkStore) GetEvaluation(ctx context.Context, chunkID string) (*types.ChunkEvaluation, error) {
	query, args, err := sq.Select("*").From(s.evalTable).Where(sq.Eq{"chunk_id": chunkID}).ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}
	var eval types.ChunkEvaluation
	if err = s.GetReplica(ctx).Get(&eval, query, args...); err != nil {
		return nil, err
	}
	return &eval, nil
}

// ListEligibleForExtraction returns chunks whose relevance_score clears the
// gate (spec §4.9: `relevance_score >= 0.3`, inclusive).
func (s *ChunkStore) ListEligibleForExtraction(ctx context.Context, documentID string, relevanceGate float64) ([]*types.Chunk, error) {
	query, args, err := sq.Select("c.*").
		From(s.GetTable() + " c").
		Join(s.evalTable + " e ON e.chunk_id = c.id").
		Where(sq.Eq{"c.document_id": documentID}).
		Where(sq.GtOrEq{"e.relevance_score": relevanceGate}).
		OrderBy("c.chunk_index ASC").
		ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var chunks []*types.Chunk
	if err = s.GetReplica(ctx).Select(&chunks, query, args...); err != nil {
		return nil, err
	}
	return chunks, nil
}
