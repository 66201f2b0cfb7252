package types

import (
	"encoding/json"
	"time"
)

// StagedEntityRow is the relational shape of one Extract-stage output row
// (spec §4.9's "source-stage staging tables"): one extracted element
// pinned to its originating chunk, before Resolve groups and upserts it
// into the normalized knowledge graph. Payload carries the kind-specific
// fields (ExtractedCause, ExtractedStep, ...) as JSON since the staging
// table is intentionally non-normalized (spec §4.9: "the non-normalized
// 'refined' area").
type StagedEntityRow struct {
	ID             string          `db:"id" json:"id"`
	DocumentID     string          `db:"document_id" json:"document_id"`
	Kind           EntityKind      `db:"kind" json:"kind"`
	DTCCode        string          `db:"dtc_code" json:"dtc_code"`
	Text           string          `db:"text" json:"text"`
	Payload        json.RawMessage `db:"payload" json:"payload"`
	ChunkID        string          `db:"chunk_id" json:"chunk_id"`
	ChunkTrust     float64         `db:"chunk_trust" json:"chunk_trust"`
	ChunkRelevance float64         `db:"chunk_relevance" json:"chunk_relevance"`
	ChunkIndex     int             `db:"chunk_index" json:"chunk_index"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// ToStagedEntity drops the row's relational bookkeeping and exposes the
// plain value Resolve's dedupe/scoring phases operate over.
func (r StagedEntityRow) ToStagedEntity() StagedEntity {
	return StagedEntity{
		Kind:    r.Kind,
		Text:    r.Text,
		DTCCode: r.DTCCode,
		Raw:     r.Payload,
		StagedProvenance: StagedProvenance{
			ChunkID:        r.ChunkID,
			ChunkTrust:     r.ChunkTrust,
			ChunkRelevance: r.ChunkRelevance,
			ChunkIndex:     r.ChunkIndex,
		},
	}
}
