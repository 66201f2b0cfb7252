package types

import (
	"strings"
	"time"
)

// Chunk is an indexed substring of a document. Immutable once created;
// (DocumentID, Index) is unique (spec §3).
type Chunk struct {
	ID         string    `db:"id" json:"id"`
	DocumentID string    `db:"document_id" json:"document_id"`
	Index      int       `db:"chunk_index" json:"chunk_index"`
	Content    string    `db:"content" json:"content"`
	CharStart  int       `db:"char_start" json:"char_start"`
	CharEnd    int       `db:"char_end" json:"char_end"`
	TokenCount int       `db:"token_count" json:"token_count"`
	Embedding  []float32 `db:"embedding" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AutomotiveDomain is the closed set for ChunkEvaluation.Domain (spec §6).
type AutomotiveDomain string

const (
	DomainOBD          AutomotiveDomain = "obd"
	DomainElectrical   AutomotiveDomain = "electrical"
	DomainEngine       AutomotiveDomain = "engine"
	DomainTransmission AutomotiveDomain = "transmission"
	DomainBrakes       AutomotiveDomain = "brakes"
	DomainSuspension   AutomotiveDomain = "suspension"
	DomainHVAC         AutomotiveDomain = "hvac"
	DomainBody         AutomotiveDomain = "body"
	DomainGeneral      AutomotiveDomain = "general"
	DomainUnknown      AutomotiveDomain = "unknown"
)

var validDomains = map[AutomotiveDomain]struct{}{
	DomainOBD: {}, DomainElectrical: {}, DomainEngine: {}, DomainTransmission: {},
	DomainBrakes: {}, DomainSuspension: {}, DomainHVAC: {}, DomainBody: {},
	DomainGeneral: {}, DomainUnknown: {},
}

// NormalizeDomain returns d if it is one of the closed set, otherwise
// DomainUnknown. Matching is case-insensitive on the input.
func NormalizeDomain(raw string) AutomotiveDomain {
	d := AutomotiveDomain(strings.ToLower(raw))
	if _, ok := validDomains[d]; ok {
		return d
	}
	return DomainUnknown
}

// ChunkEvaluation is one-to-one with a Chunk (spec §3, §4.8).
type ChunkEvaluation struct {
	ChunkID        string           `db:"chunk_id" json:"chunk_id"`
	TrustScore     float64          `db:"trust_score" json:"trust_score"`
	RelevanceScore float64          `db:"relevance_score" json:"relevance_score"`
	Domain         AutomotiveDomain `db:"automotive_domain" json:"automotive_domain"`
	Reasoning      string           `db:"reasoning" json:"reasoning"`
	Model          string           `db:"evaluating_model" json:"evaluating_model"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
}

// EvaluationResult is the parsed shape of the Evaluate stage's reasoning
// JSON contract (spec §6), before it is attached to a chunk ID.
type EvaluationResult struct {
	TrustScore     float64 `json:"trust_score"`
	RelevanceScore float64 `json:"relevance_score"`
	Domain         string  `json:"automotive_domain"`
	Reasoning      string  `json:"reasoning"`
}

// FailedEvaluation is the non-fatal fallback record per spec §4.8 when all
// three JSON parse strategies fail.
func FailedEvaluation() EvaluationResult {
	return EvaluationResult{
		TrustScore:     0,
		RelevanceScore: 0,
		Domain:         string(DomainUnknown),
		Reasoning:      "parse failed",
	}
}
