package dedupe

import (
	"github.com/samber/lo"

	"github.com/ironvale-labs/dtcforge/pkg/types"
)

// Group is one fingerprint cluster of staged entities that resolve to a
// single knowledge-graph row (spec §4.9 Phase A).
type Group struct {
	DTCCode     string
	Fingerprint string
	Members     []types.StagedEntity
}

// GroupByFingerprint buckets entities of a single kind by (dtc_code,
// fingerprint(text)), preserving first-seen order so downstream tie-breaks
// (e.g. document_category majority vote) stay deterministic (spec §4.9,
// SPEC_FULL §12).
func GroupByFingerprint(entities []types.StagedEntity) []*Group {
	index := make(map[string]*Group)
	var order []*Group

	for _, e := range entities {
		key := e.DTCCode + "\x00" + Fingerprint(e.Text)
		g, ok := index[key]
		if !ok {
			g = &Group{DTCCode: e.DTCCode, Fingerprint: Fingerprint(e.Text)}
			index[key] = g
			order = append(order, g)
		}
		g.Members = append(g.Members, e)
	}

	return order
}

// Aggregate computes the evidence_count/avg_trust/avg_relevance triple
// spec §3 attaches to every non-reference knowledge-graph row.
func (g *Group) Aggregate() types.Aggregates {
	n := len(g.Members)
	if n == 0 {
		return types.Aggregates{}
	}

	var trustSum, relevanceSum float64
	for _, m := range g.Members {
		trustSum += m.ChunkTrust
		relevanceSum += m.ChunkRelevance
	}

	return types.Aggregates{
		EvidenceCount: n,
		AvgTrust:      trustSum / float64(n),
		AvgRelevance:  relevanceSum / float64(n),
	}
}

// MajorityVote picks the most frequent value among valueFor(member) across
// the group, breaking ties by first-seen chunk-index order (SPEC_FULL §12).
// Used for document_category and other closed-set attributes that multiple
// chunks may disagree on.
func MajorityVote(members []types.StagedEntity, valueFor func(types.StagedEntity) string) string {
	if len(members) == 0 {
		return ""
	}

	counts := make(map[string]int)
	firstSeenOrder := make(map[string]int)
	firstSeenIndex := make(map[string]int)
	seq := 0

	for _, m := range members {
		v := valueFor(m)
		if v == "" {
			continue
		}
		counts[v]++
		if _, ok := firstSeenOrder[v]; !ok {
			firstSeenOrder[v] = seq
			firstSeenIndex[v] = m.ChunkIndex
			seq++
		}
	}

	best := ""
	bestCount := -1
	bestOrder := 0
	for v, c := range counts {
		if c > bestCount || (c == bestCount && firstSeenOrder[v] < bestOrder) {
			best = v
			bestCount = c
			bestOrder = firstSeenOrder[v]
		}
	}
	return best
}

// HasValueConflict reports whether a closed-set attribute (severity_level,
// category, likelihood, ...) disagrees across a group's members — the
// per-row trigger for conflict_flag (spec §9, DESIGN.md's Open Question
// decision: two values for the same keyed row within a run). Blank values
// (the field wasn't present on that member) don't count as a disagreement;
// only two or more distinct non-blank values do.
func HasValueConflict(members []types.StagedEntity, valueFor func(types.StagedEntity) string) bool {
	values := lo.FilterMap(members, func(m types.StagedEntity, _ int) (string, bool) {
		v := valueFor(m)
		return v, v != ""
	})
	return len(lo.Uniq(values)) > 1
}
