package dedupe

import (
	"testing"

	"github.com/ironvale-labs/dtcforge/pkg/types"
)

func staged(dtc, text string, trust, relevance float64, idx int) types.StagedEntity {
	return types.StagedEntity{
		Kind:    types.EntityCause,
		DTCCode: dtc,
		Text:    text,
		StagedProvenance: types.StagedProvenance{
			ChunkTrust:     trust,
			ChunkRelevance: relevance,
			ChunkIndex:     idx,
		},
	}
}

func TestGroupByFingerprintMergesDuplicates(t *testing.T) {
	entities := []types.StagedEntity{
		staged("P0420", "Faulty O2 sensor", 0.8, 0.9, 0),
		staged("P0420", "faulty o2 sensor.", 0.6, 0.7, 1),
		staged("P0420", "Catalytic converter failure", 0.5, 0.5, 2),
	}

	groups := GroupByFingerprint(entities)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if len(groups[0].Members) != 2 {
		t.Fatalf("expected first group to merge 2 near-duplicate entries, got %d", len(groups[0].Members))
	}
}

func TestAggregateAveragesTrustAndRelevance(t *testing.T) {
	g := &Group{Members: []types.StagedEntity{
		staged("P0420", "x", 1.0, 0.5, 0),
		staged("P0420", "x", 0.0, 1.0, 1),
	}}
	agg := g.Aggregate()
	if agg.EvidenceCount != 2 {
		t.Fatalf("expected evidence_count 2, got %d", agg.EvidenceCount)
	}
	if agg.AvgTrust != 0.5 {
		t.Fatalf("expected avg_trust 0.5, got %v", agg.AvgTrust)
	}
	if agg.AvgRelevance != 0.75 {
		t.Fatalf("expected avg_relevance 0.75, got %v", agg.AvgRelevance)
	}
}

func TestMajorityVoteBreaksTiesByFirstSeen(t *testing.T) {
	members := []types.StagedEntity{
		staged("P0420", "x", 0, 0, 0),
		staged("P0420", "x", 0, 0, 1),
	}
	members[0].Raw = "repair_procedure"
	members[1].Raw = "diagnostic_guide"

	valueFor := func(e types.StagedEntity) string { return e.Raw.(string) }

	got := MajorityVote(members, valueFor)
	if got != "repair_procedure" {
		t.Fatalf("expected tie broken toward first-seen value, got %q", got)
	}
}

func TestMajorityVotePicksMostFrequent(t *testing.T) {
	members := []types.StagedEntity{
		staged("P0420", "x", 0, 0, 0),
		staged("P0420", "x", 0, 0, 1),
		staged("P0420", "x", 0, 0, 2),
	}
	members[0].Raw = "repair_procedure"
	members[1].Raw = "diagnostic_guide"
	members[2].Raw = "diagnostic_guide"

	valueFor := func(e types.StagedEntity) string { return e.Raw.(string) }

	got := MajorityVote(members, valueFor)
	if got != "diagnostic_guide" {
		t.Fatalf("expected most-frequent value, got %q", got)
	}
}

func TestHasValueConflictDetectsDisagreement(t *testing.T) {
	members := []types.StagedEntity{
		staged("P0420", "x", 0, 0, 0),
		staged("P0420", "x", 0, 0, 1),
	}
	members[0].Raw = "critical"
	members[1].Raw = "minor"

	valueFor := func(e types.StagedEntity) string { return e.Raw.(string) }

	if !HasValueConflict(members, valueFor) {
		t.Fatal("expected conflict to be detected")
	}
}

func TestHasValueConflictFalseWhenAgreeing(t *testing.T) {
	members := []types.StagedEntity{
		staged("P0420", "x", 0, 0, 0),
		staged("P0420", "x", 0, 0, 1),
	}
	members[0].Raw = "critical"
	members[1].Raw = "critical"

	valueFor := func(e types.StagedEntity) string { return e.Raw.(string) }

	if HasValueConflict(members, valueFor) {
		t.Fatal("expected no conflict when values agree")
	}
}

func TestHasValueConflictIgnoresBlankValues(t *testing.T) {
	members := []types.StagedEntity{
		staged("P0420", "x", 0, 0, 0),
		staged("P0420", "x", 0, 0, 1),
	}
	members[0].Raw = "critical"
	members[1].Raw = ""

	valueFor := func(e types.StagedEntity) string { return e.Raw.(string) }

	if HasValueConflict(members, valueFor) {
		t.Fatal("expected a blank value to not count as a disagreement")
	}
}
