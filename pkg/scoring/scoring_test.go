package scoring

import "testing"

func TestEvidenceQualityScoreClampsToFifty(t *testing.T) {
	if got := EvidenceQualityScore(1, 1); got != 50 {
		t.Fatalf("expected 50, got %v", got)
	}
	if got := EvidenceQualityScore(0, 0); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestConsensusScoreSaturates(t *testing.T) {
	if got := ConsensusScore(10); got != 20 {
		t.Fatalf("expected 20 at evidence_count=10, got %v", got)
	}
	if got := ConsensusScore(50); got != 20 {
		t.Fatalf("expected clamp at 20, got %v", got)
	}
	if got := ConsensusScore(0); got != 0 {
		t.Fatalf("expected 0 at evidence_count=0, got %v", got)
	}
}

func TestVehicleSpecificityScore(t *testing.T) {
	cases := map[VehicleMatch]float64{
		VehicleExactMatch:    20,
		VehicleMakeOnlyMatch: 12,
		VehicleNoAssertion:   6,
		VehicleContradicts:   -20,
	}
	for match, want := range cases {
		if got := VehicleSpecificityScore(match); got != want {
			t.Fatalf("match %v: want %v, got %v", match, want, got)
		}
	}
}

func TestUnifiedScoreClampsToSpecRange(t *testing.T) {
	// All components maxed should clamp to 100, not overshoot.
	max := ScoreComponents{EvidenceQuality: 50, Consensus: 20, VehicleSpecificity: 20, PracticalImpact: 10}
	if got := UnifiedScore(max); got != 100 {
		t.Fatalf("expected 100, got %v", got)
	}

	// A contradicting vehicle match with no other evidence should floor at -20.
	min := ScoreComponents{EvidenceQuality: 0, Consensus: 0, VehicleSpecificity: -20, PracticalImpact: 0}
	if got := UnifiedScore(min); got != -20 {
		t.Fatalf("expected -20, got %v", got)
	}
}

func TestProbabilityWeightClamps(t *testing.T) {
	if got := ProbabilityWeight(1); got != 0.5 {
		t.Fatalf("expected 0.5 at evidence_count=1, got %v", got)
	}
	if got := ProbabilityWeight(100); got != 1.0 {
		t.Fatalf("expected clamp to 1.0, got %v", got)
	}
}

func TestFrequencyScoreSaturatesAtTen(t *testing.T) {
	if got := FrequencyScore(10); got != 10 {
		t.Fatalf("expected 10, got %v", got)
	}
	if got := FrequencyScore(25); got != 10 {
		t.Fatalf("expected clamp to 10, got %v", got)
	}
}

func TestConfidenceDefaultsAvgTrustWhenNoSources(t *testing.T) {
	got := Confidence(0, 0, false)
	want := 0.3*0 + 0.7*0.5
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestConfidenceSaturatesSourceFactor(t *testing.T) {
	got := Confidence(5, 1.0, true)
	if got != 1.0 {
		t.Fatalf("expected 1.0, got %v", got)
	}
	got2 := Confidence(50, 1.0, true)
	if got2 != 1.0 {
		t.Fatalf("expected clamp to 1.0, got %v", got2)
	}
}

func TestCompletenessSumsPresentWeights(t *testing.T) {
	full := Completeness(CompletenessInputs{
		HasSteps: true, HasCauses: true, HasDescription: true,
		HasSensors: true, HasTSB: true, HasCategory: true, HasSeverity: true,
	})
	if full != 1.0 {
		t.Fatalf("expected full checklist to sum to 1.0, got %v", full)
	}

	empty := Completeness(CompletenessInputs{})
	if empty != 0 {
		t.Fatalf("expected empty checklist to be 0, got %v", empty)
	}

	partial := Completeness(CompletenessInputs{HasSteps: true, HasCauses: true})
	if partial != 0.55 {
		t.Fatalf("expected 0.55, got %v", partial)
	}
}
