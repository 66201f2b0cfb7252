// Package scoring implements the shared scoring library (spec §4.10):
// pure functions for the four unified-score components, the DTC
// confidence formula, and the completeness checklist. Grounded in
// original_source/workers/conflict/scorer.py, with the unified-score
// clamp range resolved to spec.md's literal [-20, 100] rather than the
// Python source's [0, 100] (see DESIGN.md's Open Question decisions).
package scoring

import "math"

// VehicleMatch is the closed set of outcomes Phase C's vehicle-specificity
// component reads (spec §4.10).
type VehicleMatch int

const (
	VehicleNoAssertion      VehicleMatch = iota // entity is OEM-agnostic, no make asserted
	VehicleExactMatch                           // exact make/model/year matches document context
	VehicleMakeOnlyMatch                        // only make matches
	VehicleContradicts                          // entity contradicts the document's vehicle context
)

// EntityKind distinguishes which Practical Impact formula applies.
type EntityKind int

const (
	KindFixOrPart EntityKind = iota
	KindCause
	KindSymptom
	KindForumThread
	KindDiagnosticStep
	KindSensor
	KindLiveDataParameter
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// EvidenceQualityScore computes EQS ∈ [0, 50].
func EvidenceQualityScore(avgTrust, avgRelevance float64) float64 {
	return clamp(50*(0.65*avgTrust+0.35*avgRelevance), 0, 50)
}

// ConsensusScore computes CS ∈ [0, 20].
func ConsensusScore(evidenceCount int) float64 {
	if evidenceCount < 0 {
		evidenceCount = 0
	}
	ratio := math.Log(1+float64(evidenceCount)) / math.Log(1+10)
	return 20 * clamp(ratio, 0, 1)
}

// VehicleSpecificityScore computes the −20..+20 component.
func VehicleSpecificityScore(match VehicleMatch) float64 {
	switch match {
	case VehicleExactMatch:
		return 20
	case VehicleMakeOnlyMatch:
		return 12
	case VehicleNoAssertion:
		return 6
	case VehicleContradicts:
		return -20
	default:
		return 0
	}
}

// PracticalImpactScore computes the 0..10 component. The meaning of value
// depends on kind: confirmed-repair count for fixes/parts, probability
// weight for causes, frequency score for symptoms, solutionMarked is read
// from the forum-thread case via value != 0.
func PracticalImpactScore(kind EntityKind, value float64) float64 {
	switch kind {
	case KindFixOrPart:
		confirmedRepairs := value
		return 10 * clamp(math.Log(1+confirmedRepairs)/math.Log(51), 0, 1)
	case KindCause:
		probabilityWeight := value
		return 10 * clamp(probabilityWeight, 0, 1)
	case KindSymptom:
		frequencyScore := value
		return 10 * clamp(frequencyScore/10, 0, 1)
	case KindForumThread:
		if value != 0 {
			return 6
		}
		return 0
	default: // diagnostic steps, sensors, live-data parameters
		return 0
	}
}

// ScoreComponents is the full breakdown behind a unified score S.
type ScoreComponents struct {
	EvidenceQuality     float64
	Consensus           float64
	VehicleSpecificity  float64
	PracticalImpact     float64
}

// UnifiedScore sums the four components and clamps to spec.md's literal
// [-20, 100] range (§4.10).
func UnifiedScore(c ScoreComponents) float64 {
	sum := c.EvidenceQuality + c.Consensus + c.VehicleSpecificity + c.PracticalImpact
	return clamp(sum, -20, 100)
}

// ProbabilityWeight computes the empirical cause probability weight
// (spec §4.10 Phase B), clamped to [0,1] even if the raw formula would
// exceed it (spec §8 boundary behavior).
func ProbabilityWeight(evidenceCount int) float64 {
	return clamp(0.5+0.1*float64(evidenceCount-1), 0, 1)
}

// FrequencyScore computes the symptom frequency score (spec §4.10 Phase B),
// saturating at 10 once evidenceCount reaches 10 (spec §8).
func FrequencyScore(evidenceCount int) float64 {
	if evidenceCount > 10 {
		return 10
	}
	if evidenceCount < 0 {
		return 0
	}
	return float64(evidenceCount)
}

// Confidence computes the shared DTC confidence formula (spec §4.10):
// confidence = min(1, 0.3*min(1, sourceCount/5) + 0.7*avgTrust).
// avgTrust defaults to 0.5 when there are no sources yet, per the Python
// source's COALESCE(..., 0.5) (see DESIGN.md's Open Question decisions);
// callers pass that default explicitly via hasSource=false.
func Confidence(sourceCount int, avgTrust float64, hasSource bool) float64 {
	if !hasSource {
		avgTrust = 0.5
	}
	sourceFactor := clamp(float64(sourceCount)/5.0, 0, 1)
	return clamp(0.3*sourceFactor+0.7*avgTrust, 0, 1)
}

// CompletenessWeights is the fixed checklist weighting (spec §4.10).
var CompletenessWeights = struct {
	Steps, Causes, Description, Sensors, TSB, Category, Severity float64
}{
	Steps: 0.30, Causes: 0.25, Description: 0.15, Sensors: 0.10,
	TSB: 0.10, Category: 0.05, Severity: 0.05,
}

// CompletenessInputs flags which checklist items are present for a DTC.
type CompletenessInputs struct {
	HasSteps, HasCauses, HasDescription, HasSensors, HasTSB, HasCategory, HasSeverity bool
}

// Completeness sums the weights of present checklist items (spec §4.10).
func Completeness(in CompletenessInputs) float64 {
	var sum float64
	w := CompletenessWeights
	if in.HasSteps {
		sum += w.Steps
	}
	if in.HasCauses {
		sum += w.Causes
	}
	if in.HasDescription {
		sum += w.Description
	}
	if in.HasSensors {
		sum += w.Sensors
	}
	if in.HasTSB {
		sum += w.TSB
	}
	if in.HasCategory {
		sum += w.Category
	}
	if in.HasSeverity {
		sum += w.Severity
	}
	return sum
}
