package types

import "regexp"

// DTCCodePattern is the canonical DTC lexical form (spec §6). Matching is
// case-insensitive; the canonical stored form is uppercase.
var DTCCodePattern = regexp.MustCompile(`^[PBCUpbcu][0-9A-Fa-f]{4}$`)

// NormalizeDTCCode uppercases and validates a DTC code. Returns ("", false)
// if the code doesn't match the pattern; invalid codes are dropped
// silently by callers per spec §7's logical-invariant-violation policy.
func NormalizeDTCCode(raw string) (string, bool) {
	if !DTCCodePattern.MatchString(raw) {
		return "", false
	}
	upper := []byte(raw)
	for i, b := range upper {
		if b >= 'a' && b <= 'z' {
			upper[i] = b - ('a' - 'A')
		}
	}
	return string(upper), true
}

// Severity is the closed set for DTC severity (spec §6).
type Severity string

const (
	SeverityCritical      Severity = "critical"
	SeverityModerate      Severity = "moderate"
	SeverityMinor         Severity = "minor"
	SeverityInformational Severity = "informational"
)

// Likelihood is the closed set for cause likelihood (spec §6).
type Likelihood string

const (
	LikelihoodHigh   Likelihood = "high"
	LikelihoodMedium Likelihood = "medium"
	LikelihoodLow    Likelihood = "low"
)

// DocumentCategory is the closed set for document_category (spec §6).
type DocumentCategory string

const (
	CategoryRepairProcedure  DocumentCategory = "repair_procedure"
	CategoryDiagnosticGuide  DocumentCategory = "diagnostic_guide"
	CategoryDTCReference     DocumentCategory = "dtc_reference"
	CategoryTSBBulletin      DocumentCategory = "tsb_bulletin"
	CategoryWiringDiagram    DocumentCategory = "wiring_diagram"
	CategoryPartsCatalog     DocumentCategory = "parts_catalog"
	CategoryForumDiscussion  DocumentCategory = "forum_discussion"
	CategoryOwnersManual     DocumentCategory = "owners_manual"
	CategoryRecallNotice     DocumentCategory = "recall_notice"
	CategoryGeneralReference DocumentCategory = "general_reference"
)

// ExtractedDTC is one element of the Extraction JSON contract's dtc_codes array.
type ExtractedDTC struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Severity    string `json:"severity"`
}

// ExtractedCause is one element of the causes array.
type ExtractedCause struct {
	DTCCode     string `json:"dtc_code"`
	Description string `json:"description"`
	Likelihood  string `json:"likelihood"`
}

// ExtractedStep is one element of the diagnostic_steps array.
type ExtractedStep struct {
	DTCCode        string `json:"dtc_code"`
	StepOrder      int    `json:"step_order"`
	Description    string `json:"description"`
	ToolsRequired  string `json:"tools_required"`
	ExpectedValues string `json:"expected_values"`
}

// ExtractedSensor is one element of the sensors array.
type ExtractedSensor struct {
	Name            string   `json:"name"`
	SensorType      string   `json:"sensor_type"`
	TypicalRange    string   `json:"typical_range"`
	Unit            string   `json:"unit"`
	RelatedDTCCodes []string `json:"related_dtc_codes"`
}

// ExtractedTSB is one element of the tsb_references array.
type ExtractedTSB struct {
	TSBNumber       string   `json:"tsb_number"`
	Title           string   `json:"title"`
	AffectedModels  string   `json:"affected_models"`
	RelatedDTCCodes []string `json:"related_dtc_codes"`
	Summary         string   `json:"summary"`
}

// ExtractedVehicleMention is one element of vehicles_mentioned.
type ExtractedVehicleMention struct {
	Make            string   `json:"make"`
	Model           string   `json:"model"`
	YearStart       int      `json:"year_start"`
	YearEnd         int      `json:"year_end"`
	Engine          string   `json:"engine"`
	Transmission    string   `json:"transmission"`
	RelatedDTCCodes []string `json:"related_dtc_codes"`
}

// ExtractionResult is the full parsed shape of the Extract stage's
// reasoning JSON contract (spec §6), for a single chunk.
type ExtractionResult struct {
	DTCCodes           []ExtractedDTC             `json:"dtc_codes"`
	Causes             []ExtractedCause           `json:"causes"`
	DiagnosticSteps    []ExtractedStep            `json:"diagnostic_steps"`
	Sensors            []ExtractedSensor          `json:"sensors"`
	TSBReferences      []ExtractedTSB             `json:"tsb_references"`
	VehiclesMentioned  []ExtractedVehicleMention  `json:"vehicles_mentioned"`
	DocumentCategory   string                     `json:"document_category"`
}

// StagedProvenance is embedded on every staged entity: which chunk it came
// from and that chunk's trust/relevance at extraction time (spec §3).
type StagedProvenance struct {
	ChunkID        string
	ChunkTrust     float64
	ChunkRelevance float64
	ChunkIndex     int
}

// StagedEntity is one extracted element pinned to its source chunk, the
// unit Resolve Phase A groups by fingerprint.
type StagedEntity struct {
	Kind   EntityKind
	Text   string // the fingerprint-eligible free text (description/instruction)
	DTCCode string
	Raw    any // original typed element (ExtractedCause, ExtractedStep, ...)
	StagedProvenance
}

// EntityKind enumerates the knowledge-graph entity kinds Resolve scores
// and upserts (spec §3, §4.10).
type EntityKind string

const (
	EntityDTCMaster      EntityKind = "dtc_master"
	EntityCause          EntityKind = "dtc_possible_causes"
	EntityDiagnosticStep EntityKind = "dtc_diagnostic_steps"
	EntitySymptom        EntityKind = "dtc_symptoms"
	EntityVerifiedFix    EntityKind = "dtc_verified_fixes"
	EntityRelatedPart    EntityKind = "dtc_related_parts"
	EntityRelatedSensor  EntityKind = "dtc_related_sensors"
	EntityLiveDataParam  EntityKind = "dtc_live_data_parameters"
	EntityForumThread    EntityKind = "forum_threads"
	EntityTSBReference   EntityKind = "tsb_references"

	// EntityVehicleMention and EntityDocumentCategory are staging-only
	// kinds: they never upsert into a knowledge-graph table directly.
	// EntityVehicleMention feeds Resolve Phase D's vehicle linking;
	// EntityDocumentCategory feeds the per-document majority-vote rollup
	// (SPEC_FULL §12). Both still ride through staged_entities so a
	// Resolve replay reads them from the same durable source as every
	// other extracted fact.
	EntityVehicleMention   EntityKind = "vehicle_mentions"
	EntityDocumentCategory EntityKind = "document_category"
)
