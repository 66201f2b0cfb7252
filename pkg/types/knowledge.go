package types

import "time"

// DTCMaster is the canonical row for a single DTC code (spec §3).
type DTCMaster struct {
	ID                 string    `db:"id" json:"id"`
	Code               string    `db:"code" json:"code"`
	GenericDescription string    `db:"generic_description" json:"generic_description"`
	Category           string    `db:"category" json:"category"`
	SeverityLevel      string    `db:"severity_level" json:"severity_level"`
	ConfidenceScore    float64   `db:"confidence_score" json:"confidence_score"`
	ConflictFlag       bool      `db:"conflict_flag" json:"conflict_flag"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// Aggregates holds the evidence/trust/relevance aggregate columns every
// non-reference knowledge-graph row carries (spec §3).
type Aggregates struct {
	EvidenceCount int     `db:"evidence_count" json:"evidence_count"`
	AvgTrust      float64 `db:"avg_trust" json:"avg_trust"`
	AvgRelevance  float64 `db:"avg_relevance" json:"avg_relevance"`
	ConflictFlag  bool    `db:"conflict_flag" json:"conflict_flag"`
}

// DTCPossibleCause is a cause row, keyed by (dtc_master_id, lower(description)).
type DTCPossibleCause struct {
	ID               string    `db:"id" json:"id"`
	DTCMasterID      string    `db:"dtc_master_id" json:"dtc_master_id"`
	Description      string    `db:"description" json:"description"`
	ProbabilityWeight float64  `db:"probability_weight" json:"probability_weight"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
	Aggregates
}

// DTCDiagnosticStep is a diagnostic step row. StepOrder orders steps for a
// given DTC; PassNextStepID/FailNextStepID implement the self-referential
// decision tree (spec §9) as nullable foreign keys, walked one level at a
// time (never eagerly loaded as a full graph).
type DTCDiagnosticStep struct {
	ID             string    `db:"id" json:"id"`
	DTCMasterID    string    `db:"dtc_master_id" json:"dtc_master_id"`
	StepOrder      int       `db:"step_order" json:"step_order"`
	Description    string    `db:"description" json:"description"`
	ToolsRequired  string    `db:"tools_required" json:"tools_required"`
	ExpectedValues string    `db:"expected_values" json:"expected_values"`
	PassNextStepID *string   `db:"pass_next_step_id" json:"pass_next_step_id,omitempty"`
	FailNextStepID *string   `db:"fail_next_step_id" json:"fail_next_step_id,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
	Aggregates
}

// DTCSymptom is a symptom row.
type DTCSymptom struct {
	ID             string    `db:"id" json:"id"`
	DTCMasterID    string    `db:"dtc_master_id" json:"dtc_master_id"`
	Description    string    `db:"description" json:"description"`
	FrequencyScore float64   `db:"frequency_score" json:"frequency_score"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
	Aggregates
}

// DTCVerifiedFix is a verified-fix row, scored by confirmed_repairs.
type DTCVerifiedFix struct {
	ID                string    `db:"id" json:"id"`
	DTCMasterID       string    `db:"dtc_master_id" json:"dtc_master_id"`
	Description       string    `db:"description" json:"description"`
	ConfirmedRepairs  int       `db:"confirmed_repairs" json:"confirmed_repairs"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
	Aggregates
}

// DTCRelatedPart is a reference row looked up/inserted by name.
type DTCRelatedPart struct {
	ID          string    `db:"id" json:"id"`
	DTCMasterID string    `db:"dtc_master_id" json:"dtc_master_id"`
	PartName    string    `db:"part_name" json:"part_name"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	Aggregates
}

// DTCRelatedSensor is a reference row for a sensor tied to a DTC.
type DTCRelatedSensor struct {
	ID           string    `db:"id" json:"id"`
	DTCMasterID  string    `db:"dtc_master_id" json:"dtc_master_id"`
	SensorName   string    `db:"sensor_name" json:"sensor_name"`
	SensorType   string    `db:"sensor_type" json:"sensor_type"`
	TypicalRange string    `db:"typical_range" json:"typical_range"`
	Unit         string    `db:"unit" json:"unit"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	Aggregates
}

// DTCLiveDataParameter is a reference row for a live-data PID tied to a DTC.
type DTCLiveDataParameter struct {
	ID          string    `db:"id" json:"id"`
	DTCMasterID string    `db:"dtc_master_id" json:"dtc_master_id"`
	Name        string    `db:"name" json:"name"`
	TypicalRange string   `db:"typical_range" json:"typical_range"`
	Unit        string    `db:"unit" json:"unit"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	Aggregates
}

// ForumThread is a reference row for a forum discussion tied to a DTC.
type ForumThread struct {
	ID             string    `db:"id" json:"id"`
	DTCMasterID    string    `db:"dtc_master_id" json:"dtc_master_id"`
	Title          string    `db:"title" json:"title"`
	URL            string    `db:"url" json:"url"`
	SolutionMarked bool      `db:"solution_marked" json:"solution_marked"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	Aggregates
}

// TSBReference is a reference row for a technical service bulletin.
type TSBReference struct {
	ID             string    `db:"id" json:"id"`
	DTCMasterID    string    `db:"dtc_master_id" json:"dtc_master_id"`
	TSBNumber      string    `db:"tsb_number" json:"tsb_number"`
	Title          string    `db:"title" json:"title"`
	AffectedModels string    `db:"affected_models" json:"affected_models"`
	Summary        string    `db:"summary" json:"summary"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	Aggregates
}

// EntitySource is an append-only provenance row linking a knowledge-graph
// row back to the chunk that produced it (spec §3).
type EntitySource struct {
	ID            string    `db:"id" json:"id"`
	EntityTable   string    `db:"entity_table" json:"entity_table"`
	EntityID      string    `db:"entity_id" json:"entity_id"`
	ChunkID       string    `db:"chunk_id" json:"chunk_id"`
	Trust         float64   `db:"trust" json:"trust"`
	Relevance     float64   `db:"relevance" json:"relevance"`
	ExtractedAt   time.Time `db:"extracted_at" json:"extracted_at"`
}

// ResolutionAction is the closed set of actions a Resolve run records.
type ResolutionAction string

const (
	ActionCreated ResolutionAction = "created"
	ActionUpdated ResolutionAction = "updated"
	ActionMerged  ResolutionAction = "merged"
	ActionRejected ResolutionAction = "rejected"
)

// ResolutionLogEntry is one row per action taken during a Resolve run
// (spec §3), grouped by RunID.
type ResolutionLogEntry struct {
	ID         string           `db:"id" json:"id"`
	RunID      string           `db:"run_id" json:"run_id"`
	DocumentID string           `db:"document_id" json:"document_id"`
	Action     ResolutionAction `db:"action" json:"action"`
	EntityTable string          `db:"entity_table" json:"entity_table,omitempty"`
	EntityID   *string          `db:"entity_id" json:"entity_id,omitempty"`
	Details    string           `db:"details" json:"details,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
}

// Vehicle is a canonical (make, model, year) row.
type Vehicle struct {
	ID        string    `db:"id" json:"id"`
	Make      string    `db:"make" json:"make"`
	Model     string    `db:"model" json:"model"`
	YearStart int       `db:"year_start" json:"year_start"`
	YearEnd   int       `db:"year_end" json:"year_end"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// VehicleDTCLink is the junction table between vehicles and DTCs.
type VehicleDTCLink struct {
	ID          string    `db:"id" json:"id"`
	VehicleID   string    `db:"vehicle_id" json:"vehicle_id"`
	DTCMasterID string    `db:"dtc_master_id" json:"dtc_master_id"`
	Engine      string    `db:"engine" json:"engine,omitempty"`
	Transmission string   `db:"transmission" json:"transmission,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
