package types

import "time"

// Document is a single ingested source: a crawled page or a directly
// submitted text. See spec §3.
type Document struct {
	ID             string        `db:"id" json:"id"`
	Title          string        `db:"title" json:"title"`
	SourceURL      string        `db:"source_url" json:"source_url,omitempty"`
	ContentHash    string        `db:"content_hash" json:"content_hash"`
	MimeType       string        `db:"mime_type" json:"mime_type"`
	BlobBucket     string        `db:"blob_bucket" json:"blob_bucket"`
	BlobKey        string        `db:"blob_key" json:"blob_key"`
	ProcessingStage DocumentStage `db:"processing_stage" json:"processing_stage"`
	ErrorMessage   *string       `db:"error_message" json:"error_message,omitempty"`
	ChunkCount     int           `db:"chunk_count" json:"chunk_count"`
	Category       *string       `db:"document_category" json:"document_category,omitempty"`
	VehicleMake    *string       `db:"vehicle_make" json:"vehicle_make,omitempty"`
	VehicleModel   *string       `db:"vehicle_model" json:"vehicle_model,omitempty"`
	VehicleYear    *int          `db:"vehicle_year" json:"vehicle_year,omitempty"`
	ConfidenceScore *float64     `db:"confidence_score" json:"confidence_score,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// CrawlRequestStatus mirrors spec §3's CrawlRequest status closed set.
type CrawlRequestStatus string

const (
	CrawlStatusPending   CrawlRequestStatus = "pending"
	CrawlStatusActive    CrawlRequestStatus = "active"
	CrawlStatusCompleted CrawlRequestStatus = "completed"
	CrawlStatusFailed    CrawlRequestStatus = "failed"
)

// CrawlRequest is a row in the crawl queue table — not to be confused with
// the Redis job queue. One row per URL to fetch.
type CrawlRequest struct {
	ID           string             `db:"id" json:"id"`
	URL          string             `db:"url" json:"url"`
	Status       CrawlRequestStatus `db:"status" json:"status"`
	Depth        int                `db:"depth" json:"depth"`
	MaxDepth     int                `db:"max_depth" json:"max_depth"`
	ParentURL    *string            `db:"parent_url" json:"parent_url,omitempty"`
	ErrorMessage *string            `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
	CompletedAt  *time.Time         `db:"completed_at" json:"completed_at,omitempty"`
}

// ProcessingLogStatus is the status closed set for ProcessingLogEntry.
type ProcessingLogStatus string

const (
	ProcessingStarted   ProcessingLogStatus = "started"
	ProcessingCompleted ProcessingLogStatus = "completed"
	ProcessingError     ProcessingLogStatus = "error"
)

// ProcessingLogEntry is one row per stage attempt per document (spec §3).
type ProcessingLogEntry struct {
	ID         string              `db:"id" json:"id"`
	DocumentID string              `db:"document_id" json:"document_id"`
	Stage      string              `db:"stage" json:"stage"`
	Status     ProcessingLogStatus `db:"status" json:"status"`
	Message    string              `db:"message" json:"message,omitempty"`
	DurationMS *int64              `db:"duration_ms" json:"duration_ms,omitempty"`
	CreatedAt  time.Time           `db:"created_at" json:"created_at"`
}
