package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// TimeFormat is the fixed-width UTC timestamp layout used for every stored
// timestamp. Fixed nanosecond width keeps lexicographic comparison in SQL
// equal to chronological comparison, which the watermark queries rely on.
const TimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Epoch is the watermark default when a company has no recorded changes yet.
const Epoch = "1970-01-01T00:00:00.000000000Z"

// FormatTime renders t in the stored timestamp layout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

type Company struct {
	ID        string `json:"company_id"`
	Name      string `json:"name"`
	Website   string `json:"website"`
	Domain    string `json:"domain"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type Source struct {
	ID             string `json:"source_id"`
	CompanyID      string `json:"company_id"`
	URL            string `json:"url"`
	SourceType     string `json:"source_type"`
	DiscoveryQuery string `json:"discovery_query,omitempty"`
	FetchedAt      string `json:"fetched_at,omitempty"`
	ContentHash    string `json:"content_hash,omitempty"`
	CleanText      string `json:"clean_text,omitempty"`
}

type Person struct {
	ID             string  `json:"person_id"`
	CompanyID      string  `json:"company_id"`
	Name           string  `json:"name"`
	NormalizedName string  `json:"normalized_name"`
	Role           string  `json:"role"`
	LinkedInURL    *string `json:"linkedin_url"`
	NeedsReview    bool    `json:"needs_review"`
	IsFinal        bool    `json:"is_final"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

type Event struct {
	ID          string `json:"event_id"`
	CompanyID   string `json:"company_id"`
	Type        string `json:"type"`
	Date        string `json:"date,omitempty"` // empty when unknown
	Title       string `json:"title"`
	TitleHash   string `json:"title_hash"`
	Summary     string `json:"summary"`
	NeedsReview bool   `json:"needs_review"`
	IsFinal     bool   `json:"is_final"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Evidence is append-only: rows are inserted once and never touched again.
// The quote was verified to be an exact substring of the producing chunk at
// validation time; it is a historical record, not re-verified after storage.
type Evidence struct {
	ID               string  `json:"evidence_id"`
	ObjectType       string  `json:"object_type"` // "person" or "event"
	ObjectID         string  `json:"object_id"`
	Field            string  `json:"field"`
	Value            string  `json:"value"`
	SourceID         string  `json:"source_id"`
	URL              string  `json:"url"`
	Quote            string  `json:"quote"`
	Confidence       float64 `json:"confidence"`
	ExtractorVersion string  `json:"extractor_version"`
	CreatedAt        string  `json:"created_at"`
}

type Change struct {
	ID         string `json:"change_id"`
	CompanyID  string `json:"company_id"`
	ChangeType string `json:"change_type"`
	ObjectType string `json:"object_type"`
	ObjectID   string `json:"object_id"`
	SourceURL  string `json:"source_url,omitempty"`
	Details    string `json:"details,omitempty"` // JSON object, "" when absent
	DetectedAt string `json:"detected_at"`
}
