package workspace

import (
	"strings"
	"time"
)

// Status tracks an item through the pipeline. Transitions are monotonic:
// pending to processing to completed or failed. A processing status never
// survives a document load.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// Kind classifies what a discovered file is and therefore how it reaches a
// vision model.
type Kind string

const (
	KindImage      Kind = "image"
	KindHEIC       Kind = "heic"
	KindVideo      Kind = "video"
	KindVideoFrame Kind = "video_frame"
)

// DescriptionRecord is one provider attempt against one item. Every attempt
// is appended, failures included, so the document is a full history of the
// run. Text == "" with Error == "" is a legal empty-content completion.
type DescriptionRecord struct {
	Provider         string    `json:"provider"`
	Model            string    `json:"model,omitempty"`
	PromptStyle      string    `json:"prompt_style,omitempty"`
	Text             string    `json:"text"`
	Error            string    `json:"error,omitempty"`
	FinishReason     string    `json:"finish_reason,omitempty"`
	TokensIn         int       `json:"tokens_in,omitempty"`
	TokensOut        int       `json:"tokens_out,omitempty"`
	ProcessingTimeMS int64     `json:"processing_time_ms,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Succeeded reports whether this attempt produced a usable result.
func (r DescriptionRecord) Succeeded() bool {
	return r.Error == ""
}

// EmptyText reports whether this attempt completed with legally empty output.
func (r DescriptionRecord) EmptyText() bool {
	return r.Error == "" && strings.TrimSpace(r.Text) == ""
}

// Item is one unit of describable media. The ID is the slash-normalized
// path relative to the discovery root, which keeps documents portable when
// the tree is mounted elsewhere.
type Item struct {
	ID           string              `json:"id"`
	SourcePath   string              `json:"source_path"`
	Kind         Kind                `json:"kind"`
	DerivedFrom  string              `json:"derived_from,omitempty"`
	Status       Status              `json:"status"`
	Error        string              `json:"error,omitempty"`
	Descriptions []DescriptionRecord `json:"descriptions,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`

	// Enrichment from EXIF plus the geocode cache. All optional.
	CapturedAt  *time.Time `json:"captured_at,omitempty"`
	CameraMake  string     `json:"camera_make,omitempty"`
	CameraModel string     `json:"camera_model,omitempty"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
	Place       string     `json:"place,omitempty"`
}

// Describable reports whether a vision model can consume this item directly.
// HEIC and video items are containers; their derived items get described.
func (i *Item) Describable() bool {
	return i.Kind == KindImage || i.Kind == KindVideoFrame
}

// AddDescription appends an attempt record and bumps the update timestamp.
func (i *Item) AddDescription(record DescriptionRecord) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	i.Descriptions = append(i.Descriptions, record)
	i.UpdatedAt = time.Now().UTC()
}

// SetStatus updates the status and the update timestamp.
func (i *Item) SetStatus(status Status) {
	i.Status = status
	i.UpdatedAt = time.Now().UTC()
}
