package models

import "time"

// Outcome is the single terminal result of a submission: either a success
// record or a failure record, never both.
type Outcome struct {
	// Success fields.
	VideoTitle  string
	TotalChunks int
	VideoID     string

	// Failure fields.
	Err *ClassifiedError
}

// OK reports whether the outcome is a success.
func (o *Outcome) OK() bool {
	return o.Err == nil
}

// SubmissionRecord is a row in the local submission history.
type SubmissionRecord struct {
	ID          int64     `json:"id"`
	VideoID     string    `json:"video_id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	TotalChunks int       `json:"total_chunks"`
	Status      string    `json:"status"` // "pending", "completed", "failed"
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
