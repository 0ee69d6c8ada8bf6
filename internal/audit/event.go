// Package audit provides structured logging for cell lifecycle operations.
package audit

import "time"

// Category represents the type of operation being audited.
type Category string

const (
	CategoryCell    Category = "cell"
	CategoryPolicy  Category = "policy"
	CategoryKernel  Category = "kernel"
	CategorySession Category = "session"
	CategoryAPI     Category = "api"
)

// Status represents the outcome of an operation.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
	StatusRejected Status = "rejected"
)

// Event represents a single auditable operation.
type Event struct {
	EventID string `json:"event_id"`

	// Operation details
	Category  Category `json:"category"`
	Operation string   `json:"operation"`

	// Subject
	SessionID string `json:"session_id,omitempty"`
	CellID    string `json:"cell_id,omitempty"`

	// Result
	Status       Status `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	Detail       string `json:"detail,omitempty"`

	// Timing
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at,omitempty"`
	DurationMs  int64         `json:"duration_ms,omitempty"`
	Duration    time.Duration `json:"-"`
}

// Complete finalizes the event with a status and optional error.
func (e *Event) Complete(status Status, err error) {
	e.Status = status
	if err != nil {
		e.ErrorMessage = err.Error()
	}
	e.CompletedAt = time.Now()
	e.Duration = e.CompletedAt.Sub(e.StartedAt)
	e.DurationMs = e.Duration.Milliseconds()
}
