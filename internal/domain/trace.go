package domain

import "time"

// TraceStatus is the lifecycle state of a trace.
type TraceStatus string

const (
	TraceStatusStarted   TraceStatus = "started"
	TraceStatusCompleted TraceStatus = "completed"
	TraceStatusFailed    TraceStatus = "failed"
)

// Trace phases. One trace exists for the text phase of a run and, when
// images are requested, a second independent one for the image phase.
const (
	TracePhaseText  = "text"
	TracePhaseImage = "image"
)

// Attempt records one call against one provider, success or failure.
// Attempts are append-only members of a Trace.
type Attempt struct {
	Provider        string    `json:"provider"`
	Model           string    `json:"model,omitempty"`
	RequestSummary  string    `json:"request_summary"`
	ResponseSummary string    `json:"response_summary,omitempty"`
	Error           string    `json:"error,omitempty"`
	DurationMs      int64     `json:"duration_ms"`
	Success         bool      `json:"success"`
	Timestamp       time.Time `json:"timestamp"`
}

// Trace is the append-only record of one generation run's lifecycle and
// every external attempt it made. Created at run start, mutated only by
// appending attempts or transitioning status.
type Trace struct {
	ID              string      `json:"id"`
	SubjectID       string      `json:"subject_id"`
	Phase           string      `json:"phase"`
	Attempts        []Attempt   `json:"attempts"`
	Status          TraceStatus `json:"status"`
	Error           string      `json:"error,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty"`
	TotalDurationMs int64       `json:"total_duration_ms,omitempty"`
}
