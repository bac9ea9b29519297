package audit

import "time"

// Outcome represents the result of an audited tool invocation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// Event is a single audit log entry. Immutable once written.
type Event struct {
	ID          string        `json:"id"`
	ToolName    string        `json:"tool_name"`
	Outcome     Outcome       `json:"outcome"`
	ErrorKind   string        `json:"error_kind,omitempty"`
	ErrorStatus string        `json:"error_status,omitempty"`
	Duration    time.Duration `json:"duration_ms"`
	CreatedAt   time.Time     `json:"created_at"`
}
