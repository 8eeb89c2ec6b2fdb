package tasks

import "time"

// Event types published on the bus for every invocation.
const (
	EventStarted   = "task.started"
	EventCompleted = "task.completed"
	EventFailed    = "task.failed"
	EventSkipped   = "task.skipped"
)

// RunEvent is the payload carried by task lifecycle events.
type RunEvent struct {
	RunID    string        `json:"run_id"`
	Name     string        `json:"name"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration,omitempty"`
	Error    string        `json:"error,omitempty"`
}
