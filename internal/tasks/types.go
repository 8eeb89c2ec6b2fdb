package tasks

import (
	"context"
	"time"
)

// Status is the lifecycle state of a job's latest invocation.
type Status string

const (
	// StatusPending is reported for registered jobs that have never run.
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Body is a job's executable part. It runs on its own goroutine, should
// honor ctx cancellation, and returns a small JSON-serializable summary.
type Body func(ctx context.Context) (any, error)

// JobDefinition is immutable after registration.
type JobDefinition struct {
	Name     string
	Interval time.Duration
	Body     Body
}

// ExecutionRecord is the latest outcome for one job name.
//
// DurationSeconds is meaningful only when CompletedAt is set and always
// equals CompletedAt - StartedAt.
type ExecutionRecord struct {
	RunID           string     `json:"run_id"`
	Name            string     `json:"name"`
	Status          Status     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Result          any        `json:"result,omitempty"`
	Error           string     `json:"error,omitempty"`
	DurationSeconds float64    `json:"duration_seconds,omitempty"`
}

// ScheduleEntry tracks when a job was last dispatched.
// LastRun is stamped at dispatch time, not completion time.
type ScheduleEntry struct {
	Name     string        `json:"name"`
	Interval time.Duration `json:"interval"`
	LastRun  time.Time     `json:"last_run"`
}

// Due reports whether the entry should be dispatched at now.
// An unset LastRun counts as due.
func (e ScheduleEntry) Due(now time.Time) bool {
	return e.LastRun.IsZero() || now.Sub(e.LastRun) >= e.Interval
}

// Config controls the task manager.
type Config struct {
	// Enabled gates the scheduler loop. Manual triggers work either way.
	Enabled bool

	// PollInterval is the sleep between poll cycles (default 30s).
	PollInterval time.Duration

	// ErrorBackoff is the sleep after a failed poll cycle (default 60s).
	ErrorBackoff time.Duration

	// StopTimeout bounds how long Stop waits for in-flight bodies to unwind
	// before abandoning them (default 10s).
	StopTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = 60 * time.Second
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 10 * time.Second
	}
	return c
}

// ScheduleInfo is a point-in-time view of one schedule entry.
type ScheduleInfo struct {
	Name     string        `json:"name"`
	Interval time.Duration `json:"interval"`
	LastRun  time.Time     `json:"last_run"`
	InFlight bool          `json:"in_flight"`
}

// Snapshot is a lightweight diagnostics view of the manager.
type Snapshot struct {
	Enabled      bool           `json:"enabled"`
	LoopRunning  bool           `json:"loop_running"`
	PollInterval time.Duration  `json:"poll_interval"`
	Schedules    []ScheduleInfo `json:"schedules"`
}
