package tasks

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tracker keeps the latest ExecutionRecord per job name.
//
// One lock covers all records; the job set is small and fixed, so per-name
// locking buys nothing. All reads return copies.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]*ExecutionRecord
}

func NewTracker() *Tracker {
	return &Tracker{records: map[string]*ExecutionRecord{}}
}

// Begin overwrites the record for name with a fresh Running one and returns
// a copy. History depth is 1: the previous outcome is discarded.
func (t *Tracker) Begin(name string) ExecutionRecord {
	rec := &ExecutionRecord{
		RunID:     uuid.NewString(),
		Name:      name,
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}
	t.mu.Lock()
	t.records[name] = rec
	t.mu.Unlock()
	return *rec
}

// Complete marks the latest run of name as succeeded.
func (t *Tracker) Complete(name string, result any) ExecutionRecord {
	return t.finish(name, func(rec *ExecutionRecord) {
		rec.Status = StatusCompleted
		rec.Result = result
	})
}

// Fail marks the latest run of name as failed. The cause is stringified so
// the record stays serializable.
func (t *Tracker) Fail(name string, cause error) ExecutionRecord {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return t.finish(name, func(rec *ExecutionRecord) {
		rec.Status = StatusFailed
		rec.Error = msg
	})
}

func (t *Tracker) finish(name string, mutate func(*ExecutionRecord)) ExecutionRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec := t.records[name]
	if rec == nil {
		// Finish without Begin is a programming error; don't invent a record.
		return ExecutionRecord{}
	}
	now := time.Now()
	rec.CompletedAt = &now
	rec.DurationSeconds = now.Sub(rec.StartedAt).Seconds()
	mutate(rec)
	return *rec
}

// Get returns a copy of the latest record for name.
func (t *Tracker) Get(name string) (ExecutionRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec := t.records[name]
	if rec == nil {
		return ExecutionRecord{}, false
	}
	return *rec, true
}

// All returns copies of every record, keyed by job name.
func (t *Tracker) All() map[string]ExecutionRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]ExecutionRecord, len(t.records))
	for name, rec := range t.records {
		out[name] = *rec
	}
	return out
}
