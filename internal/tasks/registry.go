package tasks

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Registry maps job names to their definitions and schedule entries.
// Registration happens at startup only; iteration follows insertion order.
type Registry struct {
	mu      sync.Mutex
	order   []string
	defs    map[string]JobDefinition
	entries map[string]*ScheduleEntry
}

func NewRegistry() *Registry {
	return &Registry{
		defs:    map[string]JobDefinition{},
		entries: map[string]*ScheduleEntry{},
	}
}

// Register adds a job. LastRun is stamped with the registration time so a
// job first fires one full interval after startup rather than immediately.
func (r *Registry) Register(name string, interval time.Duration, body Body) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("job name is required")
	}
	if body == nil {
		return fmt.Errorf("job %q: body is nil", name)
	}
	if interval <= 0 {
		return fmt.Errorf("job %q: interval must be > 0", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[name]; ok {
		return fmt.Errorf("job %q: %w", name, ErrAlreadyRegistered)
	}
	r.order = append(r.order, name)
	r.defs[name] = JobDefinition{Name: name, Interval: interval, Body: body}
	r.entries[name] = &ScheduleEntry{Name: name, Interval: interval, LastRun: time.Now()}
	return nil
}

func (r *Registry) Lookup(name string) (JobDefinition, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	def, ok := r.defs[name]
	return def, ok
}

// Names returns all registered job names in insertion order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Due returns the names of jobs due at now, in insertion order.
func (r *Registry) Due(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []string
	for _, name := range r.order {
		if r.entries[name].Due(now) {
			due = append(due, name)
		}
	}
	return due
}

// MarkDispatched stamps the entry's LastRun. Called by the scheduler loop
// immediately after dispatch.
func (r *Registry) MarkDispatched(name string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok {
		e.LastRun = now
	}
}

// Entries returns copies of all schedule entries in insertion order.
func (r *Registry) Entries() []ScheduleEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ScheduleEntry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.entries[name])
	}
	return out
}
