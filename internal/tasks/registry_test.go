package tasks

import (
	"context"
	"testing"
	"time"
)

func noopBody(ctx context.Context) (any, error) { return nil, nil }

func TestRegistryOrderAndDue(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("a", time.Millisecond, noopBody); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := r.Register("b", time.Hour, noopBody); err != nil {
		t.Fatalf("register b: %v", err)
	}

	got := r.Names()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("names = %v", got)
	}

	// Registration stamps LastRun, so nothing is due immediately.
	if due := r.Due(time.Now()); len(due) != 0 {
		t.Fatalf("due right after registration = %v", due)
	}

	// One interval later "a" is due, "b" is not.
	later := time.Now().Add(10 * time.Millisecond)
	due := r.Due(later)
	if len(due) != 1 || due[0] != "a" {
		t.Fatalf("due = %v", due)
	}

	r.MarkDispatched("a", later)
	if due := r.Due(later); len(due) != 0 {
		t.Fatalf("due after stamp = %v", due)
	}
}

func TestRegistryUnsetLastRunIsDue(t *testing.T) {
	e := ScheduleEntry{Name: "x", Interval: time.Hour}
	if !e.Due(time.Now()) {
		t.Fatal("entry with unset LastRun should be due")
	}
}

func TestRegistryRejectsBadDefinitions(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("", time.Second, noopBody); err == nil {
		t.Fatal("empty name accepted")
	}
	if err := r.Register("x", 0, noopBody); err == nil {
		t.Fatal("zero interval accepted")
	}
	if err := r.Register("x", time.Second, nil); err == nil {
		t.Fatal("nil body accepted")
	}
	if err := r.Register("x", time.Second, noopBody); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("x", time.Second, noopBody); err == nil {
		t.Fatal("duplicate name accepted")
	}
}
