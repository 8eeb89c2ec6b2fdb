package stats

import (
	"context"
	"testing"
	"time"

	"github.com/cameronopotter/cameron-personal-site-sub001/internal/eventbus"
	"github.com/cameronopotter/cameron-personal-site-sub001/internal/tasks"
)

func TestCollectorCounts(t *testing.T) {
	bus := eventbus.New()
	c := NewCollector()
	c.Start(context.Background(), bus)
	defer c.Stop()

	bus.Publish(eventbus.Event{Type: tasks.EventStarted, Data: tasks.RunEvent{Name: "weather"}})
	bus.Publish(eventbus.Event{Type: tasks.EventCompleted, Data: tasks.RunEvent{Name: "weather"}})
	bus.Publish(eventbus.Event{Type: tasks.EventStarted, Data: tasks.RunEvent{Name: "github_sync"}})
	bus.Publish(eventbus.Event{Type: tasks.EventFailed, Data: tasks.RunEvent{Name: "github_sync", Error: "x"}})
	bus.Publish(eventbus.Event{Type: tasks.EventSkipped, Data: tasks.RunEvent{Name: "github_sync"}})
	// Non-task payloads are ignored.
	bus.Publish(eventbus.Event{Type: "other", Data: 42})

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap := c.Snapshot()
		w, g := snap["weather"], snap["github_sync"]
		if w.Started == 1 && w.Completed == 1 && g.Failed == 1 && g.Skipped == 1 {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("counters never converged: %+v", c.Snapshot())
}
