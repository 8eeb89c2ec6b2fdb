// Package stats aggregates per-job counters from task lifecycle events.
//
// The collector subscribes to the event bus so the task core stays unaware
// of metrics; counters survive record overwrites (the tracker only keeps the
// latest outcome per job).
package stats

import (
	"context"
	"sync"

	"github.com/cameronopotter/cameron-personal-site-sub001/internal/eventbus"
	"github.com/cameronopotter/cameron-personal-site-sub001/internal/tasks"
)

// JobCounters are cumulative since process start.
type JobCounters struct {
	Started   uint64 `json:"started"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Skipped   uint64 `json:"skipped"`
}

type Collector struct {
	mu       sync.Mutex
	counters map[string]*JobCounters

	unsub func()
	done  chan struct{}
}

func NewCollector() *Collector {
	return &Collector{counters: map[string]*JobCounters{}}
}

// Start subscribes to bus and consumes events until ctx is done or Stop is
// called. Safe to call once.
func (c *Collector) Start(ctx context.Context, bus eventbus.Bus) {
	ch, unsub := bus.Subscribe(64)
	c.unsub = unsub
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-ch:
				if !ok {
					return
				}
				c.record(e)
			}
		}
	}()
}

func (c *Collector) Stop() {
	if c.unsub != nil {
		c.unsub()
	}
	if c.done != nil {
		<-c.done
	}
}

func (c *Collector) record(e eventbus.Event) {
	ev, ok := e.Data.(tasks.RunEvent)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jc := c.counters[ev.Name]
	if jc == nil {
		jc = &JobCounters{}
		c.counters[ev.Name] = jc
	}
	switch e.Type {
	case tasks.EventStarted:
		jc.Started++
	case tasks.EventCompleted:
		jc.Completed++
	case tasks.EventFailed:
		jc.Failed++
	case tasks.EventSkipped:
		jc.Skipped++
	}
}

// Snapshot returns a copy of all counters keyed by job name.
func (c *Collector) Snapshot() map[string]JobCounters {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]JobCounters, len(c.counters))
	for name, jc := range c.counters {
		out[name] = *jc
	}
	return out
}
