package tasks

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cameronopotter/cameron-personal-site-sub001/internal/eventbus"
	logx "github.com/cameronopotter/cameron-personal-site-sub001/pkg/logx"
)

// Runner executes job invocations, enforcing at most one in-flight run per
// job name and recording every outcome in the Tracker.
type Runner struct {
	log     logx.Logger
	tracker *Tracker
	bus     eventbus.Bus

	mu       sync.Mutex
	inflight map[string]*run
	wg       sync.WaitGroup
}

// run is the in-flight bookkeeping for one invocation.
type run struct {
	id     string
	cancel context.CancelFunc

	// abandoned is set when Stop gives up on this run; its late outcome
	// must not overwrite the shutdown-timeout record. Guarded by Runner.mu.
	abandoned bool
}

func NewRunner(tracker *Tracker, bus eventbus.Bus, log logx.Logger) *Runner {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{
		log:      log,
		tracker:  tracker,
		bus:      bus,
		inflight: map[string]*run{},
	}
}

// Execute launches def's body on its own goroutine and returns the fresh
// Running record without waiting for completion.
//
// If the job is already in-flight, no second invocation starts and the
// current running record is returned instead (advisory, not blocking).
func (r *Runner) Execute(ctx context.Context, def JobDefinition) ExecutionRecord {
	r.mu.Lock()
	if _, ok := r.inflight[def.Name]; ok {
		rec, _ := r.tracker.Get(def.Name)
		r.mu.Unlock()
		r.publish(EventSkipped, RunEvent{RunID: rec.RunID, Name: def.Name, Started: rec.StartedAt})
		r.log.Debug("job already running; dispatch skipped", logx.String("job", def.Name))
		return rec
	}

	rec := r.tracker.Begin(def.Name)
	runCtx, cancel := context.WithCancel(ctx)
	ru := &run{id: rec.RunID, cancel: cancel}
	r.inflight[def.Name] = ru
	r.wg.Add(1)
	r.mu.Unlock()

	r.publish(EventStarted, RunEvent{RunID: rec.RunID, Name: def.Name, Started: rec.StartedAt})
	r.log.Debug("job started", logx.String("job", def.Name), logx.String("run_id", rec.RunID))

	go r.invoke(runCtx, def, ru)
	return rec
}

func (r *Runner) invoke(ctx context.Context, def JobDefinition, ru *run) {
	defer r.wg.Done()
	defer ru.cancel()

	var (
		result any
		err    error
	)
	// Convert body panics to errors so one bad job can't take the daemon down.
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
				r.log.Error("job panicked",
					logx.String("job", def.Name),
					logx.Any("panic", p),
					logx.String("stack", string(debug.Stack())),
				)
			}
		}()
		result, err = def.Body(ctx)
	}()

	// Leaving the in-flight set and recording the outcome happen under one
	// lock so duplicate-dispatch checks never see a half-finished run.
	r.mu.Lock()
	abandoned := ru.abandoned
	if cur := r.inflight[def.Name]; cur == ru {
		delete(r.inflight, def.Name)
	}
	var rec ExecutionRecord
	if !abandoned {
		if err != nil {
			rec = r.tracker.Fail(def.Name, err)
		} else {
			rec = r.tracker.Complete(def.Name, result)
		}
	}
	r.mu.Unlock()

	if abandoned {
		r.log.Debug("abandoned job finished late", logx.String("job", def.Name), logx.Err(err))
		return
	}

	dur := time.Duration(rec.DurationSeconds * float64(time.Second))
	ev := RunEvent{RunID: ru.id, Name: def.Name, Started: rec.StartedAt, Duration: dur}
	if err != nil {
		ev.Error = rec.Error
		r.publish(EventFailed, ev)
		r.log.Warn("job failed", logx.String("job", def.Name), logx.Err(err), logx.Duration("dur", dur))
		return
	}
	r.publish(EventCompleted, ev)
	if dur >= 750*time.Millisecond {
		r.log.Info("job completed", logx.String("job", def.Name), logx.Duration("dur", dur))
	} else {
		r.log.Debug("job completed", logx.String("job", def.Name), logx.Duration("dur", dur))
	}
}

// Running reports whether name is currently in-flight.
func (r *Runner) Running(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.inflight[name]
	return ok
}

// InFlight returns the names of all currently executing jobs.
func (r *Runner) InFlight() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.inflight))
	for name := range r.inflight {
		names = append(names, name)
	}
	return names
}

// Wait blocks until all in-flight bodies have unwound or timeout elapses.
// It reports whether the unwind was clean.
func (r *Runner) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// Abandon force-fails every remaining in-flight run with a shutdown-timeout
// record and removes it from the in-flight set. The bodies keep running on
// their goroutines but their late outcomes are discarded.
func (r *Runner) Abandon() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.inflight))
	for name, ru := range r.inflight {
		ru.abandoned = true
		ru.cancel()
		delete(r.inflight, name)
		r.tracker.Fail(name, errShutdownTimeout)
		names = append(names, name)
	}
	return names
}

func (r *Runner) publish(typ string, ev RunEvent) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(eventbus.Event{Type: typ, Data: ev})
}
