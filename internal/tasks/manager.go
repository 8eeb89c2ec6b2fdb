package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cameronopotter/cameron-personal-site-sub001/internal/eventbus"
	logx "github.com/cameronopotter/cameron-personal-site-sub001/pkg/logx"
)

// Manager owns the scheduler loop and ties the registry, tracker, and runner
// together. Construct one per process and pass it by reference to whatever
// needs to trigger or query jobs; there is no package-level instance.
type Manager struct {
	cfg Config
	log logx.Logger

	registry *Registry
	tracker  *Tracker
	runner   *Runner

	// runCtx is the parent of every body's context, independent of the
	// loop's lifetime so manual triggers work without Start.
	runCtx    context.Context
	runCancel context.CancelFunc

	mu       sync.Mutex
	started  bool
	stopped  bool
	stopCh   chan struct{}
	loopDone chan struct{}
	stopDone chan struct{}
}

func NewManager(cfg Config, bus eventbus.Bus, log logx.Logger) *Manager {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	tracker := NewTracker()
	runCtx, runCancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:       cfg,
		log:       log,
		registry:  NewRegistry(),
		tracker:   tracker,
		runner:    NewRunner(tracker, bus, log),
		runCtx:    runCtx,
		runCancel: runCancel,
	}
}

// Register adds a job definition. Call before Start; jobs registered later
// are picked up on the next poll cycle but that path is not exercised.
func (m *Manager) Register(name string, interval time.Duration, body Body) error {
	return m.registry.Register(name, interval, body)
}

// Start launches the scheduler loop. If background execution is disabled by
// config this is a documented no-op, not an error. Start is idempotent.
func (m *Manager) Start(ctx context.Context) error {
	_ = ctx // reserved; body contexts derive from the manager's own run context

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.cfg.Enabled {
		m.log.Info("background tasks disabled; scheduler not started")
		return nil
	}
	if m.stopped {
		return ErrStopped
	}
	if m.started {
		return nil
	}
	m.started = true
	m.stopCh = make(chan struct{})
	m.loopDone = make(chan struct{})
	go m.loop(m.runCtx, m.stopCh, m.loopDone)

	m.log.Info("scheduler started",
		logx.Duration("poll_interval", m.cfg.PollInterval),
		logx.Int("jobs", len(m.registry.Names())),
	)
	return nil
}

// Stop raises the shutdown signal, cancels in-flight bodies, and waits a
// bounded time for them to unwind. Idempotent and safe when never started.
func (m *Manager) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.Lock()
	if m.stopDone != nil {
		done := m.stopDone
		m.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	m.stopDone = done
	m.stopped = true
	stopCh := m.stopCh
	loopDone := m.loopDone
	m.mu.Unlock()

	start := time.Now()
	m.log.Info("stop requested")

	// The loop observes stopCh at the top of its next cycle or during its
	// sleep, whichever comes first.
	if stopCh != nil {
		close(stopCh)
	}
	if loopDone != nil {
		select {
		case <-loopDone:
		case <-ctx.Done():
		}
	}

	// Cancel every in-flight body and wait for cooperative unwind.
	m.runCancel()
	if !m.runner.Wait(m.cfg.StopTimeout) {
		for _, name := range m.runner.Abandon() {
			m.log.Warn("job ignored cancellation; abandoned", logx.String("job", name))
		}
	}

	m.log.Info("scheduler stopped", logx.Duration("took", time.Since(start)))
	close(done)
}

// Trigger executes the named job immediately, bypassing the schedule.
// The returned record is Running for a fresh dispatch, or whatever the
// in-flight run's current record is when the job is already executing.
func (m *Manager) Trigger(name string) (ExecutionRecord, error) {
	def, ok := m.registry.Lookup(name)
	if !ok {
		return ExecutionRecord{}, fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}
	m.mu.Lock()
	stopped := m.stopped
	m.mu.Unlock()
	if stopped {
		return ExecutionRecord{}, ErrStopped
	}
	return m.runner.Execute(m.runCtx, def), nil
}

// Status returns the latest record for name, if any run has ever started.
func (m *Manager) Status(name string) (ExecutionRecord, bool) {
	return m.tracker.Get(name)
}

// AllStatuses returns the latest record per job name.
func (m *Manager) AllStatuses() map[string]ExecutionRecord {
	return m.tracker.All()
}

// Names returns all registered job names in registration order.
func (m *Manager) Names() []string {
	return m.registry.Names()
}

// Snapshot returns a diagnostics view for the metrics endpoint.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	loopRunning := m.started && !m.stopped
	m.mu.Unlock()

	entries := m.registry.Entries()
	infos := make([]ScheduleInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, ScheduleInfo{
			Name:     e.Name,
			Interval: e.Interval,
			LastRun:  e.LastRun,
			InFlight: m.runner.Running(e.Name),
		})
	}
	return Snapshot{
		Enabled:      m.cfg.Enabled,
		LoopRunning:  loopRunning,
		PollInterval: m.cfg.PollInterval,
		Schedules:    infos,
	}
}

// loop is the single control loop: poll, dispatch due jobs, sleep, repeat.
// Only the shutdown signal terminates it; cycle errors back off and resume.
func (m *Manager) loop(ctx context.Context, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		delay := m.cfg.PollInterval
		if err := m.cycle(ctx); err != nil {
			m.log.Warn("poll cycle failed; backing off",
				logx.Err(err),
				logx.Duration("backoff", m.cfg.ErrorBackoff),
			)
			delay = m.cfg.ErrorBackoff
		}

		timer := time.NewTimer(delay)
		select {
		case <-stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// cycle evaluates every registered job for due-ness against one time
// snapshot. Job failures never surface here; those land on the record.
func (m *Manager) cycle(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	now := time.Now()
	for _, name := range m.registry.Due(now) {
		if m.runner.Running(name) {
			// Still running from a previous dispatch: skip without stamping
			// so it re-dispatches on the first cycle after it finishes.
			continue
		}
		def, ok := m.registry.Lookup(name)
		if !ok {
			continue
		}
		m.runner.Execute(ctx, def)
		// Stamp at dispatch, not completion: a body outliving its own
		// interval must not change the effective cadence.
		m.registry.MarkDispatched(name, now)
	}
	return nil
}
