package tasks

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cameronopotter/cameron-personal-site-sub001/internal/eventbus"
	logx "github.com/cameronopotter/cameron-personal-site-sub001/pkg/logx"
)

func testConfig() Config {
	return Config{
		Enabled:      true,
		PollInterval: 5 * time.Millisecond,
		ErrorBackoff: 10 * time.Millisecond,
		StopTimeout:  time.Second,
	}
}

func TestManagerSchedulesDueJob(t *testing.T) {
	m := NewManager(testConfig(), nil, logx.Nop())
	if err := m.Register("ping", time.Millisecond, func(ctx context.Context) (any, error) {
		return map[string]any{"ok": true}, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.Stop(context.Background())

	rec := waitForStatus(t, m.tracker, "ping", StatusCompleted)
	res, ok := rec.Result.(map[string]any)
	if !ok || res["ok"] != true {
		t.Fatalf("result = %#v", rec.Result)
	}
}

func TestManagerIntervalGating(t *testing.T) {
	m := NewManager(testConfig(), nil, logx.Nop())
	_ = m.Register("a", time.Millisecond, func(ctx context.Context) (any, error) { return nil, nil })
	_ = m.Register("b", time.Hour, func(ctx context.Context) (any, error) { return nil, nil })

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.Stop(context.Background())

	waitForStatus(t, m.tracker, "a", StatusCompleted)
	if _, ok := m.Status("b"); ok {
		t.Fatal("job with long interval ran within the first cycles")
	}
}

func TestManagerTriggerReturnsRecordImmediately(t *testing.T) {
	m := NewManager(Config{Enabled: false}, nil, logx.Nop())
	_ = m.Register("growth", time.Hour, func(ctx context.Context) (any, error) {
		return map[string]any{"plants_updated": 2}, nil
	})

	// Manual triggers work even though the loop is disabled.
	rec, err := m.Trigger("growth")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	switch rec.Status {
	case StatusRunning, StatusCompleted, StatusFailed:
	default:
		t.Fatalf("status right after trigger = %q", rec.Status)
	}
	if _, ok := m.Status("growth"); !ok {
		t.Fatal("status absent right after trigger")
	}
	waitForStatus(t, m.tracker, "growth", StatusCompleted)
}

func TestManagerTriggerUnknownJob(t *testing.T) {
	m := NewManager(testConfig(), nil, logx.Nop())
	if _, err := m.Trigger("nope"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("err = %v", err)
	}
}

func TestManagerDoubleTriggerSingleInvocation(t *testing.T) {
	m := NewManager(Config{Enabled: false}, nil, logx.Nop())

	var invocations atomic.Int32
	release := make(chan struct{})
	_ = m.Register("slow", time.Hour, func(ctx context.Context) (any, error) {
		invocations.Add(1)
		<-release
		return nil, nil
	})

	first, err := m.Trigger("slow")
	if err != nil {
		t.Fatalf("trigger 1: %v", err)
	}
	second, err := m.Trigger("slow")
	if err != nil {
		t.Fatalf("trigger 2: %v", err)
	}
	if first.RunID != second.RunID {
		t.Fatal("second trigger started a new run")
	}
	close(release)
	waitForStatus(t, m.tracker, "slow", StatusCompleted)
	if invocations.Load() != 1 {
		t.Fatalf("body ran %d times", invocations.Load())
	}
}

func TestManagerStopCancelsInFlight(t *testing.T) {
	m := NewManager(testConfig(), nil, logx.Nop())
	_ = m.Register("slow", time.Millisecond, func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForStatus(t, m.tracker, "slow", StatusRunning)

	done := make(chan struct{})
	go func() {
		m.Stop(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	rec, ok := m.Status("slow")
	if !ok || rec.Status != StatusFailed || !strings.Contains(rec.Error, "cancel") {
		t.Fatalf("record after stop: %+v", rec)
	}
}

func TestManagerStopAbandonsStuckBody(t *testing.T) {
	cfg := testConfig()
	cfg.StopTimeout = 20 * time.Millisecond
	m := NewManager(cfg, nil, logx.Nop())

	release := make(chan struct{})
	defer close(release)
	_ = m.Register("stuck", time.Millisecond, func(ctx context.Context) (any, error) {
		<-release
		return nil, nil
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForStatus(t, m.tracker, "stuck", StatusRunning)

	m.Stop(context.Background())

	rec, _ := m.Status("stuck")
	if rec.Status != StatusFailed || !strings.Contains(rec.Error, "shutdown timeout") {
		t.Fatalf("record after abandon: %+v", rec)
	}
}

func TestManagerStopIdempotent(t *testing.T) {
	m := NewManager(testConfig(), nil, logx.Nop())
	_ = m.Register("a", time.Millisecond, func(ctx context.Context) (any, error) { return nil, nil })

	// Stop before Start must be safe.
	never := NewManager(testConfig(), nil, logx.Nop())
	never.Stop(context.Background())
	never.Stop(context.Background())

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	m.Stop(context.Background())
	m.Stop(context.Background())

	if len(m.runner.InFlight()) != 0 {
		t.Fatal("in-flight activities left after stop")
	}
	if _, err := m.Trigger("a"); !errors.Is(err, ErrStopped) {
		t.Fatalf("trigger after stop: %v", err)
	}
}

func TestManagerDisabledStartIsNoop(t *testing.T) {
	m := NewManager(Config{Enabled: false}, nil, logx.Nop())
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("disabled start returned error: %v", err)
	}
	snap := m.Snapshot()
	if snap.LoopRunning {
		t.Fatal("loop running despite disabled config")
	}
	m.Stop(context.Background())
}

func TestManagerPublishesLifecycleEvents(t *testing.T) {
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(16)
	defer unsub()

	m := NewManager(Config{Enabled: false}, bus, logx.Nop())
	_ = m.Register("evt", time.Hour, func(ctx context.Context) (any, error) { return nil, nil })
	if _, err := m.Trigger("evt"); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	var got []string
	deadline := time.After(5 * time.Second)
	for len(got) < 2 {
		select {
		case e := <-ch:
			got = append(got, e.Type)
		case <-deadline:
			t.Fatalf("events seen: %v", got)
		}
	}
	if got[0] != EventStarted || got[1] != EventCompleted {
		t.Fatalf("event order: %v", got)
	}
}
