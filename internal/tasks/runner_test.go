package tasks

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	logx "github.com/cameronopotter/cameron-personal-site-sub001/pkg/logx"
)

// waitForStatus polls until the record for name reaches want or the deadline
// passes. Job bodies run on their own goroutines, so tests wait, not sleep.
func waitForStatus(t *testing.T, tr *Tracker, name string, want Status) ExecutionRecord {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if rec, ok := tr.Get(name); ok && rec.Status == want {
			return rec
		}
		time.Sleep(2 * time.Millisecond)
	}
	rec, _ := tr.Get(name)
	t.Fatalf("record for %q never reached %q (last: %+v)", name, want, rec)
	return ExecutionRecord{}
}

func TestRunnerExecuteRecordsSuccess(t *testing.T) {
	tr := NewTracker()
	r := NewRunner(tr, nil, logx.Nop())

	def := JobDefinition{Name: "ping", Interval: time.Second, Body: func(ctx context.Context) (any, error) {
		return map[string]any{"ok": true}, nil
	}}

	rec := r.Execute(context.Background(), def)
	if rec.Status != StatusRunning {
		t.Fatalf("returned record status = %q", rec.Status)
	}

	got := waitForStatus(t, tr, "ping", StatusCompleted)
	res, ok := got.Result.(map[string]any)
	if !ok || res["ok"] != true {
		t.Fatalf("result = %#v", got.Result)
	}
	if got.CompletedAt.Sub(got.StartedAt).Seconds() != got.DurationSeconds {
		t.Fatal("duration invariant broken")
	}
	if r.Running("ping") {
		t.Fatal("still marked in-flight after completion")
	}
}

func TestRunnerExecuteRecordsFailure(t *testing.T) {
	tr := NewTracker()
	r := NewRunner(tr, nil, logx.Nop())

	def := JobDefinition{Name: "sync", Interval: time.Second, Body: func(ctx context.Context) (any, error) {
		return nil, errors.New("upstream 503")
	}}
	r.Execute(context.Background(), def)

	got := waitForStatus(t, tr, "sync", StatusFailed)
	if got.Error == "" {
		t.Fatal("error not recorded")
	}
	if got.CompletedAt == nil || got.DurationSeconds != got.CompletedAt.Sub(got.StartedAt).Seconds() {
		t.Fatal("timing fields missing on failure")
	}
}

func TestRunnerDuplicateDispatchIsAdvisory(t *testing.T) {
	tr := NewTracker()
	r := NewRunner(tr, nil, logx.Nop())

	var invocations atomic.Int32
	release := make(chan struct{})
	def := JobDefinition{Name: "slow", Interval: time.Second, Body: func(ctx context.Context) (any, error) {
		invocations.Add(1)
		<-release
		return nil, nil
	}}

	first := r.Execute(context.Background(), def)
	second := r.Execute(context.Background(), def)

	if first.RunID != second.RunID {
		t.Fatalf("duplicate dispatch returned a different run: %q vs %q", first.RunID, second.RunID)
	}
	close(release)
	waitForStatus(t, tr, "slow", StatusCompleted)
	if n := invocations.Load(); n != 1 {
		t.Fatalf("body invoked %d times, want 1", n)
	}
}

func TestRunnerPanicBecomesFailure(t *testing.T) {
	tr := NewTracker()
	r := NewRunner(tr, nil, logx.Nop())

	def := JobDefinition{Name: "bad", Interval: time.Second, Body: func(ctx context.Context) (any, error) {
		panic("nil map write")
	}}
	r.Execute(context.Background(), def)

	got := waitForStatus(t, tr, "bad", StatusFailed)
	if !strings.Contains(got.Error, "panic") {
		t.Fatalf("error = %q", got.Error)
	}
	if r.Running("bad") {
		t.Fatal("in-flight entry leaked after panic")
	}
}

func TestRunnerCancellationRecordsFailure(t *testing.T) {
	tr := NewTracker()
	r := NewRunner(tr, nil, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	def := JobDefinition{Name: "blocked", Interval: time.Second, Body: func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	r.Execute(ctx, def)
	cancel()

	got := waitForStatus(t, tr, "blocked", StatusFailed)
	if !strings.Contains(got.Error, "cancel") {
		t.Fatalf("expected cancellation-flavored error, got %q", got.Error)
	}
}

func TestRunnerAbandonMarksShutdownTimeout(t *testing.T) {
	tr := NewTracker()
	r := NewRunner(tr, nil, logx.Nop())

	release := make(chan struct{})
	// Body ignores cancellation entirely.
	def := JobDefinition{Name: "stuck", Interval: time.Second, Body: func(ctx context.Context) (any, error) {
		<-release
		return map[string]any{"late": true}, nil
	}}
	r.Execute(context.Background(), def)

	if r.Wait(20 * time.Millisecond) {
		t.Fatal("Wait reported clean unwind for a stuck body")
	}
	names := r.Abandon()
	if len(names) != 1 || names[0] != "stuck" {
		t.Fatalf("abandoned = %v", names)
	}

	rec, _ := tr.Get("stuck")
	if rec.Status != StatusFailed || !strings.Contains(rec.Error, "shutdown timeout") {
		t.Fatalf("record after abandon: %+v", rec)
	}

	// The late outcome must not overwrite the shutdown-timeout record.
	close(release)
	if !r.Wait(5 * time.Second) {
		t.Fatal("body never returned")
	}
	rec, _ = tr.Get("stuck")
	if rec.Status != StatusFailed {
		t.Fatalf("late completion overwrote record: %+v", rec)
	}
}
