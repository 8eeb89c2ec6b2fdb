// Package tasks provides the site daemon's in-process background task core.
//
// # Overview
//
// A fixed set of named jobs is registered at startup, each with its own
// recurrence interval and an executable body. A single scheduler loop polls
// for due jobs on a fixed cadence and dispatches them; admin callers can also
// trigger any job immediately, bypassing the schedule. Either way execution
// flows through the same Runner, which enforces at most one in-flight run per
// job name and records every invocation's outcome in the Tracker.
//
// # Records
//
// The Tracker keeps exactly one ExecutionRecord per job name: the latest
// invocation wins and no run history is retained. Records are safe to read
// concurrently with in-flight runs; callers always receive copies.
//
// # Dispatch semantics
//
// A job's lastRun is stamped when it is dispatched, not when it completes, so
// a body that runs longer than its own interval is not re-dispatched in a
// storm; the in-flight check skips it until it finishes. Duplicate dispatch
// (scheduled or manual) is advisory: the caller gets the current running
// record back instead of a queued slot, and no second body is started.
//
// # Lifecycle
//
// Start is a documented no-op when background execution is disabled by
// config. Stop interrupts the loop's sleep, cancels in-flight bodies, and
// waits a bounded time for them to unwind; stragglers are abandoned with a
// Failed("shutdown timeout") record so nothing is left stuck at Running.
package tasks
