// Package jobs holds the concrete background job bodies: garden growth
// computation, weather simulation, and GitHub repository sync.
//
// Each body opens its own scoped work per invocation, honors ctx
// cancellation, and returns a small JSON-serializable summary that lands on
// the job's ExecutionRecord. The task core treats all of them as opaque.
package jobs
