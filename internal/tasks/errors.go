package tasks

import "errors"

var (
	// ErrUnknownJob is returned when a trigger names an unregistered job.
	ErrUnknownJob = errors.New("unknown job")

	// ErrStopped is returned for operations after the manager was stopped.
	ErrStopped = errors.New("task manager stopped")

	// ErrAlreadyRegistered is returned for duplicate job names.
	ErrAlreadyRegistered = errors.New("job already registered")

	// errShutdownTimeout marks records of bodies abandoned at shutdown.
	errShutdownTimeout = errors.New("shutdown timeout")
)
