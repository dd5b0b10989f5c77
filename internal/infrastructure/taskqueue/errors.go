package taskqueue

import "errors"

var (
	// ErrRunnerNotRunning is returned when stopping a runner that was never started
	ErrRunnerNotRunning = errors.New("task runner is not running")

	// ErrNoHandler is recorded on tasks whose kind has no registered handler
	ErrNoHandler = errors.New("no handler registered for task kind")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid task runner configuration")
)
