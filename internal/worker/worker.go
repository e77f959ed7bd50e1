// Package worker provides background task infrastructure for the
// board-watch engine: a Runner fans out errgroup.Group-managed
// long-running tasks and tears all of them down if any one fails.
package worker

import "context"

// Worker is a long-running background task.
type Worker interface {
	// Name returns a human-readable identifier for logging.
	Name() string
	// Run blocks until ctx is cancelled or an unrecoverable error occurs.
	Run(ctx context.Context) error
}
