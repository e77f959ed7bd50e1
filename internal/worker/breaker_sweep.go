package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/rchanio/rchan/internal/circuitbreaker"
)

const breakerSweepInterval = 60 * time.Second

// BreakerSweepWorker periodically evicts circuit breakers for boards that
// have not been polled recently -- an unsubscribed board's breaker has no
// reason to linger in memory.
type BreakerSweepWorker struct {
	registry *circuitbreaker.Registry
	maxIdle  time.Duration
}

// NewBreakerSweepWorker creates a BreakerSweepWorker that evicts breakers
// idle for longer than maxIdle.
func NewBreakerSweepWorker(registry *circuitbreaker.Registry, maxIdle time.Duration) *BreakerSweepWorker {
	return &BreakerSweepWorker{registry: registry, maxIdle: maxIdle}
}

// Name returns the worker identifier.
func (w *BreakerSweepWorker) Name() string { return "breaker_sweep" }

// Run evicts stale breakers every breakerSweepInterval until ctx is
// cancelled.
func (w *BreakerSweepWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(breakerSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-w.maxIdle)
			if n := w.registry.EvictStale(cutoff); n > 0 {
				slog.LogAttrs(ctx, slog.LevelInfo, "evicted stale circuit breakers",
					slog.Int("count", n),
				)
			}
		case <-ctx.Done():
			return nil
		}
	}
}
