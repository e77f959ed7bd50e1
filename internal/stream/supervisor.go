// Package stream implements the subscription registry and lifecycle
// owner of board workers (spec.md Section 4.7): the fan-in point
// between many board workers and the single consumer of published
// events.
package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	rchan "github.com/rchanio/rchan/internal"
	"github.com/rchanio/rchan/internal/circuitbreaker"
	"github.com/rchanio/rchan/internal/telemetry"
)

// WorkerFactory builds the long-running task for one board subscription.
// The supervisor owns only the task's lifecycle (its cancellation and
// its forwarder), never its internals -- grounded on the same
// registry-of-cancel-handles pattern internal/provider.Registry used for
// per-provider clients.
type WorkerFactory func(board string, refresh time.Duration, events chan<- rchan.Event, breaker *circuitbreaker.Breaker) Runnable

// Runnable is the subset of board.Worker the supervisor depends on.
type Runnable interface {
	Run(ctx context.Context) error
}

type registration struct {
	cancel context.CancelFunc
	events chan rchan.Event
}

// Supervisor maintains the live set of board workers and forwards their
// published events onto a single consumer channel (spec.md Section
// 4.7). Build with New; Consumer() exposes the fan-in channel.
type Supervisor struct {
	mu       sync.Mutex
	workers  map[string]*registration
	boards   map[string]rchan.Board
	consumer chan rchan.Event

	breakers *circuitbreaker.Registry
	newOne   WorkerFactory
	metrics  *telemetry.Metrics

	wg sync.WaitGroup
}

// New creates a Supervisor with an empty known-boards list, the
// lazily-initialised list used to validate Subscribe calls (spec.md
// Section 4.7); callers
// populate it once via SetKnownBoards after fetching the boards
// endpoint. breakers may be nil to disable the per-board circuit
// breaker enrichment entirely.
func New(factory WorkerFactory, breakers *circuitbreaker.Registry) *Supervisor {
	return &Supervisor{
		workers:  make(map[string]*registration),
		boards:   make(map[string]rchan.Board),
		consumer: make(chan rchan.Event),
		breakers: breakers,
		newOne:   factory,
	}
}

// WithMetrics attaches a Prometheus metrics sink, returning s for
// chaining. A Supervisor with no metrics attached skips recording the
// SubscribedBoards gauge entirely.
func (s *Supervisor) WithMetrics(m *telemetry.Metrics) *Supervisor {
	s.metrics = m
	return s
}

// Consumer returns the single fan-in channel every subscribed board's
// events are forwarded onto. It is never closed by the supervisor while
// any worker is registered; callers drain it for the supervisor's
// lifetime.
func (s *Supervisor) Consumer() <-chan rchan.Event { return s.consumer }

// SetKnownBoards replaces the board metadata Subscribe validates
// against. Called once at startup after fetching the boards endpoint
// (spec.md Section 4.7: "a lazily-initialised list of known boards").
func (s *Supervisor) SetKnownBoards(boards []rchan.Board) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boards = make(map[string]rchan.Board, len(boards))
	for _, b := range boards {
		s.boards[b.Board] = b
	}
}

// Subscribe registers and starts a worker for sub.Board. Rejects with
// ErrAlreadySubscribed if the board already has a live worker, or
// ErrBoardNotFound if sub.Board is absent from the known-boards list
// (spec.md Section 4.7).
func (s *Supervisor) Subscribe(ctx context.Context, sub rchan.Subscription) error {
	s.mu.Lock()
	if _, ok := s.workers[sub.Board]; ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", rchan.ErrAlreadySubscribed, sub.Board)
	}
	if _, ok := s.boards[sub.Board]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", rchan.ErrBoardNotFound, sub.Board)
	}

	var breaker *circuitbreaker.Breaker
	if s.breakers != nil {
		breaker = s.breakers.GetOrCreate(sub.Board)
	}

	events := make(chan rchan.Event)
	worker := s.newOne(sub.Board, sub.RefreshInterval(), events, breaker)

	workerCtx, cancel := context.WithCancel(ctx)
	s.workers[sub.Board] = &registration{cancel: cancel, events: events}
	count := len(s.workers)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SubscribedBoards.Set(float64(count))
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		_ = worker.Run(workerCtx)
		close(events)
	}()
	go func() {
		defer s.wg.Done()
		s.forward(events)
	}()

	return nil
}

// forward copies events from a worker's channel onto the consumer
// channel until the worker's channel closes, blocking on a full
// consumer channel so no event is ever dropped (spec.md Section 4.7,
// Section 5 -- "Forwarder policy on a full consumer channel: block").
// It intentionally ignores ctx: a cancelled worker still closes events
// once its in-flight fetches drain, and any events already queued on it
// must still reach the consumer, not be discarded.
func (s *Supervisor) forward(events <-chan rchan.Event) {
	for e := range events {
		s.consumer <- e
	}
}

// Unsubscribe cancels and removes board's worker if present; a no-op
// otherwise (spec.md Section 4.7). The forwarder terminates naturally
// once the worker's event channel closes.
func (s *Supervisor) Unsubscribe(board string) {
	s.mu.Lock()
	reg, ok := s.workers[board]
	if ok {
		delete(s.workers, board)
	}
	count := len(s.workers)
	s.mu.Unlock()

	if !ok {
		return
	}
	if s.metrics != nil {
		s.metrics.SubscribedBoards.Set(float64(count))
	}
	reg.cancel()
}

// SubscribedCount returns the number of boards currently subscribed.
func (s *Supervisor) SubscribedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workers)
}

// Wait blocks until every currently-registered worker and forwarder has
// exited. Intended for tests and graceful shutdown, not the steady-state
// hot path.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}
