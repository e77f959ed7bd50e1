package board

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	rchan "github.com/rchanio/rchan/internal"
	"github.com/rchanio/rchan/internal/circuitbreaker"
	"github.com/rchanio/rchan/internal/telemetry"
)

// fetcher is the subset of *httpclient.Client a Worker needs. Narrowed
// to an interface so tests can supply a fake without a real rate
// limiter, cache, or transport underneath.
type fetcher interface {
	Threads(ctx context.Context, board string) ([]rchan.ThreadsPage, error)
	Thread(ctx context.Context, board string, no int) (rchan.ThreadBody, error)
}

// Worker runs the polling loop for one board (spec.md Section 4.6), the
// largest single component of the engine. Build with New; it implements
// internal/worker.Worker so it can be orchestrated by the same Runner
// as the cache actor and the breaker sweep.
type Worker struct {
	board   string
	client  fetcher
	breaker *circuitbreaker.Breaker
	events  chan<- rchan.Event
	refresh time.Duration
	metrics *telemetry.Metrics

	state *State
}

// New creates a Worker for board, publishing events onto events. breaker
// may be nil, in which case the worker never skips a cycle's thread
// fan-out regardless of recent failures -- the enrichment is optional,
// the core polling contract is not.
func New(boardName string, client fetcher, breaker *circuitbreaker.Breaker, events chan<- rchan.Event, refresh time.Duration) *Worker {
	if refresh <= 0 {
		refresh = rchan.DefaultRefreshInterval
	}
	return &Worker{
		board:   boardName,
		client:  client,
		breaker: breaker,
		events:  events,
		refresh: refresh,
		state:   NewState(0),
	}
}

// WithMetrics attaches a Prometheus metrics sink, returning w for
// chaining. A Worker with no metrics attached skips recording entirely.
func (w *Worker) WithMetrics(m *telemetry.Metrics) *Worker {
	w.metrics = m
	return w
}

// Name identifies this worker for internal/worker.Runner's startup log.
func (w *Worker) Name() string { return "board_worker:" + w.board }

// Run implements internal/worker.Worker. It initialises BoardState from
// one threads-summary fetch, then loops the polling cycle until ctx is
// cancelled or a decoding error makes the worker unrecoverable (spec.md
// Section 4.6 -- "decoding errors are fatal to the worker").
func (w *Worker) Run(ctx context.Context) error {
	if err := w.initialize(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	for {
		if err := w.cycle(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		if err := sleepCancellable(ctx, w.refresh); err != nil {
			return nil
		}
	}
}

// initialize implements spec.md Section 4.6's "Initialisation": fetch
// the board's threads summary once, populate watermarks without
// publishing anything (the initial snapshot is the baseline), and stamp
// LastUpdateSec.
func (w *Worker) initialize(ctx context.Context) error {
	pages, err := w.client.Threads(ctx, w.board)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		if isFatalDecodeError(err) {
			return err
		}
		// A transient fetch failure during initialisation is not fatal
		// -- treat the board as having no prior watermarks yet and let
		// the first polling cycle populate them (and publish their
		// posts as new, matching the "late subscriber" rule).
		return nil
	}

	for _, s := range rchan.AllThreadSummaries(pages) {
		w.state.Watermarks[s.No] = ThreadWatermark{No: s.No, LastModified: s.LastModified}
	}
	w.state.LastUpdateSec = time.Now().Unix()
	return nil
}

// cycle runs exactly one iteration of spec.md Section 4.6's numbered
// polling-cycle steps 1-7 (the sleep in step 7 is performed by the
// caller, Run, so cycle itself is cheap to call from tests).
func (w *Worker) cycle(ctx context.Context) error {
	if w.breaker != nil && !w.breaker.Allow() {
		slog.Warn("board worker skipping cycle: circuit breaker open", "board", w.board)
		return nil
	}

	pages, err := w.client.Threads(ctx, w.board)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		if w.breaker != nil {
			before := w.breaker.State()
			w.breaker.RecordError(circuitbreaker.ClassifyError(err))
			w.recordBreakerState(before)
		}
		if isFatalDecodeError(err) {
			return err
		}
		slog.Warn("board worker threads-summary fetch failed", "board", w.board, "err", err)
		return nil
	}
	if w.breaker != nil {
		w.breaker.RecordSuccess()
		w.recordBreakerState(w.breaker.State())
	}

	diff := w.state.diffAndCommit(rchan.AllThreadSummaries(pages))
	if w.metrics != nil {
		w.metrics.PollCyclesTotal.WithLabelValues(w.board).Inc()
	}
	if len(diff.modified) == 0 {
		return nil
	}

	var breakerBefore circuitbreaker.State
	if w.breaker != nil {
		breakerBefore = w.breaker.State()
	}
	rollbacks, err := w.fetchModified(ctx, diff.modified)
	if w.breaker != nil {
		w.recordBreakerState(breakerBefore)
	}
	if err != nil {
		return err
	}
	for _, no := range rollbacks {
		w.state.rollback(no)
	}
	if w.metrics != nil && len(rollbacks) > 0 {
		w.metrics.RollbacksTotal.WithLabelValues(w.board).Add(float64(len(rollbacks)))
	}

	w.state.LastUpdateSec = time.Now().Unix()
	return nil
}

// recordBreakerState publishes the breaker's current gauge value and, on
// a closed/half-open to open transition, increments the trip counter.
func (w *Worker) recordBreakerState(before circuitbreaker.State) {
	if w.metrics == nil {
		return
	}
	after := w.breaker.State()
	w.metrics.CircuitBreakerState.WithLabelValues(w.board).Set(float64(after))
	if after == circuitbreaker.StateOpen && before != circuitbreaker.StateOpen {
		w.metrics.CircuitBreakerTrips.WithLabelValues(w.board).Inc()
	}
}

// fetchModified implements spec.md Section 4.6 steps 3-6: fan out one
// concurrent fetch per modified thread, publish posts newer than each
// task's captured PrevLastModified snapshot, and collect the thread
// numbers whose fetch failed so the caller can roll back their
// watermarks.
//
// Each per-thread outcome also feeds the board's breaker, not just the
// threads-summary fetch in cycle: a host that's failing individual
// thread fetches while its summary endpoint still answers is exactly
// as unhealthy as one failing the summary outright, and a board with
// dozens of threads in flight per cycle gives the breaker far more
// signal here than from one summary call alone. A bare 404 on a single
// thread is excluded from that signal (classifyStatus weights it 0) --
// a thread 404s routinely once it's pruned from the board, which says
// nothing about the board's health.
func (w *Worker) fetchModified(ctx context.Context, modified []modifiedThread) ([]int, error) {
	rollbackCh := make(chan int, len(modified))

	g, gctx := errgroup.WithContext(ctx)
	for _, mt := range modified {
		mt := mt
		g.Go(func() error {
			body, err := w.client.Thread(gctx, w.board, mt.no)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				if w.breaker != nil {
					w.breaker.RecordError(circuitbreaker.ClassifyError(err))
				}
				slog.Warn("board worker thread fetch failed", "board", w.board, "thread", mt.no, "err", err)
				rollbackCh <- mt.no
				return nil
			}
			if w.breaker != nil {
				w.breaker.RecordSuccess()
			}

			for _, p := range body.Posts {
				if p.Time > mt.prevLastModified {
					e := rchan.NewEvent(w.board, p)
					select {
					case w.events <- e:
						w.recordEventPublished(e)
					case <-gctx.Done():
						return gctx.Err()
					}
				}
			}
			return nil
		})
	}

	err := g.Wait()
	close(rollbackCh)
	if err != nil && !errors.Is(err, context.Canceled) {
		// A cancellation-driven failure is the only error fetchModified's
		// tasks return; anything else would be a bug in the task body
		// above, which never returns a non-nil, non-cancellation error.
		return nil, err
	}

	var rollbacks []int
	for no := range rollbackCh {
		rollbacks = append(rollbacks, no)
	}
	return rollbacks, err
}

// recordEventPublished increments the published-event counter, labelled
// by the same new_thread/new_post distinction the /events SSE wire
// format uses.
func (w *Worker) recordEventPublished(e rchan.Event) {
	if w.metrics == nil {
		return
	}
	kind := "new_post"
	if e.Kind == rchan.EventNewThread {
		kind = "new_thread"
	}
	w.metrics.EventsPublished.WithLabelValues(w.board, kind).Inc()
}

// isFatalDecodeError reports whether err represents a body that could
// not be decoded into the expected shape, which spec.md Section 4.6
// treats as fatal to the worker (as opposed to a retryable status
// error, which a failed cycle simply logs and retries next tick).
func isFatalDecodeError(err error) bool {
	return errors.Is(err, rchan.ErrInvalidResponse)
}

func sleepCancellable(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
