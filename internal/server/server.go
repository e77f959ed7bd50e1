// Package server implements the HTTP surface of the board-watch engine:
// health/readiness probes, Prometheus metrics, and an SSE stream of
// newly observed posts (spec.md Section 4.7's consumer, exposed over
// the wire).
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	rchan "github.com/rchanio/rchan/internal"
)

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// EventSource is the subset of *stream.Supervisor the server depends on.
type EventSource interface {
	Consumer() <-chan rchan.Event
}

// Deps holds all dependencies for the HTTP server.
type Deps struct {
	Events         EventSource  // required: the fan-in channel to broadcast over /events
	MetricsHandler http.Handler // nil = no /metrics endpoint
	Tracer         trace.Tracer // nil = no distributed tracing
	ReadyCheck     ReadyChecker // nil = always ready
	KeepAlive      time.Duration
}

type server struct {
	deps      Deps
	broadcast *broadcaster
}

const defaultKeepAlive = 15 * time.Second

func (s *server) keepAliveTicker() *time.Ticker {
	d := s.deps.KeepAlive
	if d <= 0 {
		d = defaultKeepAlive
	}
	return time.NewTicker(d)
}

// New creates an http.Handler with all routes and middleware wired, and
// starts the broadcaster goroutine draining deps.Events.Consumer(). The
// returned handler is ready to serve as soon as New returns.
func New(deps Deps) http.Handler {
	s := &server{deps: deps, broadcast: newBroadcaster()}
	go s.broadcast.run(deps.Events.Consumer())

	r := chi.NewRouter()

	r.Use(securityHeaders)
	r.Use(recovery)
	r.Use(requestID)
	r.Use(logging)
	if deps.Tracer != nil {
		r.Use(tracingMiddleware(deps.Tracer))
	}

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Get("/events", s.handleEvents)

	return r
}
