// Package httpclient implements the rate-limited, cache-aware HTTP
// facade the board worker and stream supervisor use to talk to the
// upstream read-only JSON API (spec.md Section 4.4). It is the only
// package in this module that issues network requests; callers never
// see *http.Response, only a decoded, typed result.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	rchan "github.com/rchanio/rchan/internal"
	"github.com/rchanio/rchan/internal/cache"
	"github.com/rchanio/rchan/internal/decode"
	"github.com/rchanio/rchan/internal/ratelimit"
	"github.com/rchanio/rchan/internal/telemetry"
)

// Transport is the minimal surface the facade needs from an HTTP
// client, mirroring internal/provider/anthropic/client.go's explicit
// *http.Client field -- narrowed to an interface here so tests can
// supply a fake without standing up a real listener.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config recognises the two knobs spec.md Section 4.4 names.
type Config struct {
	// UseHTTPS selects the request scheme. Default false.
	UseHTTPS bool
	// MaxRetries bounds getWithRetry's attempts. The reference
	// implementation defaults to unbounded; this engine exposes a
	// finite default (spec.md Section 4.4) to avoid a runaway worker
	// spinning forever against a dead host.
	MaxRetries int
}

// DefaultMaxRetries is used when a zero Config is supplied.
const DefaultMaxRetries = 5

// Client is the rate-limited, cache-aware facade. Build with New.
type Client struct {
	transport Transport
	limiter   *ratelimit.Limiter
	cache     *cache.Actor
	cfg       Config
	metrics   *telemetry.Metrics
}

// New creates a Client. limiter and c are shared with every other
// Client in the process talking to the same upstream, per spec.md
// Section 4.2 and Section 4.3 -- the rate limit and the cache are both
// global, not per-client.
func New(transport Transport, limiter *ratelimit.Limiter, c *cache.Actor, cfg Config) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	return &Client{transport: transport, limiter: limiter, cache: c, cfg: cfg}
}

// WithMetrics attaches a Prometheus metrics sink, returning c for
// chaining. A Client with no metrics attached skips recording entirely;
// nil is a valid, fully-functional state (mirrors the board worker's
// nil-safe *circuitbreaker.Breaker).
func (c *Client) WithMetrics(m *telemetry.Metrics) *Client {
	c.metrics = m
	return c
}

// Get implements spec.md Section 4.4 steps 1-7: construct the request,
// conditionally attach If-Modified-Since, acquire a rate-limiter
// permit, execute, and branch on status.
func (c *Client) Get(ctx context.Context, endpoint rchan.Endpoint) (rchan.DecodedResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.URL(c.cfg.UseHTTPS), nil)
	if err != nil {
		return rchan.DecodedResponse{}, fmt.Errorf("%w: %v", rchan.ErrTransport, err)
	}

	if lastCalled, ok := c.cache.GetLastCalled(ctx, endpoint); ok {
		req.Header.Set("If-Modified-Since", lastCalled.UTC().Format(http.TimeFormat))
	}

	waitStart := time.Now()
	if err := c.limiter.Acquire(ctx); err != nil {
		return rchan.DecodedResponse{}, err
	}
	if c.metrics != nil {
		c.metrics.RateLimiterWait.Observe(time.Since(waitStart).Seconds())
	}

	reqStart := time.Now()
	resp, err := c.transport.Do(req)
	if c.metrics != nil {
		c.metrics.HTTPRequestDuration.WithLabelValues(kindLabel(endpoint.Kind)).Observe(time.Since(reqStart).Seconds())
	}
	if err != nil {
		return rchan.DecodedResponse{}, fmt.Errorf("%w: %v", rchan.ErrTransport, err)
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.HTTPRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	}

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return rchan.DecodedResponse{}, fmt.Errorf("%w: %v", rchan.ErrTransport, err)
		}
		decoded, err := decode.Decode(endpoint.Kind, body)
		if err != nil {
			return rchan.DecodedResponse{}, err
		}
		c.cache.Update(ctx, endpoint, decoded)
		if c.metrics != nil {
			c.metrics.CacheMisses.Inc()
		}
		return decoded, nil

	case http.StatusNotModified:
		payload, ok := c.cache.GetLastPayload(ctx, endpoint)
		if !ok {
			return rchan.DecodedResponse{}, fmt.Errorf("%w: 304 with no cached payload for %s", rchan.ErrInvalidResponse, endpoint)
		}
		if c.metrics != nil {
			c.metrics.CacheHits.Inc()
		}
		return payload, nil

	case http.StatusNotFound:
		return rchan.DecodedResponse{}, &rchan.StatusError{Code: http.StatusNotFound}

	default:
		return rchan.DecodedResponse{}, &rchan.StatusError{Code: resp.StatusCode}
	}
}

// GetWithRetry wraps Get with the backoff policy of spec.md Section
// 4.4: before attempt k (0-indexed) sleep k seconds; 404 and a decode
// failure (rchan.ErrInvalidResponse) short-circuit immediately since
// neither is transient; any other error retries up to cfg.MaxRetries
// attempts, returning the last error (still unwrappable to its sentinel)
// on exhaustion.
func (c *Client) GetWithRetry(ctx context.Context, endpoint rchan.Endpoint) (rchan.DecodedResponse, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, time.Duration(attempt)*time.Second); err != nil {
				return rchan.DecodedResponse{}, err
			}
		}

		decoded, err := c.Get(ctx, endpoint)
		if err == nil {
			return decoded, nil
		}
		lastErr = err

		if errors.Is(err, rchan.ErrInvalidResponse) {
			return rchan.DecodedResponse{}, err
		}
		var statusErr *rchan.StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			return rchan.DecodedResponse{}, err
		}
	}
	return rchan.DecodedResponse{}, fmt.Errorf("%w: %w", rchan.ErrMaxRetriesExceeded, lastErr)
}

// kindLabel renders an endpoint kind as the low-cardinality label used
// by HTTPRequestDuration -- board and thread numbers would blow up the
// metric's cardinality, so only the resource shape is recorded.
func kindLabel(k rchan.Kind) string {
	switch k {
	case rchan.KindBoards:
		return "boards"
	case rchan.KindThreads:
		return "threads"
	case rchan.KindCatalog:
		return "catalog"
	case rchan.KindArchive:
		return "archive"
	case rchan.KindIndex:
		return "index"
	case rchan.KindThread:
		return "thread"
	default:
		return "unknown"
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
