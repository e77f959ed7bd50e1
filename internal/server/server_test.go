package server

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	rchan "github.com/rchanio/rchan/internal"
)

type fakeEventSource struct {
	ch chan rchan.Event
}

func (f *fakeEventSource) Consumer() <-chan rchan.Event { return f.ch }

func newTestServer(t *testing.T, opts Deps) (http.Handler, *fakeEventSource) {
	t.Helper()
	src := &fakeEventSource{ch: make(chan rchan.Event)}
	opts.Events = src
	if opts.KeepAlive == 0 {
		opts.KeepAlive = time.Hour
	}
	return New(opts), src
}

func TestHandleHealthz(t *testing.T) {
	t.Parallel()
	h, _ := newTestServer(t, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "ok")
	}
}

func TestHandleReadyz_ChecksReadyCheck(t *testing.T) {
	t.Parallel()
	h, _ := newTestServer(t, Deps{
		ReadyCheck: func(ctx context.Context) error { return errors.New("not yet") },
	})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHandleReadyz_DefaultsToReady(t *testing.T) {
	t.Parallel()
	h, _ := newTestServer(t, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRequestID_GeneratedWhenAbsent(t *testing.T) {
	t.Parallel()
	h, _ := newTestServer(t, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("expected a generated request ID header")
	}
}

func TestRequestID_ClientSuppliedIDPreservedWhenValid(t *testing.T) {
	t.Parallel()
	h, _ := newTestServer(t, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "my-valid-id.123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get(requestIDHeader); got != "my-valid-id.123" {
		t.Errorf("request id = %q, want the client-supplied value", got)
	}
}

func TestRequestID_InvalidClientIDReplaced(t *testing.T) {
	t.Parallel()
	h, _ := newTestServer(t, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "has a space")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get(requestIDHeader); got == "has a space" {
		t.Error("invalid request id should have been replaced")
	}
}

func TestHandleEvents_StreamsPublishedEvents(t *testing.T) {
	t.Parallel()
	h, src := newTestServer(t, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.ServeHTTP(rec, req)
		close(done)
	}()

	// Give the handler time to subscribe before publishing.
	time.Sleep(20 * time.Millisecond)
	src.ch <- rchan.NewEvent("g", rchan.Post{No: 1, Resto: 0})

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	body := rec.Body.String()
	if !strings.Contains(body, "new_thread") {
		t.Errorf("body = %q, want it to contain a new_thread frame", body)
	}
	if !strings.HasPrefix(body, "data: ") {
		t.Errorf("body = %q, want an SSE data frame", body)
	}
}

func TestHandleEvents_SetsSSEHeaders(t *testing.T) {
	t.Parallel()
	h, _ := newTestServer(t, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.ServeHTTP(rec, req)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	<-done

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
}

func TestBroadcaster_FansOutToMultipleSubscribers(t *testing.T) {
	t.Parallel()
	b := newBroadcaster()
	src := make(chan rchan.Event)
	go b.run(src)

	subA := b.subscribe()
	subB := b.subscribe()
	defer b.unsubscribe(subA)
	defer b.unsubscribe(subB)

	e := rchan.NewEvent("v", rchan.Post{No: 2, Resto: 1})
	src <- e

	for _, sub := range []chan rchan.Event{subA, subB} {
		select {
		case got := <-sub:
			if got.Board != "v" {
				t.Errorf("board = %q, want v", got.Board)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for fan-out")
		}
	}
}

func TestBroadcaster_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	t.Parallel()
	b := newBroadcaster()
	src := make(chan rchan.Event)
	go b.run(src)

	slow := b.subscribe() // never drained
	fast := b.subscribe()
	defer b.unsubscribe(fast)
	_ = slow

	for i := 0; i < 100; i++ {
		src <- rchan.NewEvent("g", rchan.Post{No: i, Resto: 1})
	}

	select {
	case <-fast:
	case <-time.After(time.Second):
		t.Fatal("fast subscriber never received an event; slow one blocked the fan-out")
	}
}

func drainSSE(t *testing.T, body string) []string {
	t.Helper()
	var frames []string
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "data: ") {
			frames = append(frames, strings.TrimPrefix(line, "data: "))
		}
	}
	return frames
}
