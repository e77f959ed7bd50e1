package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	rchan "github.com/rchanio/rchan/internal"
)

var plainCT = []string{"text/plain; charset=utf-8"}
var jsonCT = []string{"application/json"}

var okBody = []byte("ok")
var notReadyBody = []byte("not ready")

func (s *server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header()["Content-Type"] = plainCT
	w.WriteHeader(http.StatusOK)
	w.Write(okBody)
}

func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.ReadyCheck != nil {
		if err := s.deps.ReadyCheck(r.Context()); err != nil {
			w.Header()["Content-Type"] = plainCT
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write(notReadyBody)
			return
		}
	}
	w.Header()["Content-Type"] = plainCT
	w.WriteHeader(http.StatusOK)
	w.Write(okBody)
}

// wireEvent is the JSON shape published on the /events SSE stream. Kind
// is rendered as a string rather than Event.Kind's raw int so the wire
// format doesn't depend on iota ordering.
type wireEvent struct {
	Kind  string     `json:"kind"`
	Board string     `json:"board"`
	Post  rchan.Post `json:"post"`
}

func toWireEvent(e rchan.Event) wireEvent {
	kind := "new_post"
	if e.Kind == rchan.EventNewThread {
		kind = "new_thread"
	}
	return wireEvent{Kind: kind, Board: e.Board, Post: e.Post}
}

// handleEvents streams every newly observed post across all subscribed
// boards as Server-Sent Events (spec.md Section 4.7's consumer).
func (s *server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse("streaming unsupported"))
		return
	}

	sub := s.broadcast.subscribe()
	defer s.broadcast.unsubscribe(sub)

	writeSSEHeaders(w)
	flusher.Flush()

	ctx := r.Context()
	keepAlive := s.keepAliveTicker()
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			writeSSEKeepAlive(w)
			flusher.Flush()
		case e, ok := <-sub:
			if !ok {
				writeSSEError(w, "stream closed")
				flusher.Flush()
				return
			}
			data, err := json.Marshal(toWireEvent(e))
			if err != nil {
				slog.Error("failed to encode event", "error", err)
				continue
			}
			writeSSEData(w, data)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
		return
	}
	w.Header()["Content-Type"] = jsonCT
	w.WriteHeader(status)
	w.Write(data)
}

type apiError struct {
	Error string `json:"error"`
}

func errorResponse(msg string) apiError {
	return apiError{Error: msg}
}
