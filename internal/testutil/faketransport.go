// Package testutil provides configurable fakes shared across this
// module's tests: a queue of canned responses plus a call log a test
// can assert against, in place of a mocking library.
package testutil

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

// FakeResponse is one canned response a FakeTransport returns in order.
type FakeResponse struct {
	Status int
	Body   string
	Err    error
}

// FakeTransport implements httpclient.Transport. Responses are consumed
// in order per call to Do; once exhausted, the last response repeats so
// a test doesn't need to size the queue exactly to the number of polling
// cycles it drives.
type FakeTransport struct {
	mu        sync.Mutex
	responses []FakeResponse
	next      int
	requests  []*http.Request
}

// NewFakeTransport creates a FakeTransport that serves responses in
// order.
func NewFakeTransport(responses ...FakeResponse) *FakeTransport {
	return &FakeTransport{responses: responses}
}

// Do implements httpclient.Transport.
func (f *FakeTransport) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	if len(f.responses) == 0 {
		f.mu.Unlock()
		return nil, io.ErrUnexpectedEOF
	}
	idx := f.next
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	} else {
		f.next++
	}
	resp := f.responses[idx]
	f.mu.Unlock()

	if resp.Err != nil {
		return nil, resp.Err
	}
	return &http.Response{
		StatusCode: resp.Status,
		Body:       io.NopCloser(bytes.NewBufferString(resp.Body)),
		Header:     make(http.Header),
	}, nil
}

// Requests returns every request observed so far, in call order.
func (f *FakeTransport) Requests() []*http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*http.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// CallCount returns how many times Do has been invoked.
func (f *FakeTransport) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}
