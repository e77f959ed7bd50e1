package board

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	rchan "github.com/rchanio/rchan/internal"
	"github.com/rchanio/rchan/internal/circuitbreaker"
)

// fakeFetcher drives a scripted sequence of threads-summary responses
// (one per call to Threads) and per-thread bodies keyed by thread
// number, letting tests script exactly the cycle sequence spec.md's
// scenarios describe without a real HTTP stack underneath.
type fakeFetcher struct {
	mu sync.Mutex

	threadsSeq   [][]rchan.ThreadsPage
	threadsErrSeq []error
	threadsCalls int

	threadBodies map[int]rchan.ThreadBody
	threadErrs   map[int]error
	threadCalls  map[int]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		threadBodies: make(map[int]rchan.ThreadBody),
		threadErrs:   make(map[int]error),
		threadCalls:  make(map[int]int),
	}
}

func (f *fakeFetcher) Threads(ctx context.Context, board string) ([]rchan.ThreadsPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.threadsCalls
	f.threadsCalls++
	if idx >= len(f.threadsSeq) {
		idx = len(f.threadsSeq) - 1
	}
	var err error
	if idx < len(f.threadsErrSeq) {
		err = f.threadsErrSeq[idx]
	}
	if err != nil {
		return nil, err
	}
	return f.threadsSeq[idx], nil
}

func (f *fakeFetcher) Thread(ctx context.Context, board string, no int) (rchan.ThreadBody, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threadCalls[no]++
	if err, ok := f.threadErrs[no]; ok {
		return rchan.ThreadBody{}, err
	}
	return f.threadBodies[no], nil
}

func (f *fakeFetcher) callsFor(no int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.threadCalls[no]
}

func page(threads ...rchan.ThreadSummary) []rchan.ThreadsPage {
	return []rchan.ThreadsPage{{Page: 0, Threads: threads}}
}

// TestWorker_Initialize_PopulatesWithoutPublishing covers the
// baseline-snapshot rule: the first threads-summary fetch seeds
// watermarks but never treats them as newly observed.
func TestWorker_Initialize_PopulatesWithoutPublishing(t *testing.T) {
	t.Parallel()
	f := newFakeFetcher()
	f.threadsSeq = [][]rchan.ThreadsPage{page(rchan.ThreadSummary{No: 1, LastModified: 1000})}

	events := make(chan rchan.Event, 10)
	w := New("g", f, nil, events, time.Hour)

	if err := w.initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("initialize published %d events, want 0", len(events))
	}
	wm := w.state.Watermarks[1]
	if wm.LastModified != 1000 {
		t.Errorf("watermark = %+v", wm)
	}
}

// TestWorker_Cycle_NewThreadPublishesAllPosts covers spec.md scenario
// S3: a thread unknown to the worker is fetched in full and every post
// in it is published (PrevLastModified starts at 0 for new threads).
func TestWorker_Cycle_NewThreadPublishesAllPosts(t *testing.T) {
	t.Parallel()
	f := newFakeFetcher()
	f.threadsSeq = [][]rchan.ThreadsPage{page(rchan.ThreadSummary{No: 1, LastModified: 1000})}
	f.threadBodies[1] = rchan.ThreadBody{Posts: []rchan.Post{
		{No: 1, Resto: 0, Time: 500},
		{No: 2, Resto: 1, Time: 600},
	}}

	events := make(chan rchan.Event, 10)
	w := New("g", f, nil, events, time.Hour)

	if err := w.cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	close(events)

	var got []rchan.Event
	for e := range events {
		got = append(got, e)
	}
	if len(got) != 2 {
		t.Fatalf("published %d events, want 2: %+v", len(got), got)
	}
	if got[0].Kind != rchan.EventNewThread {
		t.Errorf("first event kind = %v, want EventNewThread", got[0].Kind)
	}
	if got[1].Kind != rchan.EventNewPost {
		t.Errorf("second event kind = %v, want EventNewPost", got[1].Kind)
	}
}

// TestWorker_Cycle_RollsBackWatermarkOnFetchFailure covers spec.md
// scenario S4: a per-thread fetch failure must not advance the
// watermark, so the next cycle re-detects and retries it.
func TestWorker_Cycle_RollsBackWatermarkOnFetchFailure(t *testing.T) {
	t.Parallel()
	f := newFakeFetcher()
	f.threadsSeq = [][]rchan.ThreadsPage{page(rchan.ThreadSummary{No: 1, LastModified: 1000})}
	f.threadErrs[1] = errors.New("boom")

	events := make(chan rchan.Event, 10)
	w := New("g", f, nil, events, time.Hour)
	w.state.Watermarks[1] = ThreadWatermark{No: 1, LastModified: 500, PrevLastModified: 100}

	if err := w.cycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	wm := w.state.Watermarks[1]
	if wm.LastModified != 500 {
		t.Errorf("LastModified = %d, want rolled back to 500", wm.LastModified)
	}
	if len(events) != 0 {
		t.Errorf("published %d events on a failed fetch, want 0", len(events))
	}
}

// TestWorker_Cycle_EvictsDeletedThread covers spec.md scenario S5: a
// thread absent from the next threads-summary is removed from state.
func TestWorker_Cycle_EvictsDeletedThread(t *testing.T) {
	t.Parallel()
	f := newFakeFetcher()
	f.threadsSeq = [][]rchan.ThreadsPage{page()} // thread 1 has fallen off the board

	events := make(chan rchan.Event, 10)
	w := New("g", f, nil, events, time.Hour)
	w.state.Watermarks[1] = ThreadWatermark{No: 1, LastModified: 500}

	if err := w.cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, ok := w.state.Watermarks[1]; ok {
		t.Error("thread 1 should have been evicted")
	}
}

// TestWorker_Cycle_OnlyPublishesPostsNewerThanPrevLastModified verifies
// the post filter uses the snapshot taken before the diff, not the
// freshly committed LastModified.
func TestWorker_Cycle_OnlyPublishesPostsNewerThanPrevLastModified(t *testing.T) {
	t.Parallel()
	f := newFakeFetcher()
	f.threadsSeq = [][]rchan.ThreadsPage{page(rchan.ThreadSummary{No: 1, LastModified: 1000})}
	f.threadBodies[1] = rchan.ThreadBody{Posts: []rchan.Post{
		{No: 1, Resto: 0, Time: 100},
		{No: 2, Resto: 1, Time: 400},
		{No: 3, Resto: 1, Time: 900},
	}}

	events := make(chan rchan.Event, 10)
	w := New("g", f, nil, events, time.Hour)
	w.state.Watermarks[1] = ThreadWatermark{No: 1, LastModified: 300, PrevLastModified: 300}

	if err := w.cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	close(events)

	var nos []int
	for e := range events {
		nos = append(nos, e.Post.No)
	}
	if len(nos) != 2 || nos[0] != 2 || nos[1] != 3 {
		t.Fatalf("published posts %v, want [2 3]", nos)
	}
}

// TestWorker_Cycle_NoModifiedThreadsIsANoop ensures an unchanged summary
// makes no thread fetches and publishes nothing.
func TestWorker_Cycle_NoModifiedThreadsIsANoop(t *testing.T) {
	t.Parallel()
	f := newFakeFetcher()
	f.threadsSeq = [][]rchan.ThreadsPage{page(rchan.ThreadSummary{No: 1, LastModified: 500})}

	events := make(chan rchan.Event, 10)
	w := New("g", f, nil, events, time.Hour)
	w.state.Watermarks[1] = ThreadWatermark{No: 1, LastModified: 500}

	if err := w.cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.callsFor(1) != 0 {
		t.Errorf("thread 1 fetched %d times, want 0", f.callsFor(1))
	}
}

// TestWorker_Run_StopsOnCancel ensures the polling loop exits cleanly
// when its context is cancelled, whether mid-sleep or mid-cycle.
func TestWorker_Run_StopsOnCancel(t *testing.T) {
	t.Parallel()
	f := newFakeFetcher()
	f.threadsSeq = [][]rchan.ThreadsPage{page()}

	events := make(chan rchan.Event, 10)
	w := New("g", f, nil, events, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil on cancellation", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

// TestWorker_Cycle_PerThreadFailuresFeedBreaker verifies that fetchModified
// records every per-thread outcome into the board's breaker, not just the
// threads-summary fetch in cycle: a handful of modified threads that all
// fail with a retryable status must be enough to trip the breaker even
// though the summary fetch itself succeeded.
func TestWorker_Cycle_PerThreadFailuresFeedBreaker(t *testing.T) {
	t.Parallel()
	f := newFakeFetcher()
	f.threadsSeq = [][]rchan.ThreadsPage{page(
		rchan.ThreadSummary{No: 1, LastModified: 1000},
		rchan.ThreadSummary{No: 2, LastModified: 1000},
		rchan.ThreadSummary{No: 3, LastModified: 1000},
		rchan.ThreadSummary{No: 4, LastModified: 1000},
	)}
	statusErr := &rchan.StatusError{Code: 503}
	f.threadErrs[1] = statusErr
	f.threadErrs[2] = statusErr
	f.threadErrs[3] = statusErr
	f.threadErrs[4] = statusErr

	breaker := circuitbreaker.NewBreaker(circuitbreaker.Config{
		ErrorThreshold: 0.30,
		MinSamples:     4,
		WindowSeconds:  60,
		OpenTimeout:    30 * time.Second,
	})

	events := make(chan rchan.Event, 10)
	w := New("g", f, breaker, events, time.Hour)
	// Prime the watermarks so all four threads are seen as modified
	// against a lower prior LastModified.
	for no := 1; no <= 4; no++ {
		w.state.Watermarks[no] = ThreadWatermark{No: no, LastModified: 500}
	}

	if err := w.cycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := breaker.State(); got != circuitbreaker.StateOpen {
		t.Errorf("breaker.State() = %v, want StateOpen after 4 failed per-thread fetches", got)
	}
}

// TestWorker_Run_FatalOnInvalidResponse ensures a decode error from the
// threads-summary fetch terminates the worker rather than retrying
// forever.
func TestWorker_Run_FatalOnInvalidResponse(t *testing.T) {
	t.Parallel()
	f := newFakeFetcher()
	f.threadsSeq = [][]rchan.ThreadsPage{nil}
	f.threadsErrSeq = []error{rchan.ErrInvalidResponse}

	events := make(chan rchan.Event, 10)
	w := New("g", f, nil, events, time.Hour)

	err := w.Run(context.Background())
	if !errors.Is(err, rchan.ErrInvalidResponse) {
		t.Errorf("Run() = %v, want wrapping ErrInvalidResponse", err)
	}
}
