// Package board implements the per-board polling worker: the engine's
// largest component (spec.md Section 2). One Worker watches one board,
// diffing each polling cycle against a per-thread watermark and
// publishing newly observed posts.
package board

import rchan "github.com/rchanio/rchan/internal"

// ThreadWatermark tracks one thread's change-detection state within a
// board (spec.md Section 3). LastModified advances monotonically on a
// successful thread refresh; PrevLastModified records the value it
// displaced, used both to filter "new" posts on the next fetch and to
// roll back if that fetch fails.
type ThreadWatermark struct {
	No               int
	LastModified     int64
	PrevLastModified int64
}

// State is a board worker's exclusively-owned view of its board: the
// last time it completed a cycle and the watermark for every thread
// currently visible on the board (spec.md Section 3, "BoardState").
type State struct {
	LastUpdateSec int64
	Watermarks    map[int]ThreadWatermark
}

// NewState creates an empty State. capacityHint should be the board's
// advertised thread-limit (pages * per_page) when known.
func NewState(capacityHint int) *State {
	return &State{Watermarks: make(map[int]ThreadWatermark, capacityHint)}
}

// diffResult is the outcome of diffing one polling cycle's threads
// summary against the current watermarks.
type diffResult struct {
	// modified holds the threads whose watermark advanced this cycle,
	// ordered by ascending LastModified (spec.md Section 4.6 step 2) --
	// older modifications are fetched first, so the rate limiter
	// releases fetches in age order.
	modified []modifiedThread
}

// modifiedThread pairs a thread number with the PrevLastModified
// snapshot taken *before* this cycle's diff mutated the watermark
// (spec.md Section 4.6 step 3) -- the fetch task uses this snapshot to
// decide which posts are new and to roll back on failure. lastModified
// is the summary's last_modified for the thread, used only for ordering.
type modifiedThread struct {
	no               int
	prevLastModified int64
	lastModified     int64
}

// diffAndCommit applies spec.md Section 4.6 step 2 to s in place: insert
// watermarks for newly seen threads, advance watermarks for threads
// whose last_modified increased, and evict watermarks for threads no
// longer present in summary. It returns the modified threads in
// ascending LastModified order.
func (s *State) diffAndCommit(summary []rchan.ThreadSummary) diffResult {
	seen := make(map[int]struct{}, len(summary))
	var modified []modifiedThread

	for _, t := range summary {
		seen[t.No] = struct{}{}

		wm, known := s.Watermarks[t.No]
		switch {
		case !known:
			s.Watermarks[t.No] = ThreadWatermark{No: t.No}
			modified = append(modified, modifiedThread{no: t.No, prevLastModified: 0, lastModified: t.LastModified})

		case t.LastModified > wm.LastModified:
			prev := wm.LastModified
			s.Watermarks[t.No] = ThreadWatermark{
				No:               t.No,
				LastModified:     t.LastModified,
				PrevLastModified: prev,
			}
			modified = append(modified, modifiedThread{no: t.No, prevLastModified: prev, lastModified: t.LastModified})
		}
	}

	for no := range s.Watermarks {
		if _, ok := seen[no]; !ok {
			delete(s.Watermarks, no)
		}
	}

	sortModifiedByLastModified(modified)
	return diffResult{modified: modified}
}

// sortModifiedByLastModified orders modified ascending by each thread's
// summary last_modified (a newly seen thread's committed watermark is
// still 0, so the watermark cannot serve as the key), a small enough
// slice that insertion sort avoids pulling in sort for what's usually a
// handful of threads per cycle.
func sortModifiedByLastModified(modified []modifiedThread) {
	for i := 1; i < len(modified); i++ {
		j := i
		for j > 0 && modified[j-1].lastModified > modified[j].lastModified {
			modified[j-1], modified[j] = modified[j], modified[j-1]
			j--
		}
	}
}

// rollback restores watermarks[no].LastModified to the PrevLastModified
// recorded before this cycle's diff, per spec.md Section 4.6 step 6, so
// the next cycle re-detects the thread as modified and retries the
// fetch.
func (s *State) rollback(no int) {
	wm, ok := s.Watermarks[no]
	if !ok {
		return
	}
	wm.LastModified = wm.PrevLastModified
	s.Watermarks[no] = wm
}
