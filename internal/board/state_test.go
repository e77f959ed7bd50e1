package board

import (
	"testing"

	rchan "github.com/rchanio/rchan/internal"
)

func TestDiffAndCommit_NewThreadInsertsZeroWatermark(t *testing.T) {
	t.Parallel()
	s := NewState(0)

	diff := s.diffAndCommit([]rchan.ThreadSummary{{No: 1, LastModified: 500}})

	if len(diff.modified) != 1 || diff.modified[0].no != 1 || diff.modified[0].prevLastModified != 0 {
		t.Fatalf("modified = %+v", diff.modified)
	}
	wm := s.Watermarks[1]
	if wm.LastModified != 0 || wm.PrevLastModified != 0 {
		t.Errorf("watermark = %+v, want zero-valued per spec (first cycle only marks modified)", wm)
	}
}

func TestDiffAndCommit_AdvanceOnIncreasedLastModified(t *testing.T) {
	t.Parallel()
	s := NewState(0)
	s.Watermarks[1] = ThreadWatermark{No: 1, LastModified: 100}

	diff := s.diffAndCommit([]rchan.ThreadSummary{{No: 1, LastModified: 200}})

	if len(diff.modified) != 1 || diff.modified[0].prevLastModified != 100 {
		t.Fatalf("modified = %+v", diff.modified)
	}
	wm := s.Watermarks[1]
	if wm.LastModified != 200 || wm.PrevLastModified != 100 {
		t.Errorf("watermark = %+v", wm)
	}
}

func TestDiffAndCommit_UnchangedThreadNotModified(t *testing.T) {
	t.Parallel()
	s := NewState(0)
	s.Watermarks[1] = ThreadWatermark{No: 1, LastModified: 100}

	diff := s.diffAndCommit([]rchan.ThreadSummary{{No: 1, LastModified: 100}})

	if len(diff.modified) != 0 {
		t.Fatalf("modified = %+v, want none", diff.modified)
	}
}

func TestDiffAndCommit_EvictsThreadsNoLongerPresent(t *testing.T) {
	t.Parallel()
	s := NewState(0)
	s.Watermarks[1] = ThreadWatermark{No: 1, LastModified: 100}
	s.Watermarks[2] = ThreadWatermark{No: 2, LastModified: 200}

	s.diffAndCommit([]rchan.ThreadSummary{{No: 1, LastModified: 100}})

	if _, ok := s.Watermarks[2]; ok {
		t.Error("thread 2 should have been evicted")
	}
	if _, ok := s.Watermarks[1]; !ok {
		t.Error("thread 1 should still be present")
	}
}

func TestDiffAndCommit_ModifiedOrderedAscendingByLastModified(t *testing.T) {
	t.Parallel()
	s := NewState(0)

	diff := s.diffAndCommit([]rchan.ThreadSummary{
		{No: 3, LastModified: 300},
		{No: 1, LastModified: 100},
		{No: 2, LastModified: 200},
	})

	if len(diff.modified) != 3 {
		t.Fatalf("modified = %+v", diff.modified)
	}
	got := []int{diff.modified[0].no, diff.modified[1].no, diff.modified[2].no}
	want := []int{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestRollback_RestoresPrevLastModified(t *testing.T) {
	t.Parallel()
	s := NewState(0)
	s.Watermarks[1] = ThreadWatermark{No: 1, LastModified: 200, PrevLastModified: 100}

	s.rollback(1)

	wm := s.Watermarks[1]
	if wm.LastModified != 100 {
		t.Errorf("LastModified = %d, want 100", wm.LastModified)
	}
	if wm.PrevLastModified != 100 {
		t.Errorf("PrevLastModified = %d, want unchanged 100", wm.PrevLastModified)
	}
}

func TestRollback_UnknownThreadIsNoop(t *testing.T) {
	t.Parallel()
	s := NewState(0)
	s.rollback(99)
	if _, ok := s.Watermarks[99]; ok {
		t.Error("rollback should not create a watermark for an unknown thread")
	}
}
