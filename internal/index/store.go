package index

import (
	"fmt"
	"sort"
	"sync"

	"github.com/logweave/logweave/internal/logline"
)

// SourceStore holds the append-only line sequence for one source.
//
// Line numbers are dense: they start at 0 and grow by exactly one per
// appended line, with no gaps and no reordering after append. Lines that
// arrive with out-of-order timestamps (clock skew during tailing) are kept
// in arrival order; a separate time-ordered index is maintained for merged
// iteration.
type SourceStore struct {
	mu     sync.RWMutex
	info   logline.SourceInfo
	lines  []*logline.Line
	byTime []int // positions into lines, sorted by (timestamp, line number)
}

func newSourceStore(info logline.SourceInfo) *SourceStore {
	return &SourceStore{info: info}
}

// ID returns the source's identifier.
func (s *SourceStore) ID() int {
	return s.info.ID
}

// Info returns a copy of the source's metadata.
func (s *SourceStore) Info() logline.SourceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// Status returns the source's current status.
func (s *SourceStore) Status() logline.SourceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info.Status
}

// SetStatus mutates source metadata only; it never touches lines and
// therefore never requires a version bump.
func (s *SourceStore) SetStatus(status logline.SourceStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Error is terminal.
	if s.info.Status.Kind == logline.StatusError {
		return
	}
	s.info.Status = status
}

// Len returns the number of stored lines.
func (s *SourceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines)
}

// Get returns the line at the given line number. Line numbers beyond the
// current length (for example from a bookmark that outlived a truncation
// reset) report an out-of-range error instead of panicking.
func (s *SourceStore) Get(lineNumber int) (*logline.Line, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if lineNumber < 0 || lineNumber >= len(s.lines) {
		return nil, fmt.Errorf("source %d line %d: %w", s.info.ID, lineNumber, ErrNotFound)
	}
	return s.lines[lineNumber], nil
}

// append stores parsed records, assigning IDs that continue the source's
// line numbering, and merges them into the time-ordered index. Amortized
// O(1) per line plus the sort of the new batch. The caller (LogIndex) is
// responsible for the version bump.
func (s *SourceStore) append(records []logline.Record) int {
	if len(records) == 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	first := len(s.lines)
	for i, rec := range records {
		id := logline.LineID{
			Timestamp:  rec.Timestamp,
			SourceID:   s.info.ID,
			LineNumber: first + i,
		}
		s.lines = append(s.lines, logline.NewLine(id, rec))
	}

	// Sort only the new positions. Both runs are then ordered: a batch
	// starting at or after the current tail, the common case for live
	// logs, extends the index in place; anything else merges linearly.
	fresh := make([]int, len(records))
	for i := range fresh {
		fresh[i] = first + i
	}
	sort.SliceStable(fresh, func(a, b int) bool {
		return s.lines[fresh[a]].ID.Less(s.lines[fresh[b]].ID)
	})
	if n := len(s.byTime); n == 0 || !s.lines[fresh[0]].ID.Less(s.lines[s.byTime[n-1]].ID) {
		s.byTime = append(s.byTime, fresh...)
	} else {
		s.byTime = mergeOrdered(s.lines, s.byTime, fresh)
	}

	return first
}

// resort rebuilds the time-ordered index from scratch. Stored lines and
// their IDs are untouched, so the rebuild is invisible to ID holders.
func (s *SourceStore) resort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	order := make([]int, len(s.lines))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return s.lines[order[a]].ID.Less(s.lines[order[b]].ID)
	})
	s.byTime = order
}

// snapshot returns an immutable time-ordered view of the current lines.
// Appends only ever grow the line slice, and the order slice is either
// replaced wholesale or extended past every handed-out length, so the
// copied headers stay consistent.
func (s *SourceStore) snapshot() TimeOrdered {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return TimeOrdered{lines: s.lines, order: s.byTime}
}

// mergeOrdered merges two position runs that are each ordered by LineID.
// Existing positions win ties, which preserves line-number order for
// equal timestamps since existing line numbers are always smaller.
func mergeOrdered(lines []*logline.Line, existing, fresh []int) []int {
	merged := make([]int, 0, len(existing)+len(fresh))
	i, j := 0, 0
	for i < len(existing) && j < len(fresh) {
		if !lines[fresh[j]].ID.Less(lines[existing[i]].ID) {
			merged = append(merged, existing[i])
			i++
		} else {
			merged = append(merged, fresh[j])
			j++
		}
	}
	merged = append(merged, existing[i:]...)
	merged = append(merged, fresh[j:]...)
	return merged
}

// TimeOrdered is a read-only, time-ordered view of one source's lines at
// a point in time. Positions run from 0 to Len()-1 in ascending LineID
// order regardless of arrival order.
type TimeOrdered struct {
	lines []*logline.Line
	order []int
}

// Len returns the number of lines in the view.
func (t TimeOrdered) Len() int {
	return len(t.order)
}

// At returns the line at the given time-ordered position.
func (t TimeOrdered) At(pos int) *logline.Line {
	return t.lines[t.order[pos]]
}
