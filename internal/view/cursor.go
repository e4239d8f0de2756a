package view

import (
	"sort"
	"time"

	"github.com/logweave/logweave/internal/index"
	"github.com/logweave/logweave/internal/logline"
)

// CursorNavigator provides bounded-memory windowing over arbitrarily large
// indices. Instead of materializing every match the way FilteredView does,
// it keeps one forward and one backward cursor per source around a
// timestamp anchor and grows a visible window by incremental k-way merge,
// discarding non-matching lines as it goes. Memory is bounded by the
// window size, not by file size or match count.
type CursorNavigator struct {
	idx *index.LogIndex
	// match filters window content; nil admits every line.
	match func(*logline.Line) bool

	anchor time.Time
	snaps  []index.TimeOrdered
	fwd    []int // next candidate position per source, == Len() when exhausted
	back   []int // previous candidate position per source, -1 when exhausted

	backBuf []*logline.Line // lines before the anchor, closest first
	fwdBuf  []*logline.Line // lines at/after the anchor, ascending
}

// NewCursorNavigator creates a navigator over the index. A nil match
// function admits all lines.
func NewCursorNavigator(idx *index.LogIndex, match func(*logline.Line) bool) *CursorNavigator {
	return &CursorNavigator{idx: idx, match: match}
}

// AnchorTimestamp returns the current logical scroll position.
func (c *CursorNavigator) AnchorTimestamp() time.Time {
	return c.anchor
}

// JumpToTimestamp re-anchors the window. Each source's cursor pair is
// placed by partition point at the first line with timestamp >= ts, so the
// whole jump costs O(k log n). The window buffers are discarded; re-jumping
// is the cheap way to recover from structural changes underneath the view.
func (c *CursorNavigator) JumpToTimestamp(ts time.Time) {
	c.anchor = ts
	c.snaps = c.idx.Snapshots()
	c.fwd = make([]int, len(c.snaps))
	c.back = make([]int, len(c.snaps))
	for i, snap := range c.snaps {
		p := sort.Search(snap.Len(), func(j int) bool {
			return !snap.At(j).ID.Timestamp.Before(ts)
		})
		c.fwd[i] = p
		c.back[i] = p - 1
	}
	c.backBuf = c.backBuf[:0]
	c.fwdBuf = c.fwdBuf[:0]
}

// FillVisible grows the window around the anchor until the backward and
// forward buffers each hold needed/2 matching lines or their sources are
// exhausted. Safe to call repeatedly with growing needs; cursors persist
// between calls.
func (c *CursorNavigator) FillVisible(needed int) {
	if c.snaps == nil {
		c.JumpToTimestamp(c.anchor)
	}
	half := (needed + 1) / 2
	for len(c.fwdBuf) < half && c.stepForward() {
	}
	for len(c.backBuf) < half && c.stepBackward() {
	}
}

// Window returns the visible lines in ascending order.
func (c *CursorNavigator) Window() []*logline.Line {
	window := make([]*logline.Line, 0, len(c.backBuf)+len(c.fwdBuf))
	for i := len(c.backBuf) - 1; i >= 0; i-- {
		window = append(window, c.backBuf[i])
	}
	return append(window, c.fwdBuf...)
}

// stepForward advances whichever source cursor offers the next closest
// line after the anchor. Returns false when every source is exhausted.
func (c *CursorNavigator) stepForward() bool {
	for {
		best := -1
		for i, snap := range c.snaps {
			if c.fwd[i] >= snap.Len() {
				continue
			}
			if best < 0 || snap.At(c.fwd[i]).ID.Less(c.snaps[best].At(c.fwd[best]).ID) {
				best = i
			}
		}
		if best < 0 {
			return false
		}
		line := c.snaps[best].At(c.fwd[best])
		c.fwd[best]++
		if c.match == nil || c.match(line) {
			c.fwdBuf = append(c.fwdBuf, line)
			return true
		}
		// Non-matching lines are dropped, never buffered.
	}
}

// stepBackward is the mirror of stepForward for lines before the anchor.
func (c *CursorNavigator) stepBackward() bool {
	for {
		best := -1
		for i := range c.snaps {
			if c.back[i] < 0 {
				continue
			}
			if best < 0 || c.snaps[best].At(c.back[best]).ID.Less(c.snaps[i].At(c.back[i]).ID) {
				best = i
			}
		}
		if best < 0 {
			return false
		}
		line := c.snaps[best].At(c.back[best])
		c.back[best]--
		if c.match == nil || c.match(line) {
			c.backBuf = append(c.backBuf, line)
			return true
		}
	}
}
