package index

import (
	"container/heap"

	"github.com/logweave/logweave/internal/logline"
)

// MergeIterator walks all sources in ascending LineID order. It is a k-way
// merge over each source's time-ordered view: O(n log k) for n lines and k
// sources, lazy, finite, and restartable by calling IterMerged again.
//
// The iterator works on a snapshot taken at creation. Lines appended after
// that are not visited; callers that need a consistent pass compare the
// index version before and after and retry on change.
type MergeIterator struct {
	heap mergeHeap
}

// IterMerged starts a merged iteration from the beginning of all sources.
func (x *LogIndex) IterMerged() *MergeIterator {
	snaps := x.Snapshots()
	it := &MergeIterator{heap: make(mergeHeap, 0, len(snaps))}
	for _, snap := range snaps {
		if snap.Len() > 0 {
			it.heap = append(it.heap, mergeCursor{snap: snap})
		}
	}
	heap.Init(&it.heap)
	return it
}

// Next returns the next line in LineID order, or false when every source
// is exhausted.
func (it *MergeIterator) Next() (*logline.Line, bool) {
	if it.heap.Len() == 0 {
		return nil, false
	}
	cur := &it.heap[0]
	line := cur.snap.At(cur.pos)
	if cur.pos+1 < cur.snap.Len() {
		cur.pos++
		heap.Fix(&it.heap, 0)
	} else {
		heap.Pop(&it.heap)
	}
	return line, true
}

type mergeCursor struct {
	snap TimeOrdered
	pos  int
}

type mergeHeap []mergeCursor

func (h mergeHeap) Len() int { return len(h) }

func (h mergeHeap) Less(i, j int) bool {
	return h[i].snap.At(h[i].pos).ID.Less(h[j].snap.At(h[j].pos).ID)
}

func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(v any) { *h = append(*h, v.(mergeCursor)) }

func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}
