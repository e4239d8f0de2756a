package index

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/logweave/logweave/internal/logline"
)

// ErrNotFound reports a LineID or source that the index no longer holds.
var ErrNotFound = errors.New("not found")

// LogIndex aggregates all source stores and owns the version counter.
//
// The version strictly increases on every structural mutation (source
// added, lines appended) and is bumped only after the mutation is fully
// committed, so a reader that observes version v sees every line announced
// by v. In-place score updates do not touch the version: scores affect
// neither ordering nor filter membership, so no cached view needs to be
// recomputed for them.
//
// One LogIndex instance is passed explicitly to every component that needs
// it; there is no package-level singleton.
type LogIndex struct {
	mu      sync.RWMutex
	sources []*SourceStore
	version atomic.Uint64
}

// New creates an empty index.
func New() *LogIndex {
	idx := &LogIndex{}
	idx.version.Store(1)
	return idx
}

// Version returns the current version counter. Lock-free, so cached views
// can check it cheaply.
func (x *LogIndex) Version() uint64 {
	return x.version.Load()
}

// AddSource registers a new source and returns its ID. Source IDs are
// never reused; sources live until the process exits.
func (x *LogIndex) AddSource(name, path string, status logline.SourceStatus) int {
	x.mu.Lock()
	id := len(x.sources)
	x.sources = append(x.sources, newSourceStore(logline.SourceInfo{
		ID:     id,
		Name:   name,
		Path:   path,
		Status: status,
	}))
	x.mu.Unlock()

	x.version.Add(1)
	return id
}

// Source returns the store for the given source ID.
func (x *LogIndex) Source(sourceID int) (*SourceStore, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if sourceID < 0 || sourceID >= len(x.sources) {
		return nil, fmt.Errorf("source %d: %w", sourceID, ErrNotFound)
	}
	return x.sources[sourceID], nil
}

// Sources returns metadata for every registered source.
func (x *LogIndex) Sources() []logline.SourceInfo {
	x.mu.RLock()
	defer x.mu.RUnlock()
	infos := make([]logline.SourceInfo, len(x.sources))
	for i, s := range x.sources {
		infos[i] = s.Info()
	}
	return infos
}

// TotalLines returns the line count across all sources.
func (x *LogIndex) TotalLines() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	total := 0
	for _, s := range x.sources {
		total += s.Len()
	}
	return total
}

// AppendLines appends a batch to one source and bumps the version by
// exactly one, regardless of batch size. Empty batches are a no-op.
// Returns the line number assigned to the first appended record.
func (x *LogIndex) AppendLines(sourceID int, records []logline.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	store, err := x.Source(sourceID)
	if err != nil {
		return 0, err
	}
	first := store.append(records)
	x.version.Add(1)
	return first, nil
}

// Get dereferences a LineID in O(1). Stale identifiers (lines gone after
// a truncation reset, or IDs whose stored line no longer carries the same
// timestamp) report ErrNotFound rather than panicking; callers supply
// arbitrary persisted IDs.
func (x *LogIndex) Get(id logline.LineID) (*logline.Line, error) {
	store, err := x.Source(id.SourceID)
	if err != nil {
		return nil, err
	}
	line, err := store.Get(id.LineNumber)
	if err != nil {
		return nil, err
	}
	if !line.ID.Equal(id) {
		return nil, fmt.Errorf("line %d of source %d reissued: %w", id.LineNumber, id.SourceID, ErrNotFound)
	}
	return line, nil
}

// UpdateScore writes a line's anomaly score in place. Scores are stored in
// an atomic cell, so the write is safe against concurrent readers, and the
// version counter is deliberately left alone.
func (x *LogIndex) UpdateScore(id logline.LineID, score float64) error {
	line, err := x.Get(id)
	if err != nil {
		return err
	}
	line.SetScore(score)
	return nil
}

// Resort rebuilds one source's time-ordered index, for post-load re-sort
// requests. Structural from the viewpoint of merged iteration, so the
// version is bumped.
func (x *LogIndex) Resort(sourceID int) error {
	store, err := x.Source(sourceID)
	if err != nil {
		return err
	}
	store.resort()
	x.version.Add(1)
	return nil
}

// Snapshots captures a time-ordered view of every source. The views are
// immutable; appends made afterwards are not reflected.
func (x *LogIndex) Snapshots() []TimeOrdered {
	x.mu.RLock()
	defer x.mu.RUnlock()
	snaps := make([]TimeOrdered, len(x.sources))
	for i, s := range x.sources {
		snaps[i] = s.snapshot()
	}
	return snaps
}
