package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/logweave/logweave/internal/index"
	"github.com/logweave/logweave/internal/logger"
	"github.com/logweave/logweave/internal/logline"
)

func testLogger() *logger.Logger {
	return logger.New("session-test", func() bool { return false })
}

func ts(sec int) time.Time {
	return time.Date(2025, 3, 14, 9, 0, sec, 0, time.UTC)
}

func seedSource(t *testing.T, idx *index.LogIndex, dir, name string, secs []int) int {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("seed\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	id := idx.AddSource(name, path, logline.SourceStatus{Kind: logline.StatusDone})
	records := make([]logline.Record, 0, len(secs))
	for _, sec := range secs {
		records = append(records, logline.Record{
			Raw:       "line",
			Timestamp: ts(sec),
			Message:   "line",
		})
	}
	if _, err := idx.AppendLines(id, records); err != nil {
		t.Fatal(err)
	}
	return id
}

func TestRoundTripPartitionsBySource(t *testing.T) {
	dir := t.TempDir()
	idx := index.New()
	a := seedSource(t, idx, dir, "a.log", []int{0, 1, 2})
	b := seedSource(t, idx, dir, "b.log", []int{5, 6})

	store := NewStore(idx, testLogger())
	bookmarks := []Bookmark{
		{ID: logline.LineID{Timestamp: ts(1), SourceID: a, LineNumber: 1}, Label: "in a"},
		{ID: logline.LineID{Timestamp: ts(6), SourceID: b, LineNumber: 1}, Label: "in b"},
	}
	filters := []SavedFilter{{Pattern: "ERROR", CaseSensitive: false}}

	ephemeral, err := store.Save(bookmarks, filters)
	if err != nil {
		t.Fatal(err)
	}
	if len(ephemeral) != 0 {
		t.Fatalf("unexpected ephemeral bookmarks: %v", ephemeral)
	}

	valid, broken, gotFilters, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(broken) != 0 {
		t.Fatalf("unexpected broken bookmarks: %v", broken)
	}
	if len(valid) != 2 {
		t.Fatalf("got %d bookmarks, want 2", len(valid))
	}
	for _, bm := range valid {
		switch bm.ID.SourceID {
		case a:
			if bm.Label != "in a" {
				t.Fatalf("source a bookmark label = %q", bm.Label)
			}
		case b:
			if bm.Label != "in b" {
				t.Fatalf("source b bookmark label = %q", bm.Label)
			}
		default:
			t.Fatalf("bookmark landed in unknown source %d", bm.ID.SourceID)
		}
	}
	if len(gotFilters) != 1 || gotFilters[0].Pattern != "ERROR" {
		t.Fatalf("filters = %v", gotFilters)
	}
}

func TestFiltersConvergeAcrossSidecars(t *testing.T) {
	dir := t.TempDir()
	idx := index.New()
	seedSource(t, idx, dir, "a.log", []int{0})
	bPath := filepath.Join(dir, "b.log")
	seedSource(t, idx, dir, "b.log", []int{1})

	store := NewStore(idx, testLogger())

	// First save writes the filter everywhere, then one sidecar loses it,
	// simulating an edit made while only that file was open.
	if _, err := store.Save(nil, []SavedFilter{{Pattern: "timeout", CaseSensitive: true}}); err != nil {
		t.Fatal(err)
	}
	if err := writeSidecar(SidecarPath(bPath), nil, nil); err != nil {
		t.Fatal(err)
	}

	// Load unions the surviving copy; the next save pushes it back into
	// both sidecars.
	_, _, filters, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(filters) != 1 {
		t.Fatalf("merged filters = %v, want one", filters)
	}
	if _, err := store.Save(nil, filters); err != nil {
		t.Fatal(err)
	}

	reread, err := readSidecar(SidecarPath(bPath))
	if err != nil {
		t.Fatal(err)
	}
	if len(reread.Filters) != 1 || reread.Filters[0].Pattern != "timeout" || !reread.Filters[0].CaseSensitive {
		t.Fatalf("sidecar b filters = %v", reread.Filters)
	}
}

func TestFilterDedupByPatternAndCase(t *testing.T) {
	got := dedupFilters([]SavedFilter{
		{Pattern: "ERROR", CaseSensitive: false},
		{Pattern: "ERROR", CaseSensitive: false},
		{Pattern: "ERROR", CaseSensitive: true},
	})
	if len(got) != 2 {
		t.Fatalf("dedup kept %d filters, want 2 (case sensitivity is part of the key)", len(got))
	}
}

func TestBrokenBookmarksSurfaced(t *testing.T) {
	dir := t.TempDir()
	idx := index.New()
	a := seedSource(t, idx, dir, "a.log", []int{0, 1})

	store := NewStore(idx, testLogger())
	bookmarks := []Bookmark{
		{ID: logline.LineID{Timestamp: ts(1), SourceID: a, LineNumber: 1}, Label: "alive"},
		// Points past the end of the source, as after truncation.
		{ID: logline.LineID{Timestamp: ts(9), SourceID: a, LineNumber: 9}, Label: "gone"},
	}
	if _, err := store.Save(bookmarks, nil); err != nil {
		t.Fatal(err)
	}

	valid, broken, _, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(valid) != 1 || valid[0].Label != "alive" {
		t.Fatalf("valid = %v", valid)
	}
	if len(broken) != 1 || broken[0].Label != "gone" {
		t.Fatalf("broken = %v", broken)
	}
}

func TestStreamBookmarksAreEphemeral(t *testing.T) {
	idx := index.New()
	streamID := idx.AddSource("stdin", "", logline.SourceStatus{Kind: logline.StatusStreaming})
	if _, err := idx.AppendLines(streamID, []logline.Record{{Raw: "x", Timestamp: ts(0), Message: "x"}}); err != nil {
		t.Fatal(err)
	}

	store := NewStore(idx, testLogger())
	marks := []Bookmark{{ID: logline.LineID{Timestamp: ts(0), SourceID: streamID, LineNumber: 0}}}
	ephemeral, err := store.Save(marks, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(ephemeral) != 1 {
		t.Fatalf("ephemeral = %v, want the stream bookmark back", ephemeral)
	}
}

func TestMissingSidecarIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	idx := index.New()
	seedSource(t, idx, dir, "a.log", []int{0})

	store := NewStore(idx, testLogger())
	valid, broken, filters, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(valid)+len(broken)+len(filters) != 0 {
		t.Fatal("fresh source must load an empty session")
	}
}

func TestNewerSidecarVersionSkipped(t *testing.T) {
	dir := t.TempDir()
	idx := index.New()
	a := seedSource(t, idx, dir, "a.log", []int{0})

	path := SidecarPath(filepath.Join(dir, "a.log"))
	if err := os.WriteFile(path, []byte(`{"version": 99, "bookmarks": [{"line_number": 0}], "filters": []}`), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(idx, testLogger())
	valid, broken, _, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(valid)+len(broken) != 0 {
		t.Fatalf("bookmarks from a newer format leaked through (source %d)", a)
	}
}
