package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/logweave/logweave/internal/index"
	"github.com/logweave/logweave/internal/logger"
	"github.com/logweave/logweave/internal/logline"
)

func newTestLoader(idx *index.LogIndex, chunk int) *Loader {
	log := logger.New("loader-test", func() bool { return false })
	return New(idx, Options{ChunkSize: chunk}, log)
}

func writeTempLog(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFileStoresAllLines(t *testing.T) {
	var lines []string
	for i := 0; i < 25; i++ {
		lines = append(lines, fmt.Sprintf("2025-03-14T09:00:%02dZ INFO event number %d", i%60, i))
	}
	path := writeTempLog(t, lines)

	idx := index.New()
	l := newTestLoader(idx, 10)

	sourceID, done := l.LoadFile(context.Background(), path)
	res := <-done
	if res.Err != nil {
		t.Fatalf("load failed: %v", res.Err)
	}

	store, err := idx.Source(sourceID)
	if err != nil {
		t.Fatal(err)
	}
	if store.Len() != 25 {
		t.Fatalf("stored %d lines, want 25", store.Len())
	}
	if got := store.Status().Kind; got != logline.StatusDone {
		t.Fatalf("status = %v, want Done", got)
	}

	// The returned offset must cover the whole file so a tail watcher
	// does not re-read the last lines.
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if res.Offset != info.Size() {
		t.Fatalf("offset = %d, want file size %d", res.Offset, info.Size())
	}
}

func TestLoadFileDropsTimestamplessLines(t *testing.T) {
	path := writeTempLog(t, []string{
		"2025-03-14T09:00:00Z INFO first",
		"no timestamp here at all",
		"2025-03-14T09:00:02Z INFO second",
	})

	idx := index.New()
	l := newTestLoader(idx, 0)

	sourceID, done := l.LoadFile(context.Background(), path)
	if res := <-done; res.Err != nil {
		t.Fatalf("load failed: %v", res.Err)
	}

	store, err := idx.Source(sourceID)
	if err != nil {
		t.Fatal(err)
	}
	if store.Len() != 2 {
		t.Fatalf("stored %d lines, want 2", store.Len())
	}
	first, err := store.Get(0)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(first.Message, "first") {
		t.Fatalf("first message = %q", first.Message)
	}
}

func TestLoadFilePreservesWrittenTimestamps(t *testing.T) {
	var lines []string
	for i := 0; i < 12; i++ {
		lines = append(lines, fmt.Sprintf("2025-03-14T09:00:%02dZ INFO event %d", i, i))
	}
	path := writeTempLog(t, lines)

	idx := index.New()
	l := newTestLoader(idx, 0)

	sourceID, done := l.LoadFile(context.Background(), path)
	if res := <-done; res.Err != nil {
		t.Fatalf("load failed: %v", res.Err)
	}

	store, err := idx.Source(sourceID)
	if err != nil {
		t.Fatal(err)
	}
	if store.Len() != len(lines) {
		t.Fatalf("stored %d lines, want %d", store.Len(), len(lines))
	}
	for i := 0; i < store.Len(); i++ {
		line, err := store.Get(i)
		if err != nil {
			t.Fatal(err)
		}
		want := time.Date(2025, 3, 14, 9, 0, i, 0, time.UTC)
		if !line.ID.Timestamp.Equal(want) {
			t.Fatalf("line %d stored with %v, want the written %v (raw %q)",
				i, line.ID.Timestamp, want, line.Raw)
		}
	}
}

func TestLoadFileForFollowLeavesPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	content := "2025-03-14T09:00:00Z INFO complete line\n2025-03-14T09:00:01Z INFO interrupted mes"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	idx := index.New()
	l := newTestLoader(idx, 0)

	sourceID, done := l.LoadFileForFollow(context.Background(), path)
	res := <-done
	if res.Err != nil {
		t.Fatalf("load failed: %v", res.Err)
	}

	store, err := idx.Source(sourceID)
	if err != nil {
		t.Fatal(err)
	}
	if store.Len() != 1 {
		t.Fatalf("stored %d lines, want only the complete one", store.Len())
	}
	// The offset stops before the fragment so a watcher rereads it whole.
	wantOffset := int64(strings.Index(content, "2025-03-14T09:00:01Z"))
	if res.Offset != wantOffset {
		t.Fatalf("offset = %d, want %d (start of the unterminated line)", res.Offset, wantOffset)
	}
}

func TestLoadFileSkipsOversizedLines(t *testing.T) {
	path := writeTempLog(t, []string{
		"2025-03-14T09:00:00Z INFO short",
		"2025-03-14T09:00:01Z INFO " + strings.Repeat("x", 300),
		"2025-03-14T09:00:02Z INFO also short",
	})

	idx := index.New()
	log := logger.New("loader-test", func() bool { return false })
	l := New(idx, Options{MaxLineLength: 128}, log)

	sourceID, done := l.LoadFile(context.Background(), path)
	if res := <-done; res.Err != nil {
		t.Fatalf("load failed: %v", res.Err)
	}

	store, err := idx.Source(sourceID)
	if err != nil {
		t.Fatal(err)
	}
	if store.Len() != 2 {
		t.Fatalf("stored %d lines, want 2 with the oversized one rejected", store.Len())
	}
}

func TestLoadFileMissingPathSetsError(t *testing.T) {
	idx := index.New()
	l := newTestLoader(idx, 0)

	sourceID, done := l.LoadFile(context.Background(), filepath.Join(t.TempDir(), "absent.log"))
	res := <-done
	if res.Err == nil {
		t.Fatal("expected error for missing file")
	}

	store, err := idx.Source(sourceID)
	if err != nil {
		t.Fatal(err)
	}
	if got := store.Status().Kind; got != logline.StatusError {
		t.Fatalf("status = %v, want Error", got)
	}
}

func TestLoadFileBumpsVersionPerChunk(t *testing.T) {
	var lines []string
	for i := 0; i < 30; i++ {
		lines = append(lines, fmt.Sprintf("2025-03-14T09:00:%02dZ INFO chunked %d", i%60, i))
	}
	path := writeTempLog(t, lines)

	idx := index.New()
	before := idx.Version()
	l := newTestLoader(idx, 10)

	_, done := l.LoadFile(context.Background(), path)
	if res := <-done; res.Err != nil {
		t.Fatalf("load failed: %v", res.Err)
	}

	// 30 lines at chunk size 10 is three appends, three bumps.
	if got := idx.Version() - before; got != 3 {
		t.Fatalf("version advanced by %d, want 3", got)
	}
}

func TestLoadStream(t *testing.T) {
	input := strings.Join([]string{
		"2025-03-14T09:00:00Z INFO stream one",
		"2025-03-14T09:00:01Z WARN stream two",
		"2025-03-14T09:00:02Z ERROR stream three",
	}, "\n")

	idx := index.New()
	l := newTestLoader(idx, 0)

	sourceID, done := l.LoadStream(context.Background(), strings.NewReader(input), "stdin")
	if res := <-done; res.Err != nil {
		t.Fatalf("stream load failed: %v", res.Err)
	}

	store, err := idx.Source(sourceID)
	if err != nil {
		t.Fatal(err)
	}
	if store.Len() != 3 {
		t.Fatalf("stored %d lines, want 3", store.Len())
	}
	if info := store.Info(); info.Path != "" {
		t.Fatalf("stream source has path %q, want none", info.Path)
	}
	// Reader hit EOF, so the stream settles on Done.
	if got := store.Status().Kind; got != logline.StatusDone {
		t.Fatalf("status = %v, want Done", got)
	}
}

func TestLoadFileCancellation(t *testing.T) {
	var lines []string
	for i := 0; i < 100; i++ {
		lines = append(lines, fmt.Sprintf("2025-03-14T09:00:%02dZ INFO slow %d", i%60, i))
	}
	path := writeTempLog(t, lines)

	idx := index.New()
	l := newTestLoader(idx, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, done := l.LoadFile(ctx, path)
	select {
	case res := <-done:
		if res.Err == nil {
			t.Fatal("expected cancellation error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("load did not stop after cancellation")
	}
}
