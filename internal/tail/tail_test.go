package tail

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/logweave/logweave/internal/index"
	"github.com/logweave/logweave/internal/loader"
	"github.com/logweave/logweave/internal/logger"
	"github.com/logweave/logweave/internal/logline"
)

func testLogger() *logger.Logger {
	return logger.New("tail-test", func() bool { return false })
}

func logLine(i int) string {
	return fmt.Sprintf("2025-03-14T%02d:%02d:%02dZ INFO tailed event %d\n", 9+i/3600, (i/60)%60, i%60, i)
}

// loadInitial writes count lines, loads them, and returns everything a
// Follow call needs.
func loadInitial(t *testing.T, count int) (*index.LogIndex, *Watcher, int, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.log")
	var b strings.Builder
	for i := 0; i < count; i++ {
		b.WriteString(logLine(i))
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	idx := index.New()
	l := loader.New(idx, loader.Options{}, testLogger())
	sourceID, done := l.LoadFile(context.Background(), path)
	res := <-done
	if res.Err != nil {
		t.Fatalf("initial load failed: %v", res.Err)
	}

	w := NewWatcher(idx, 0, false, testLogger())
	if err := w.Follow(sourceID, path, res.Offset); err != nil {
		t.Fatal(err)
	}
	return idx, w, sourceID, path
}

func appendTo(t *testing.T, path, data string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(data); err != nil {
		t.Fatal(err)
	}
}

func TestTailContinuesLineNumbers(t *testing.T) {
	idx, w, sourceID, path := loadInitial(t, 100)

	var b strings.Builder
	for i := 100; i < 110; i++ {
		b.WriteString(logLine(i))
	}
	appendTo(t, path, b.String())
	w.Poll()

	store, err := idx.Source(sourceID)
	if err != nil {
		t.Fatal(err)
	}
	if store.Len() != 110 {
		t.Fatalf("store has %d lines, want 110", store.Len())
	}
	// Appended lines continue the dense numbering of the initial load.
	line, err := store.Get(100)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(line.Raw, "event 100") {
		t.Fatalf("line 100 raw = %q", line.Raw)
	}
	if got := store.Status().Kind; got != logline.StatusTailing {
		t.Fatalf("status = %v, want Tailing", got)
	}
}

func TestTailIdlePollIsNoOp(t *testing.T) {
	idx, w, sourceID, _ := loadInitial(t, 5)

	before := idx.Version()
	w.Poll()
	w.Poll()
	if idx.Version() != before {
		t.Fatal("poll without new data must not bump the version")
	}

	store, _ := idx.Source(sourceID)
	if store.Len() != 5 {
		t.Fatalf("store has %d lines, want 5", store.Len())
	}
}

func TestTailPartialLineWaitsForNewline(t *testing.T) {
	idx, w, sourceID, path := loadInitial(t, 3)
	store, err := idx.Source(sourceID)
	if err != nil {
		t.Fatal(err)
	}

	appendTo(t, path, "2025-03-14T10:00:00Z INFO half a li")
	w.Poll()
	if store.Len() != 3 {
		t.Fatalf("partial line was appended, store has %d lines", store.Len())
	}

	appendTo(t, path, "ne completed\n")
	w.Poll()
	if store.Len() != 4 {
		t.Fatalf("completed line missing, store has %d lines", store.Len())
	}
	line, err := store.Get(3)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(line.Raw, "half a line completed") {
		t.Fatalf("reassembled line = %q", line.Raw)
	}
}

func TestTailTruncationIsTerminal(t *testing.T) {
	idx, w, sourceID, path := loadInitial(t, 10)
	store, err := idx.Source(sourceID)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.Truncate(path, 0); err != nil {
		t.Fatal(err)
	}
	w.Poll()

	status := store.Status()
	if status.Kind != logline.StatusError {
		t.Fatalf("status = %v, want Error", status.Kind)
	}
	if !strings.Contains(status.Message, "truncated") {
		t.Fatalf("status message = %q", status.Message)
	}
	// Lines loaded before the truncation stay readable.
	if store.Len() != 10 {
		t.Fatalf("store has %d lines, want 10", store.Len())
	}

	// The file is no longer followed; growing it again changes nothing.
	appendTo(t, path, logLine(0))
	w.Poll()
	if store.Len() != 10 {
		t.Fatal("truncated source must not resume")
	}
	if store.Status().Kind != logline.StatusError {
		t.Fatal("Error status is terminal")
	}
}

func TestFollowMissingFile(t *testing.T) {
	idx := index.New()
	sourceID := idx.AddSource("gone", "/nonexistent/gone.log", logline.SourceStatus{Kind: logline.StatusDone})

	w := NewWatcher(idx, 0, false, testLogger())
	if err := w.Follow(sourceID, "/nonexistent/gone.log", 0); err == nil {
		t.Fatal("expected error following a missing file")
	}
}

func TestLoadHandoffKeepsInterruptedLineWhole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	content := logLine(0) + "2025-03-14T09:00:01Z INFO interrupted mes"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	idx := index.New()
	l := loader.New(idx, loader.Options{}, testLogger())
	sourceID, done := l.LoadFileForFollow(context.Background(), path)
	res := <-done
	if res.Err != nil {
		t.Fatalf("initial load failed: %v", res.Err)
	}

	w := NewWatcher(idx, 0, false, testLogger())
	if err := w.Follow(sourceID, path, res.Offset); err != nil {
		t.Fatal(err)
	}

	// The writer finishes the line it was caught in the middle of.
	appendTo(t, path, "sage finished\n")
	w.Poll()

	store, err := idx.Source(sourceID)
	if err != nil {
		t.Fatal(err)
	}
	if store.Len() != 2 {
		t.Fatalf("store has %d lines, want 2", store.Len())
	}
	line, err := store.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(line.Raw, "interrupted message finished") {
		t.Fatalf("line stored split: %q", line.Raw)
	}
}

func TestFollowAfterRunRegistersEventWatch(t *testing.T) {
	idx, w, _, path := loadInitial(t, 3)
	w.useEvents = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = w.Run(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		w.mu.Lock()
		ready := w.fsw != nil
		w.mu.Unlock()
		if ready {
			break
		}
		if time.Now().After(deadline) {
			t.Skip("fsnotify unavailable on this system")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// A source followed while the watcher is already running must still
	// get event wakeups.
	late := filepath.Join(t.TempDir(), "late.log")
	if err := os.WriteFile(late, []byte(logLine(0)), 0o644); err != nil {
		t.Fatal(err)
	}
	lateID := idx.AddSource("late.log", late, logline.SourceStatus{Kind: logline.StatusDone})
	if err := w.Follow(lateID, late, int64(len(logLine(0)))); err != nil {
		t.Fatal(err)
	}

	w.mu.Lock()
	watched := w.fsw.WatchList()
	w.mu.Unlock()
	var foundEarly, foundLate bool
	for _, p := range watched {
		if p == path {
			foundEarly = true
		}
		if p == late {
			foundLate = true
		}
	}
	if !foundEarly {
		t.Error("path followed before Run is not event-watched")
	}
	if !foundLate {
		t.Errorf("path followed after Run is not event-watched: %v", watched)
	}
}
