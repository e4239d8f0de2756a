// Package tail follows file-backed sources after their initial load,
// appending new lines as they are written. Polling is the correctness
// mechanism; fsnotify events only shorten the wait between polls.
package tail

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/logweave/logweave/internal/index"
	"github.com/logweave/logweave/internal/logger"
	"github.com/logweave/logweave/internal/logline"
	"github.com/logweave/logweave/internal/parser"
)

// DefaultPollInterval is how often tailed files are checked for growth
// when no filesystem event arrives first.
const DefaultPollInterval = 500 * time.Millisecond

// Watcher follows registered files and appends their new lines to the
// index. One goroutine serves all followed files.
type Watcher struct {
	idx       *index.LogIndex
	chain     *parser.Chain
	interval  time.Duration
	useEvents bool
	log       *logger.Logger

	mu      sync.Mutex
	files   map[string]*tailedFile
	fsw     *fsnotify.Watcher
	started bool
	wake    chan struct{}
}

type tailedFile struct {
	sourceID int
	path     string
	offset   int64
	lastSize int64
	strategy parser.Parser
}

// NewWatcher creates a watcher over the index. interval <= 0 selects the
// default poll interval. useEvents enables fsnotify wakeups between polls.
func NewWatcher(idx *index.LogIndex, interval time.Duration, useEvents bool, log *logger.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{
		idx:       idx,
		chain:     parser.NewChain(),
		interval:  interval,
		useEvents: useEvents,
		log:       log,
		files:     make(map[string]*tailedFile),
		wake:      make(chan struct{}, 1),
	}
}

// Follow registers a loaded source for tailing, continuing from the byte
// offset where the initial load stopped.
func (w *Watcher) Follow(sourceID int, path string, offset int64) error {
	store, err := w.idx.Source(sourceID)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	w.mu.Lock()
	w.files[path] = &tailedFile{
		sourceID: sourceID,
		path:     path,
		offset:   offset,
		lastSize: info.Size(),
	}
	// Follow may run before or after Run. The event watcher learns about
	// the path in whichever order it exists.
	if w.fsw != nil {
		if err := w.fsw.Add(path); err != nil {
			w.log.Warn("cannot watch file", logger.F("path", path), logger.Err(err))
		}
	}
	w.mu.Unlock()

	store.SetStatus(logline.SourceStatus{Kind: logline.StatusTailing})
	w.log.Debug("following file", logger.F("path", path), logger.F("offset", offset))
	return nil
}

// Run polls followed files until the context is cancelled. Filesystem
// write events trigger an immediate poll; a missed or dropped event is
// harmless because the next tick covers it.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.started = true
	w.mu.Unlock()

	if w.useEvents {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			w.log.Warn("fsnotify unavailable, falling back to pure polling", logger.Err(err))
		} else {
			w.mu.Lock()
			w.fsw = fsw
			for p := range w.files {
				if err := fsw.Add(p); err != nil {
					w.log.Warn("cannot watch file", logger.F("path", p), logger.Err(err))
				}
			}
			w.mu.Unlock()
			defer func() {
				w.mu.Lock()
				w.fsw = nil
				w.mu.Unlock()
				fsw.Close()
			}()
			go w.forwardEvents(ctx, fsw)
		}
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-w.wake:
		}
		w.pollAll()
	}
}

// Poll checks every followed file once. Exposed for callers that drive
// their own schedule.
func (w *Watcher) Poll() {
	w.pollAll()
}

func (w *Watcher) forwardEvents(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				select {
				case w.wake <- struct{}{}:
				default:
				}
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", logger.Err(err))
		}
	}
}

func (w *Watcher) pollAll() {
	w.mu.Lock()
	files := make([]*tailedFile, 0, len(w.files))
	for _, f := range w.files {
		files = append(files, f)
	}
	w.mu.Unlock()

	for _, f := range files {
		if err := w.pollFile(f); err != nil {
			w.fail(f, err)
		}
	}
}

func (w *Watcher) pollFile(f *tailedFile) error {
	info, err := os.Stat(f.path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", f.path, err)
	}
	size := info.Size()

	if size < f.lastSize {
		// Shrinking means rotation or truncation. Line numbers already
		// handed out would no longer correspond to file content, so the
		// source stops here rather than guessing.
		return fmt.Errorf("file truncated: %s (%d -> %d bytes)", f.path, f.lastSize, size)
	}
	f.lastSize = size
	if size <= f.offset {
		return nil
	}

	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.path, err)
	}
	defer file.Close()

	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek %s: %w", f.path, err)
	}

	reader := bufio.NewReader(file)
	var records []logline.Record
	for {
		chunk, err := reader.ReadString('\n')
		if chunk != "" {
			if strings.HasSuffix(chunk, "\n") {
				f.offset += int64(len(chunk))
				if rec, ok := w.parseLine(f, strings.TrimRight(chunk, "\r\n")); ok {
					records = append(records, rec)
				}
			}
			// A chunk without a newline is a line still being written.
			// The offset stays put so the next poll re-reads it whole.
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", f.path, err)
		}
	}

	if len(records) == 0 {
		return nil
	}
	_, err = w.idx.AppendLines(f.sourceID, records)
	return err
}

func (w *Watcher) parseLine(f *tailedFile, line string) (logline.Record, bool) {
	if strings.TrimSpace(line) == "" {
		return logline.Record{}, false
	}
	if f.strategy == nil {
		f.strategy = w.chain.Detect([]string{line})
	}
	entry, err := f.strategy.Parse(line)
	if err != nil || entry.Timestamp.IsZero() {
		w.log.Debug("skipping line without timestamp", logger.F("path", f.path))
		return logline.Record{}, false
	}
	return entry.Record(), true
}

func (w *Watcher) fail(f *tailedFile, cause error) {
	w.log.Warn("tailing stopped", logger.F("path", f.path), logger.Err(cause))
	if store, err := w.idx.Source(f.sourceID); err == nil {
		store.SetStatus(logline.SourceStatus{Kind: logline.StatusError, Message: cause.Error()})
	}
	w.mu.Lock()
	delete(w.files, f.path)
	if w.fsw != nil {
		_ = w.fsw.Remove(f.path)
	}
	w.mu.Unlock()
}
