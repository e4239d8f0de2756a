// Package loader feeds sources into the index: bounded files are loaded
// progressively in chunks so huge files never stall interaction, and
// stdin is consumed as an unbounded stream.
package loader

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/logweave/logweave/internal/index"
	"github.com/logweave/logweave/internal/logger"
	"github.com/logweave/logweave/internal/logline"
	"github.com/logweave/logweave/internal/parser"
)

// DefaultChunkSize is how many parsed records are appended per version
// bump during a progressive load.
const DefaultChunkSize = 10000

// DefaultSampleLines is how many lines feed format detection.
const DefaultSampleLines = 10

// DefaultMaxLineLength bounds a single line; longer ones are rejected.
const DefaultMaxLineLength = 1024 * 1024

// Options tune a Loader. Zero values select the defaults.
type Options struct {
	ChunkSize     int
	SampleLines   int
	MaxLineLength int
}

// Loader creates sources and populates them in background goroutines.
// All index mutation happens through LogIndex methods; the foreground
// only ever reads.
type Loader struct {
	idx         *index.LogIndex
	chain       *parser.Chain
	chunkSize   int
	sampleLines int
	maxLine     int
	log         *logger.Logger
}

// Result reports a finished load.
type Result struct {
	// Offset is the byte position after the last consumed line, where a
	// tail watcher should continue reading.
	Offset int64
	Err    error
}

// New creates a loader over the index.
func New(idx *index.LogIndex, opts Options, log *logger.Logger) *Loader {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.SampleLines <= 0 {
		opts.SampleLines = DefaultSampleLines
	}
	if opts.MaxLineLength <= 0 {
		opts.MaxLineLength = DefaultMaxLineLength
	}
	return &Loader{
		idx:         idx,
		chain:       parser.NewChain(),
		chunkSize:   opts.ChunkSize,
		sampleLines: opts.SampleLines,
		maxLine:     opts.MaxLineLength,
		log:         log,
	}
}

// LoadFile registers a file-backed source and starts loading it. The
// returned channel delivers exactly one Result when the load stops, with
// the byte offset a tail watcher should resume from. A final line without
// a newline is consumed; use LoadFileForFollow for sources that will be
// tailed afterwards.
func (l *Loader) LoadFile(ctx context.Context, path string) (int, <-chan Result) {
	return l.startFile(ctx, path, false)
}

// LoadFileForFollow is LoadFile for a source that a tail watcher takes
// over: a final line without a newline is left unread, and the reported
// offset stops before it, so the watcher stores the line whole once the
// writer finishes it.
func (l *Loader) LoadFileForFollow(ctx context.Context, path string) (int, <-chan Result) {
	return l.startFile(ctx, path, true)
}

func (l *Loader) startFile(ctx context.Context, path string, keepTail bool) (int, <-chan Result) {
	name := filepath.Base(path)
	sourceID := l.idx.AddSource(name, path, logline.SourceStatus{Kind: logline.StatusLoading})

	done := make(chan Result, 1)
	go func() {
		offset, err := l.loadFile(ctx, sourceID, path, keepTail)
		if err != nil {
			l.failSource(sourceID, err)
		}
		done <- Result{Offset: offset, Err: err}
	}()
	return sourceID, done
}

// LoadStream registers a path-less stream source (stdin) and consumes the
// reader until EOF or cancellation. Stream sources have no sidecar, so
// bookmarks against them are ephemeral.
func (l *Loader) LoadStream(ctx context.Context, r io.Reader, name string) (int, <-chan Result) {
	sourceID := l.idx.AddSource(name, "", logline.SourceStatus{Kind: logline.StatusStreaming})

	done := make(chan Result, 1)
	go func() {
		err := l.loadStream(ctx, sourceID, r)
		if err != nil {
			l.failSource(sourceID, err)
		}
		done <- Result{Err: err}
	}()
	return sourceID, done
}

func (l *Loader) loadFile(ctx context.Context, sourceID int, path string, keepTail bool) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	size := info.Size()

	store, err := l.idx.Source(sourceID)
	if err != nil {
		return 0, err
	}

	reader := bufio.NewReaderSize(file, 512*1024)
	batch := newBatcher(l, sourceID)
	var offset int64

	for {
		if err := ctx.Err(); err != nil {
			return offset, err
		}

		line, err := reader.ReadString('\n')
		if line != "" && strings.HasSuffix(line, "\n") {
			offset += int64(len(line))
			batch.add(strings.TrimRight(line, "\r\n"))
		} else if line != "" && err == io.EOF && !keepTail {
			// Static load: a final line without a newline is still part
			// of the file. Followed sources leave it for the watcher,
			// since the writer may only be mid-line.
			offset += int64(len(line))
			batch.add(strings.TrimRight(line, "\r\n"))
		}

		if batch.len() >= l.chunkSize {
			// A chunk boundary is the loader's yield point: the appended
			// chunk becomes visible and readers proceed against it while
			// the next chunk is parsed.
			if err := batch.flush(); err != nil {
				return offset, err
			}
			if size > 0 {
				store.SetStatus(logline.SourceStatus{
					Kind:     logline.StatusLoading,
					Progress: float64(offset) / float64(size),
				})
			}
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return offset, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if err := batch.flush(); err != nil {
		return offset, err
	}
	batch.logStats(path)
	store.SetStatus(logline.SourceStatus{Kind: logline.StatusDone})
	return offset, nil
}

func (l *Loader) loadStream(ctx context.Context, sourceID int, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), l.maxLine)

	batch := newBatcher(l, sourceID)
	// Streams flush in small batches; a stream that pauses mid-batch
	// still shows its lines within one batch of latency.
	const streamBatch = 200

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch.add(scanner.Text())
		if batch.len() >= streamBatch {
			if err := batch.flush(); err != nil {
				return err
			}
		}
	}
	if err := batch.flush(); err != nil {
		return err
	}
	batch.logStats("stream")

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}

	// Stream closed: no further appends will happen.
	if store, err := l.idx.Source(sourceID); err == nil {
		store.SetStatus(logline.SourceStatus{Kind: logline.StatusDone})
	}
	return nil
}

func (l *Loader) failSource(sourceID int, cause error) {
	l.log.Error("source load failed", logger.F("source", sourceID), logger.Err(cause))
	if store, err := l.idx.Source(sourceID); err == nil {
		store.SetStatus(logline.SourceStatus{Kind: logline.StatusError, Message: cause.Error()})
	}
}

// batcher accumulates parsed records and appends them in one version bump.
// Format detection runs once on the first sample of lines.
type batcher struct {
	loader   *Loader
	sourceID int

	strategy  parser.Parser
	sample    []string
	records   []logline.Record
	parsed    int
	dropped   int
	oversized int
}

func newBatcher(l *Loader, sourceID int) *batcher {
	return &batcher{loader: l, sourceID: sourceID}
}

func (b *batcher) add(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	if len(line) > b.loader.maxLine {
		b.oversized++
		return
	}
	if b.strategy == nil {
		b.sample = append(b.sample, line)
		if len(b.sample) < b.loader.sampleLines {
			return
		}
		b.detect()
		return
	}
	b.parse(line)
}

func (b *batcher) detect() {
	b.strategy = b.loader.chain.Detect(b.sample)
	b.loader.log.Debug("format detected",
		logger.F("source", b.sourceID),
		logger.F("parser", b.strategy.Name()))
	for _, s := range b.sample {
		b.parse(s)
	}
	b.sample = nil
}

func (b *batcher) parse(line string) {
	entry, err := b.strategy.Parse(line)
	if err != nil {
		b.dropped++
		return
	}
	if entry.Timestamp.IsZero() {
		// No resolvable timestamp: the line gets no LineID and is never
		// stored. Counted and reported once per load.
		b.dropped++
		return
	}
	b.records = append(b.records, entry.Record())
	b.parsed++
}

func (b *batcher) len() int {
	return len(b.records)
}

func (b *batcher) flush() error {
	// Short inputs may finish before the detection sample fills up.
	if b.strategy == nil && len(b.sample) > 0 {
		b.detect()
	}
	if len(b.records) == 0 {
		return nil
	}
	_, err := b.loader.idx.AppendLines(b.sourceID, b.records)
	b.records = b.records[:0]
	return err
}

func (b *batcher) logStats(origin string) {
	if b.oversized > 0 {
		b.loader.log.Warn("lines over the length limit were skipped",
			logger.F("origin", origin),
			logger.F("skipped", b.oversized),
			logger.F("limit", b.loader.maxLine))
	}
	if b.dropped > 0 {
		b.loader.log.Warn("lines without timestamps were skipped",
			logger.F("origin", origin),
			logger.F("skipped", b.dropped),
			logger.F("stored", b.parsed))
	} else {
		b.loader.log.Info("load complete",
			logger.F("origin", origin),
			logger.F("stored", b.parsed))
	}
}
