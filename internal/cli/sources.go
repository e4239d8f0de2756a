package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/logweave/logweave/internal/anomaly"
	"github.com/logweave/logweave/internal/config"
	"github.com/logweave/logweave/internal/index"
	"github.com/logweave/logweave/internal/loader"
	"github.com/logweave/logweave/internal/logger"
	"github.com/logweave/logweave/internal/tail"
)

// sourceSet is the loaded state shared by the view and merge commands:
// one index fed by static files, followed files, and optionally stdin.
type sourceSet struct {
	idx     *index.LogIndex
	watcher *tail.Watcher
	cfg     *config.Config
	log     *logger.Logger

	// pending holds one result channel per started file load, keyed by
	// source ID. Followed sources hand their final offset to the watcher.
	pending map[int]<-chan loader.Result
	follow  map[int]string
	// stream resolves when stdin closes.
	stream <-chan loader.Result
}

// openSources starts loading every requested source. Static paths come
// from args, followed paths from the repeated -f flag, and useStdin adds
// a stream source reading os.Stdin.
func openSources(ctx context.Context, cfg *config.Config, log *logger.Logger, paths, followPaths []string, useStdin bool) (*sourceSet, error) {
	if len(paths) == 0 && len(followPaths) == 0 && !useStdin {
		return nil, fmt.Errorf("no sources: pass log files, -f for files to follow, or --stdin")
	}

	idx := index.New()
	s := &sourceSet{
		idx:     idx,
		watcher: tail.NewWatcher(idx, cfg.Tail.PollInterval, cfg.Tail.UseFsnotify, log.WithComponent("tail")),
		cfg:     cfg,
		log:     log,
		pending: make(map[int]<-chan loader.Result),
		follow:  make(map[int]string),
	}

	l := loader.New(idx, loader.Options{
		ChunkSize:     cfg.Loading.ChunkSize,
		SampleLines:   cfg.Loading.SampleLines,
		MaxLineLength: cfg.Loading.MaxLineLength,
	}, log.WithComponent("loader"))
	for _, path := range paths {
		id, done := l.LoadFile(ctx, path)
		s.pending[id] = done
	}
	for _, path := range followPaths {
		// An unterminated final line stays unread here; the watcher
		// stores it whole once the writer finishes it.
		id, done := l.LoadFileForFollow(ctx, path)
		s.pending[id] = done
		s.follow[id] = path
	}
	if useStdin {
		// Stream loads finish only when stdin closes, so they are never
		// waited on; the stream has no sidecar either.
		_, s.stream = l.LoadStream(ctx, os.Stdin, "stdin")
	}
	return s, nil
}

// waitLoaded blocks until every pending file load finishes, then registers
// followed files with the watcher. Per-source failures are logged and do
// not abort the other sources.
func (s *sourceSet) waitLoaded() {
	for id, done := range s.pending {
		res := <-done
		if res.Err != nil {
			s.log.Warn("source failed to load", logger.F("source", id), logger.Err(res.Err))
			continue
		}
		if path, ok := s.follow[id]; ok {
			if err := s.watcher.Follow(id, path, res.Offset); err != nil {
				s.log.Warn("cannot follow file", logger.F("path", path), logger.Err(err))
			}
		}
	}
	s.pending = nil
}

// resortAll rebuilds every source's time order, for sources whose files
// were appended out of timestamp order.
func (s *sourceSet) resortAll() {
	for _, info := range s.idx.Sources() {
		if err := s.idx.Resort(info.ID); err != nil {
			s.log.Warn("resort failed", logger.F("source", info.Name), logger.Err(err))
		}
	}
}

// scoreAll runs the anomaly pipeline over every loaded source.
func (s *sourceSet) scoreAll(ctx context.Context) {
	p := anomaly.NewPipeline(s.idx, s.cfg.Scoring.TemporalWindow, s.log.WithComponent("anomaly"))
	if err := p.ScoreAll(ctx); err != nil {
		s.log.Warn("anomaly scoring incomplete", logger.Err(err))
	}
}

// following reports whether any source is registered for tailing.
func (s *sourceSet) following() bool {
	return len(s.follow) > 0
}
