// Package session persists bookmarks and saved filters in sidecar files.
// There is no single session file: every path-backed source owns a sidecar
// next to it holding that source's bookmarks plus a full copy of every
// saved filter. Divergent copies converge through merge-on-load and
// rewrite-on-save, with no synchronization protocol between files.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"github.com/logweave/logweave/internal/index"
	"github.com/logweave/logweave/internal/logger"
	"github.com/logweave/logweave/internal/logline"
)

// SidecarExt is appended to a source path to name its sidecar file.
const SidecarExt = ".logweave"

// formatVersion is written into every sidecar. Readers reject versions
// newer than their own instead of guessing at the contents.
const formatVersion = 1

// Bookmark marks one line by its full identifier.
type Bookmark struct {
	ID    logline.LineID
	Label string
}

// SavedFilter is one persisted filter pattern. Pattern text plus case
// sensitivity form its identity for dedup purposes.
type SavedFilter struct {
	Pattern       string `json:"pattern"`
	CaseSensitive bool   `json:"case_sensitive"`
}

type sidecarFile struct {
	Version   int               `json:"version"`
	Bookmarks []sidecarBookmark `json:"bookmarks"`
	Filters   []SavedFilter     `json:"filters"`
}

// sidecarBookmark stores no source id: the sidecar's location already
// binds it to one source, and source ids are not stable across runs.
type sidecarBookmark struct {
	LineNumber int       `json:"line_number"`
	Timestamp  time.Time `json:"timestamp"`
	Label      string    `json:"label,omitempty"`
}

// Store reads and writes the sidecars of every path-backed source in the
// index.
type Store struct {
	idx *index.LogIndex
	log *logger.Logger
}

// NewStore creates a session store over the index.
func NewStore(idx *index.LogIndex, log *logger.Logger) *Store {
	return &Store{idx: idx, log: log}
}

// SidecarPath names the sidecar file for a source path.
func SidecarPath(sourcePath string) string {
	return sourcePath + SidecarExt
}

// Save rewrites every path-backed source's sidecar: the bookmarks scoped
// to that source plus the full deduplicated filter list. Bookmarks on
// path-less sources cannot be persisted and are reported back.
func (s *Store) Save(bookmarks []Bookmark, filters []SavedFilter) (ephemeral []Bookmark, err error) {
	bySource := make(map[int][]Bookmark)
	for _, b := range bookmarks {
		bySource[b.ID.SourceID] = append(bySource[b.ID.SourceID], b)
	}
	filters = dedupFilters(filters)

	var firstErr error
	for _, info := range s.idx.Sources() {
		marks := bySource[info.ID]
		if info.Path == "" {
			if len(marks) > 0 {
				s.log.Warn("bookmarks on a stream source are not persisted",
					logger.F("source", info.Name),
					logger.F("bookmarks", len(marks)))
				ephemeral = append(ephemeral, marks...)
			}
			continue
		}
		if err := writeSidecar(SidecarPath(info.Path), marks, filters); err != nil {
			s.log.Error("sidecar write failed", logger.F("path", info.Path), logger.Err(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return ephemeral, firstErr
}

// Load reads every discovered sidecar, unions their bookmarks, and merges
// their filter lists by (pattern, case sensitivity). Bookmarks whose line
// no longer exists come back as broken instead of being silently dropped
// or resurrected. A missing sidecar is not an error.
func (s *Store) Load() (valid, broken []Bookmark, filters []SavedFilter, err error) {
	for _, info := range s.idx.Sources() {
		if info.Path == "" {
			continue
		}
		file, readErr := readSidecar(SidecarPath(info.Path))
		if readErr != nil {
			if errors.Is(readErr, fs.ErrNotExist) {
				continue
			}
			s.log.Warn("sidecar unreadable, skipping", logger.F("path", info.Path), logger.Err(readErr))
			if err == nil {
				err = readErr
			}
			continue
		}
		if file.Version > formatVersion {
			s.log.Warn("sidecar written by a newer version, skipping",
				logger.F("path", info.Path),
				logger.F("version", file.Version))
			continue
		}

		for _, sb := range file.Bookmarks {
			b := Bookmark{
				ID: logline.LineID{
					Timestamp:  sb.Timestamp,
					SourceID:   info.ID,
					LineNumber: sb.LineNumber,
				},
				Label: sb.Label,
			}
			if s.resolves(b.ID) {
				valid = append(valid, b)
			} else {
				broken = append(broken, b)
			}
		}
		filters = append(filters, file.Filters...)
	}
	return valid, broken, dedupFilters(filters), err
}

// resolves reports whether the identifier still names a live line with the
// recorded timestamp. A truncated-and-reloaded file can reissue a line
// number with different content; the timestamp mismatch exposes that.
func (s *Store) resolves(id logline.LineID) bool {
	line, err := s.idx.Get(id)
	return err == nil && line.ID.Equal(id)
}

func dedupFilters(filters []SavedFilter) []SavedFilter {
	seen := make(map[SavedFilter]struct{}, len(filters))
	out := make([]SavedFilter, 0, len(filters))
	for _, f := range filters {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func writeSidecar(path string, bookmarks []Bookmark, filters []SavedFilter) error {
	sort.Slice(bookmarks, func(i, j int) bool {
		return bookmarks[i].ID.Less(bookmarks[j].ID)
	})
	file := sidecarFile{
		Version:   formatVersion,
		Bookmarks: make([]sidecarBookmark, 0, len(bookmarks)),
		Filters:   filters,
	}
	for _, b := range bookmarks {
		file.Bookmarks = append(file.Bookmarks, sidecarBookmark{
			LineNumber: b.ID.LineNumber,
			Timestamp:  b.ID.Timestamp,
			Label:      b.Label,
		})
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sidecar: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}

func readSidecar(path string) (sidecarFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return sidecarFile{}, err
	}
	var file sidecarFile
	if err := json.Unmarshal(data, &file); err != nil {
		return sidecarFile{}, fmt.Errorf("decode sidecar %s: %w", path, err)
	}
	return file, nil
}
