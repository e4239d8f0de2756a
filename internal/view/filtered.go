// Package view provides read-side projections of a LogIndex: cached
// filtered views for moderate data sizes and bounded-memory cursor
// navigation for huge ones. Views never mutate index structure and are
// safe to drive from the foreground alongside background loaders.
package view

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/logweave/logweave/internal/index"
	"github.com/logweave/logweave/internal/logline"
)

// FilteredView is a cached projection of the merged sequence restricted to
// lines whose message matches a pattern. The cache is tagged with the
// index version it was computed for and is rebuilt lazily when the version
// moves; score updates don't move the version, so they never trigger a
// rebuild.
type FilteredView struct {
	idx *index.LogIndex

	pattern       string
	caseSensitive bool
	re            *regexp.Regexp
	patternErr    error

	matching      []logline.LineID
	cachedVersion uint64
	valid         bool
}

// NewFilteredView creates a view over the given index matching everything.
func NewFilteredView(idx *index.LogIndex) *FilteredView {
	return &FilteredView{idx: idx}
}

// SetPattern installs a new filter. An empty pattern matches every line.
// An invalid pattern leaves the previous results and pattern untouched and
// is reported both as the return value and via Err, so callers can show
// the error without losing what the user was looking at.
func (v *FilteredView) SetPattern(pattern string, caseSensitive bool) error {
	if pattern == "" {
		v.pattern, v.caseSensitive = "", caseSensitive
		v.re, v.patternErr = nil, nil
		v.valid = false
		return nil
	}

	expr := pattern
	if !caseSensitive {
		expr = "(?i)" + pattern
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		v.patternErr = fmt.Errorf("invalid filter pattern %q: %w", pattern, err)
		return v.patternErr
	}

	v.pattern, v.caseSensitive = pattern, caseSensitive
	v.re, v.patternErr = re, nil
	v.valid = false
	return nil
}

// Pattern returns the active pattern and its case sensitivity.
func (v *FilteredView) Pattern() (string, bool) {
	return v.pattern, v.caseSensitive
}

// Err returns the error for the last rejected pattern, nil once a valid
// pattern is installed.
func (v *FilteredView) Err() error {
	return v.patternErr
}

// Matches reports whether a line passes the filter predicate.
func (v *FilteredView) Matches(line *logline.Line) bool {
	if v.re == nil {
		return true
	}
	return v.re.MatchString(line.Message)
}

// RefreshIfNeeded rebuilds the cache if the index moved since the last
// pass. Returns true when a rebuild happened. The pass is restarted if the
// index version changes underneath it, so the resulting cache is always
// consistent with the version it is tagged with.
func (v *FilteredView) RefreshIfNeeded() bool {
	if v.valid && v.cachedVersion == v.idx.Version() {
		return false
	}

	for {
		before := v.idx.Version()
		ids := make([]logline.LineID, 0, 64)
		it := v.idx.IterMerged()
		for {
			line, ok := it.Next()
			if !ok {
				break
			}
			if v.Matches(line) {
				ids = append(ids, line.ID)
			}
		}
		if v.idx.Version() == before {
			v.matching = ids
			v.cachedVersion = before
			v.valid = true
			return true
		}
		// A loader or tailer appended mid-pass; discard and retry.
	}
}

// Len returns the number of matches. Valid only after RefreshIfNeeded.
func (v *FilteredView) Len() int {
	return len(v.matching)
}

// Get returns the line at a match position, or false if the position is
// out of range. O(1): one slice index plus one ID dereference.
func (v *FilteredView) Get(pos int) (*logline.Line, bool) {
	if pos < 0 || pos >= len(v.matching) {
		return nil, false
	}
	line, err := v.idx.Get(v.matching[pos])
	if err != nil {
		return nil, false
	}
	return line, true
}

// FindByID locates an ID's position among the matches by binary search.
func (v *FilteredView) FindByID(id logline.LineID) (int, bool) {
	pos := sort.Search(len(v.matching), func(i int) bool {
		return !v.matching[i].Less(id)
	})
	if pos < len(v.matching) && v.matching[pos].Equal(id) {
		return pos, true
	}
	return 0, false
}

// IDs returns the matched identifiers in ascending order. The slice is the
// view's cache; callers must not mutate it.
func (v *FilteredView) IDs() []logline.LineID {
	return v.matching
}
