package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yildizm/go-logparser"
)

// AutoParser delegates to go-logparser's format auto-detection. It sits
// between the specific strategies and the plain-text fallback: it claims a
// line only when its detection yields a timestamp that is verifiably part
// of the line, so timestamped formats the specific strategies miss still
// parse cleanly.
type AutoParser struct {
	parser logparser.Parser
}

// NewAutoParser creates the go-logparser backed strategy.
func NewAutoParser() *AutoParser {
	return &AutoParser{parser: logparser.New()}
}

// Parse parses a single line through go-logparser. Timestamps the library
// stamped itself instead of reading from the line are zeroed so the line
// is dropped upstream rather than stored under a wall-clock LineID.
func (p *AutoParser) Parse(line string) (Entry, error) {
	entries, err := p.parser.ParseString(line)
	if err != nil {
		return Entry{}, fmt.Errorf("logparser: %w", err)
	}
	if len(entries) == 0 {
		return Entry{}, fmt.Errorf("logparser: no entry for line")
	}

	entry := Entry{
		Raw:       line,
		Timestamp: entries[0].Timestamp,
		Message:   entries[0].Message,
	}
	if !timestampDerived(line, entry.Timestamp, time.Now()) {
		entry.Timestamp = time.Time{}
	}
	if entry.Message == "" {
		entry.Message = line
	}
	return entry, nil
}

// CanParse claims the line when detection finds a timestamp that was
// actually read from it.
func (p *AutoParser) CanParse(line string) bool {
	entries, err := p.parser.ParseString(line)
	if err != nil || len(entries) == 0 {
		return false
	}
	return timestampDerived(line, entries[0].Timestamp, time.Now())
}

// Name returns the strategy name.
func (p *AutoParser) Name() string {
	return "auto"
}

// wallClockSlack is how close to the current time a parsed timestamp must
// be before it is suspected of being stamped at parse time.
const wallClockSlack = 5 * time.Second

// renderLayouts are the textual forms a genuine timestamp near the wall
// clock must match somewhere in its line to be trusted.
var renderLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"02/Jan/2006:15:04:05",
	"Jan _2 15:04:05",
	"Jan 02 15:04:05",
	"15:04:05",
}

// timestampDerived reports whether ts plausibly came from the line itself.
// go-logparser substitutes the wall clock for timestamps it cannot parse,
// so a zero timestamp is rejected outright and a now-ish one is trusted
// only when some rendering of it appears in the line. Timestamps far from
// the wall clock cannot be parse-time stamps and pass unchecked.
func timestampDerived(line string, ts, now time.Time) bool {
	if ts.IsZero() {
		return false
	}
	if d := now.Sub(ts); d > wallClockSlack || d < -wallClockSlack {
		return true
	}
	for _, moment := range []time.Time{ts, ts.UTC()} {
		for _, layout := range renderLayouts {
			if strings.Contains(line, moment.Format(layout)) {
				return true
			}
		}
	}
	return strings.Contains(line, strconv.FormatInt(ts.Unix(), 10))
}
