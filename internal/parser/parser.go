// Package parser turns raw log lines into timestamped records. Format
// detection runs an ordered list of capability-checked strategies; the
// first strategy that claims a sample wins. There is no reflection-based
// discovery; new formats register explicitly.
package parser

import (
	"time"

	"github.com/logweave/logweave/internal/logline"
)

// Entry is one parsed line. A zero Timestamp means the line carried no
// resolvable timestamp; such lines are dropped by the loader and never
// receive a LineID.
type Entry struct {
	Raw       string
	Timestamp time.Time
	Message   string
}

// Record converts the entry into a storable record, deriving its template
// key from the message.
func (e Entry) Record() logline.Record {
	return logline.Record{
		Raw:         e.Raw,
		Timestamp:   e.Timestamp,
		Message:     e.Message,
		TemplateKey: TemplateKey(e.Message),
	}
}

// Parser is one format strategy.
type Parser interface {
	// Parse parses a single log line.
	Parse(line string) (Entry, error)

	// CanParse checks whether this strategy can handle the given line.
	CanParse(line string) bool

	// Name returns the strategy name.
	Name() string
}

// Chain is an ordered list of parser strategies tried in priority order.
type Chain struct {
	parsers []Parser
}

// NewChain builds the default chain: json, logfmt, auto (go-logparser),
// plain text last since it accepts anything.
func NewChain() *Chain {
	return &Chain{parsers: []Parser{
		NewJSONParser(),
		NewLogfmtParser(),
		NewAutoParser(),
		NewTextParser(),
	}}
}

// Detect picks the strategy that claims the most sample lines, preferring
// earlier (more specific) strategies on ties. Falls back to the last
// strategy when nothing claims anything.
func (c *Chain) Detect(samples []string) Parser {
	best := c.parsers[len(c.parsers)-1]
	bestScore := 0
	for _, p := range c.parsers {
		score := 0
		for _, s := range samples {
			if p.CanParse(s) {
				score++
			}
		}
		if score > bestScore {
			best = p
			bestScore = score
		}
	}
	return best
}
