package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TextParser handles plain text logs with common timestamp prefixes. It is
// the chain's last resort and accepts any line; lines where no timestamp
// pattern matches come back with a zero timestamp and are dropped upstream.
type TextParser struct {
	patterns []*textPattern
	level    *regexp.Regexp
}

type textPattern struct {
	regex    *regexp.Regexp
	tsFormat string
	withYear bool
}

// NewTextParser creates a new plain text parser.
func NewTextParser() *TextParser {
	p := &TextParser{
		level: regexp.MustCompile(`^\[?(TRACE|DEBUG|INFO|WARN|WARNING|ERROR|FATAL)\]?:?\s+`),
	}
	p.initPatterns()
	return p
}

func (p *TextParser) initPatterns() {
	patterns := []struct {
		pattern  string
		tsFormat string
		withYear bool
	}{
		// ISO format: 2006-01-02T15:04:05.000Z message
		{
			pattern:  `^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})?)\s+`,
			tsFormat: time.RFC3339,
		},
		// Common format: 2006-01-02 15:04:05.000 message
		{
			pattern:  `^\[?(\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2}(?:[.,]\d+)?)\]?\s+`,
			tsFormat: "2006-01-02 15:04:05",
		},
		// Syslog format: Jan  2 15:04:05 message (year assumed current)
		{
			pattern:  `^(\w{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2})\s+`,
			tsFormat: "Jan 2 15:04:05",
			withYear: true,
		},
	}

	for _, pt := range patterns {
		re, err := regexp.Compile(pt.pattern)
		if err != nil {
			continue
		}
		p.patterns = append(p.patterns, &textPattern{
			regex:    re,
			tsFormat: pt.tsFormat,
			withYear: pt.withYear,
		})
	}
}

// Parse parses a single text line. Timestamps that fail every known
// pattern leave the entry's Timestamp zero.
func (p *TextParser) Parse(line string) (Entry, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Entry{}, fmt.Errorf("empty line")
	}

	entry := Entry{Raw: line, Message: trimmed}

	for _, pattern := range p.patterns {
		matches := pattern.regex.FindStringSubmatch(trimmed)
		if matches == nil {
			continue
		}
		ts, err := p.parseTime(matches[1], pattern)
		if err != nil {
			continue
		}
		entry.Timestamp = ts
		entry.Message = strings.TrimSpace(trimmed[len(matches[0]):])
		break
	}

	// Strip a leading level token from the message.
	if m := p.level.FindString(entry.Message); m != "" {
		entry.Message = entry.Message[len(m):]
	}
	if entry.Message == "" {
		entry.Message = trimmed
	}

	return entry, nil
}

func (p *TextParser) parseTime(value string, pattern *textPattern) (time.Time, error) {
	if pattern.withYear {
		// Syslog timestamps carry no year; assume the current one.
		composed := fmt.Sprintf("%d %s", time.Now().Year(), value)
		return time.ParseInLocation("2006 "+pattern.tsFormat, composed, time.Local)
	}
	value = strings.ReplaceAll(value, ",", ".")
	if t, err := time.Parse(pattern.tsFormat, value); err == nil {
		return t, nil
	}
	// Fractional seconds and missing zone variants.
	for _, format := range []string{
		"2006-01-02 15:04:05.000",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05.000",
	} {
		if t, err := time.ParseInLocation(format, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unknown time format: %s", value)
}

// CanParse accepts anything; the text strategy is the fallback.
func (p *TextParser) CanParse(line string) bool {
	return true
}

// Name returns the strategy name.
func (p *TextParser) Name() string {
	return "text"
}
