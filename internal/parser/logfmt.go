package parser

import (
	"fmt"
	"strings"
)

// LogfmtParser handles key=value formatted lines.
type LogfmtParser struct{}

// NewLogfmtParser creates a new logfmt parser.
func NewLogfmtParser() *LogfmtParser {
	return &LogfmtParser{}
}

// Parse parses a single logfmt line.
func (p *LogfmtParser) Parse(line string) (Entry, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Entry{}, fmt.Errorf("empty line")
	}

	entry := Entry{Raw: line}
	pairs := parseLogfmtPairs(trimmed)

	for _, key := range []string{"timestamp", "time", "ts"} {
		if val, ok := pairs[key]; ok {
			if t, err := parseTimestamp(val); err == nil {
				entry.Timestamp = t
				break
			}
		}
	}

	for _, key := range []string{"msg", "message"} {
		if val, ok := pairs[key]; ok {
			entry.Message = val
			break
		}
	}
	if entry.Message == "" {
		entry.Message = trimmed
	}

	return entry, nil
}

// parseLogfmtPairs parses key=value pairs, honoring quoted values.
func parseLogfmtPairs(line string) map[string]string {
	pairs := make(map[string]string)

	var key string
	var value strings.Builder
	inQuotes := false
	inKey := true

	for i := 0; i < len(line); i++ {
		ch := line[i]

		switch {
		case ch == '=' && inKey && !inQuotes:
			inKey = false

		case ch == '"' && !inKey:
			if i > 0 && line[i-1] != '\\' {
				inQuotes = !inQuotes
			} else {
				value.WriteByte(ch)
			}

		case ch == ' ' && !inQuotes && !inKey:
			if key != "" {
				pairs[key] = value.String()
			}
			key = ""
			value.Reset()
			inKey = true

		case inKey:
			key += string(ch)

		default:
			value.WriteByte(ch)
		}
	}

	if key != "" {
		pairs[key] = value.String()
	}

	return pairs
}

// CanParse checks for the key=value shape with a known core field.
func (p *LogfmtParser) CanParse(line string) bool {
	return strings.Contains(line, "=") &&
		(strings.Contains(line, "level=") ||
			strings.Contains(line, "msg=") ||
			strings.Contains(line, "time="))
}

// Name returns the strategy name.
func (p *LogfmtParser) Name() string {
	return "logfmt"
}
