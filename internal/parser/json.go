package parser

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// JSONParser handles JSON-object log lines.
type JSONParser struct{}

// NewJSONParser creates a new JSON parser.
func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

// Parse parses a single JSON log line.
func (p *JSONParser) Parse(line string) (Entry, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Entry{}, fmt.Errorf("empty line")
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return Entry{}, fmt.Errorf("invalid JSON: %w", err)
	}

	entry := Entry{Raw: line}

	for _, key := range []string{"timestamp", "time", "@timestamp", "ts"} {
		if val, ok := raw[key]; ok {
			if t, err := parseTimestamp(val); err == nil {
				entry.Timestamp = t
				break
			}
		}
	}

	for _, key := range []string{"message", "msg", "log"} {
		if val, ok := raw[key]; ok {
			if s, ok := val.(string); ok {
				entry.Message = s
				break
			}
		}
	}
	if entry.Message == "" {
		entry.Message = trimmed
	}

	return entry, nil
}

// CanParse checks whether the line looks like a JSON object.
func (p *JSONParser) CanParse(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, "{") && strings.HasSuffix(line, "}")
}

// Name returns the strategy name.
func (p *JSONParser) Name() string {
	return "json"
}

// parseTimestamp attempts to parse various timestamp representations.
func parseTimestamp(val interface{}) (time.Time, error) {
	switch v := val.(type) {
	case string:
		formats := []string{
			time.RFC3339,
			time.RFC3339Nano,
			"2006-01-02T15:04:05.000Z",
			"2006-01-02 15:04:05",
			"Jan 02 15:04:05",
		}
		for _, format := range formats {
			if t, err := time.Parse(format, v); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unknown time format: %s", v)
	case float64:
		// Unix timestamp, seconds.
		return time.Unix(int64(v), 0), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type: %T", val)
	}
}
