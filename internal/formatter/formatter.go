package formatter

import (
	"fmt"

	"github.com/logweave/logweave/internal/logline"
)

// Result is the merged output handed to a formatter: the sources that
// contributed and the lines in merged order.
type Result struct {
	Sources []SourceSummary
	Lines   []*logline.Line

	// Filter is the pattern the lines were filtered by, empty for none.
	Filter string
	// ShowScores includes anomaly scores in the output.
	ShowScores bool
	// TimestampFormat renders line timestamps; empty selects a default.
	TimestampFormat string
}

// SourceSummary describes one source's contribution to a merge.
type SourceSummary struct {
	Info    logline.SourceInfo
	Lines   int
	Matched int
}

// Formatter defines the interface for output formatting
type Formatter interface {
	Format(result *Result) ([]byte, error)
}

// New creates a formatter for the named format.
func New(format string, color bool) (Formatter, error) {
	switch format {
	case "text", "":
		return NewTerminal(color), nil
	case "json":
		return NewJSON(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
