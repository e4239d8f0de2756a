package formatter

import (
	"encoding/json"
	"time"
)

// jsonFormatter formats output as JSON
type jsonFormatter struct{}

// NewJSON creates a new JSON formatter
func NewJSON() Formatter {
	return &jsonFormatter{}
}

func (f *jsonFormatter) Format(result *Result) ([]byte, error) {
	output := &jsonOutput{
		Filter:  result.Filter,
		Sources: make([]*jsonSource, 0, len(result.Sources)),
		Lines:   make([]*jsonLine, 0, len(result.Lines)),
	}

	for _, s := range result.Sources {
		output.Sources = append(output.Sources, &jsonSource{
			ID:      s.Info.ID,
			Name:    s.Info.Name,
			Path:    s.Info.Path,
			Status:  s.Info.Status.String(),
			Lines:   s.Lines,
			Matched: s.Matched,
		})
	}

	for _, line := range result.Lines {
		jl := &jsonLine{
			Timestamp:  line.ID.Timestamp,
			SourceID:   line.ID.SourceID,
			LineNumber: line.ID.LineNumber,
			Message:    line.Message,
			Raw:        line.Raw,
		}
		if result.ShowScores {
			score := line.Score()
			jl.Score = &score
		}
		output.Lines = append(output.Lines, jl)
	}

	return json.MarshalIndent(output, "", "  ")
}

type jsonOutput struct {
	Filter  string        `json:"filter,omitempty"`
	Sources []*jsonSource `json:"sources"`
	Lines   []*jsonLine   `json:"lines"`
}

type jsonSource struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Path    string `json:"path,omitempty"`
	Status  string `json:"status"`
	Lines   int    `json:"lines"`
	Matched int    `json:"matched,omitempty"`
}

type jsonLine struct {
	Timestamp  time.Time `json:"timestamp"`
	SourceID   int       `json:"source_id"`
	LineNumber int       `json:"line_number"`
	Message    string    `json:"message"`
	Raw        string    `json:"raw"`
	Score      *float64  `json:"score,omitempty"`
}
