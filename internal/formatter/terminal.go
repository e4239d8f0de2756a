package formatter

import (
	"fmt"
	"strings"

	"github.com/yildizm/go-termfmt"
)

const defaultTimestampFormat = "2006-01-02 15:04:05"

// terminalFormatter formats merged output as plain text for terminal
// display using go-termfmt
type terminalFormatter struct {
	opts *termfmt.TerminalOptions
}

// NewTerminal creates a new terminal formatter with optional color support
func NewTerminal(color bool) Formatter {
	opts := termfmt.DefaultOptions()
	opts.Color = color
	opts.Emoji = true
	return &terminalFormatter{opts: opts}
}

func (f *terminalFormatter) Format(result *Result) ([]byte, error) {
	var b strings.Builder

	f.writeHeader(&b, result)
	f.writeSources(&b, result)
	f.writeLines(&b, result)

	return []byte(b.String()), nil
}

func (f *terminalFormatter) writeHeader(b *strings.Builder, result *Result) {
	symbol := termfmt.GetEmoji("rocket", f.opts)
	title := fmt.Sprintf("%s Merged Log View", symbol)
	if result.Filter != "" {
		title += fmt.Sprintf("  (filter: %s)", result.Filter)
	}
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("─", len([]rune(title))) + "\n\n")
}

// writeSources writes the per-source summary with tree-style formatting
// using go-termfmt
func (f *terminalFormatter) writeSources(b *strings.Builder, result *Result) {
	if len(result.Sources) == 0 {
		return
	}
	symbol := termfmt.GetEmoji("statistics", f.opts)
	b.WriteString(symbol + " Sources\n")

	items := make([]termfmt.TreeItem, 0, len(result.Sources))
	for i, s := range result.Sources {
		value := fmt.Sprintf("%s lines, %s", formatNumber(s.Lines), s.Info.Status)
		if result.Filter != "" {
			value = fmt.Sprintf("%s matched of %s, %s",
				formatNumber(s.Matched), formatNumber(s.Lines), s.Info.Status)
		}
		items = append(items, termfmt.TreeItem{
			Label: s.Info.Name,
			Value: value,
			Last:  i == len(result.Sources)-1,
		})
	}
	tree := termfmt.TreeViewWithOptions(items, f.opts)
	b.WriteString(tree + "\n\n")
}

func (f *terminalFormatter) writeLines(b *strings.Builder, result *Result) {
	tsFormat := result.TimestampFormat
	if tsFormat == "" {
		tsFormat = defaultTimestampFormat
	}

	names := make(map[int]string, len(result.Sources))
	for _, s := range result.Sources {
		names[s.Info.ID] = s.Info.Name
	}

	for _, line := range result.Lines {
		name := names[line.ID.SourceID]
		if name == "" {
			name = fmt.Sprintf("source-%d", line.ID.SourceID)
		}
		if result.ShowScores {
			fmt.Fprintf(b, "%s  [%s]  %5.1f  %s\n",
				line.ID.Timestamp.Format(tsFormat), name, line.Score(), line.Message)
		} else {
			fmt.Fprintf(b, "%s  [%s]  %s\n",
				line.ID.Timestamp.Format(tsFormat), name, line.Message)
		}
	}
}

// formatNumber formats numbers with commas for readability
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return addCommas(fmt.Sprintf("%d", n))
}

// addCommas adds commas to number strings
func addCommas(s string) string {
	if len(s) <= 3 {
		return s
	}
	return addCommas(s[:len(s)-3]) + "," + s[len(s)-3:]
}
