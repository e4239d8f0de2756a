package parser

import (
	"testing"
	"time"
)

func TestJSONParser(t *testing.T) {
	p := NewJSONParser()

	line := `{"timestamp":"2025-03-14T09:00:01Z","level":"error","message":"disk full"}`
	if !p.CanParse(line) {
		t.Fatal("CanParse rejected a JSON line")
	}
	entry, err := p.Parse(line)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if entry.Message != "disk full" {
		t.Errorf("message = %q", entry.Message)
	}
	want := time.Date(2025, 3, 14, 9, 0, 1, 0, time.UTC)
	if !entry.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", entry.Timestamp, want)
	}

	if p.CanParse("plain text line") {
		t.Error("CanParse accepted plain text")
	}
}

func TestJSONParserNoTimestamp(t *testing.T) {
	p := NewJSONParser()
	entry, err := p.Parse(`{"message":"no clock here"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !entry.Timestamp.IsZero() {
		t.Errorf("timestamp = %v, want zero", entry.Timestamp)
	}
}

func TestLogfmtParser(t *testing.T) {
	p := NewLogfmtParser()

	line := `time=2025-03-14T09:00:01Z level=warn msg="connection reset" peer=10.0.0.2`
	if !p.CanParse(line) {
		t.Fatal("CanParse rejected a logfmt line")
	}
	entry, err := p.Parse(line)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if entry.Message != "connection reset" {
		t.Errorf("message = %q", entry.Message)
	}
	if entry.Timestamp.IsZero() {
		t.Error("timestamp not extracted")
	}
}

func TestTextParserFormats(t *testing.T) {
	p := NewTextParser()

	tests := []struct {
		name    string
		line    string
		message string
		hasTime bool
	}{
		{"iso", "2025-03-14T09:00:01Z ERROR something broke", "something broke", true},
		{"common", "2025-03-14 09:00:01.123 [INFO] started up", "started up", true},
		{"bracketed", "[2025-03-14 09:00:01] request served", "request served", true},
		{"no timestamp", "just some text", "just some text", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := p.Parse(tt.line)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if entry.Timestamp.IsZero() == tt.hasTime {
				t.Errorf("timestamp zero = %v, want %v", entry.Timestamp.IsZero(), !tt.hasTime)
			}
			if entry.Message != tt.message {
				t.Errorf("message = %q, want %q", entry.Message, tt.message)
			}
		})
	}
}

func TestChainDetect(t *testing.T) {
	chain := NewChain()

	jsonSamples := []string{
		`{"time":"2025-03-14T09:00:01Z","msg":"a"}`,
		`{"time":"2025-03-14T09:00:02Z","msg":"b"}`,
	}
	if got := chain.Detect(jsonSamples).Name(); got != "json" {
		t.Errorf("detected %q for JSON samples", got)
	}

	logfmtSamples := []string{
		`time=2025-03-14T09:00:01Z level=info msg="a"`,
		`time=2025-03-14T09:00:02Z level=info msg="b"`,
	}
	if got := chain.Detect(logfmtSamples).Name(); got != "logfmt" {
		t.Errorf("detected %q for logfmt samples", got)
	}
}

func TestTimestampDerived(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		line string
		ts   time.Time
		want bool
	}{
		{"zero", "anything", time.Time{}, false},
		{"far from wall clock", "2025-03-14T09:00:00Z INFO ok",
			time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC), true},
		{"stamped at parse time", "no timestamp here at all", now, false},
		{"now-ish and in the line", "2026-08-26T12:00:00Z live event", now, true},
		{"now-ish, clock only", "12:00:00 heartbeat", now, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := timestampDerived(tt.line, tt.ts, now); got != tt.want {
				t.Errorf("timestampDerived(%q, %v) = %v, want %v", tt.line, tt.ts, got, tt.want)
			}
		})
	}

	// Unix-epoch rendering counts as appearing in the line.
	epoch := time.Unix(1787745600, 0)
	if !timestampDerived("ts=1787745600 heartbeat", epoch, epoch) {
		t.Error("unix seconds in the line must be trusted")
	}
}

func TestAutoParserDropsFabricatedTimestamps(t *testing.T) {
	p := NewAutoParser()

	if p.CanParse("no timestamp here at all") {
		t.Fatal("auto claimed a line with no timestamp in it")
	}
	entry, err := p.Parse("no timestamp here at all")
	if err == nil && !entry.Timestamp.IsZero() {
		t.Errorf("timestamp = %v, want zero for a dateless line", entry.Timestamp)
	}
}

func TestChainDetectPreservesWrittenTimestamps(t *testing.T) {
	chain := NewChain()

	samples := []string{
		"2025-03-14T09:00:00Z INFO ok",
		"2025-03-14T09:00:01Z INFO still ok",
	}
	p := chain.Detect(samples)
	entry, err := p.Parse(samples[0])
	if err != nil {
		t.Fatalf("parse with %q: %v", p.Name(), err)
	}
	want := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	if !entry.Timestamp.Equal(want) {
		t.Fatalf("strategy %q stored %v, want the written %v", p.Name(), entry.Timestamp, want)
	}
}

func TestTemplateKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"User 12345 logged in", "user <num> logged in"},
		{"request 550e8400-e29b-41d4-a716-446655440000 done", "request <uuid> done"},
		{"GET https://example.com/x?id=3 200", "get <url> <num>"},
		{"addr 0xdeadbeef freed", "addr <hex> freed"},
		{"  spaced    out  ", "spaced out"},
	}
	for _, tt := range tests {
		if got := TemplateKey(tt.in); got != tt.want {
			t.Errorf("TemplateKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEntryRecord(t *testing.T) {
	e := Entry{
		Raw:       "raw line 42",
		Timestamp: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
		Message:   "count is 42",
	}
	rec := e.Record()
	if rec.TemplateKey != "count is <num>" {
		t.Errorf("template key = %q", rec.TemplateKey)
	}
	if rec.Raw != e.Raw || rec.Message != e.Message || !rec.Timestamp.Equal(e.Timestamp) {
		t.Error("record fields do not mirror entry")
	}
}
