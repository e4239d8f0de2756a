package logline

import (
	"math"
	"sync/atomic"
	"time"
)

// LineID uniquely identifies one log line across all sources.
//
// IDs order by timestamp first, then source ID, then line number. The
// tie-break keeps merge order deterministic when lines from different
// sources share a coarse timestamp. An ID stays valid for as long as its
// line exists in its source; IDs are never reused.
type LineID struct {
	Timestamp  time.Time `json:"timestamp"`
	SourceID   int       `json:"source_id"`
	LineNumber int       `json:"line_number"`
}

// Less reports whether id orders before other.
func (id LineID) Less(other LineID) bool {
	if !id.Timestamp.Equal(other.Timestamp) {
		return id.Timestamp.Before(other.Timestamp)
	}
	if id.SourceID != other.SourceID {
		return id.SourceID < other.SourceID
	}
	return id.LineNumber < other.LineNumber
}

// Equal reports whether two IDs refer to the same line.
func (id LineID) Equal(other LineID) bool {
	return id.Timestamp.Equal(other.Timestamp) &&
		id.SourceID == other.SourceID &&
		id.LineNumber == other.LineNumber
}

// Key returns a comparable form of the ID suitable for map keys.
// time.Time carries a monotonic reading and a location pointer, so the
// struct itself is unreliable under ==; the key strips both.
func (id LineID) Key() Key {
	return Key{
		UnixNano:   id.Timestamp.UnixNano(),
		SourceID:   id.SourceID,
		LineNumber: id.LineNumber,
	}
}

// Key is the map-key form of a LineID.
type Key struct {
	UnixNano   int64
	SourceID   int
	LineNumber int
}

// Record is a parsed line as produced by the parser boundary, before it
// is assigned a LineID by a source store.
type Record struct {
	Raw         string
	Timestamp   time.Time
	Message     string
	TemplateKey string
}

// Line is one stored log line. A Line is owned by exactly one source
// store; every other component refers to it by its ID.
//
// The anomaly score is the only field mutated after append. It is written
// by the scoring pipeline concurrently with readers, so it lives in an
// atomic cell and its updates do not participate in index versioning.
type Line struct {
	ID          LineID
	Raw         string
	Message     string
	TemplateKey string

	score atomic.Uint64 // float64 bits
}

// NewLine builds a stored line from a parsed record.
func NewLine(id LineID, rec Record) *Line {
	return &Line{
		ID:          id,
		Raw:         rec.Raw,
		Message:     rec.Message,
		TemplateKey: rec.TemplateKey,
	}
}

// Score returns the line's anomaly score, 0 if never scored.
func (l *Line) Score() float64 {
	return math.Float64frombits(l.score.Load())
}

// SetScore stores the anomaly score. Safe to call while other goroutines
// read the line.
func (l *Line) SetScore(score float64) {
	l.score.Store(math.Float64bits(score))
}
