package logline

import "fmt"

// StatusKind enumerates the lifecycle states of a source.
type StatusKind int

const (
	// StatusLoading means a bounded load is in progress.
	StatusLoading StatusKind = iota
	// StatusDone means no further appends will happen.
	StatusDone
	// StatusStreaming means an unbounded stream (stdin) is feeding the source.
	StatusStreaming
	// StatusTailing means a file watcher is appending new content.
	StatusTailing
	// StatusError is terminal; the source keeps its lines but stops growing.
	StatusError
)

func (k StatusKind) String() string {
	switch k {
	case StatusLoading:
		return "loading"
	case StatusDone:
		return "done"
	case StatusStreaming:
		return "streaming"
	case StatusTailing:
		return "tailing"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// SourceStatus is the current state of a source plus state-specific detail.
type SourceStatus struct {
	Kind StatusKind
	// Progress is the load fraction in [0,1], meaningful while Loading.
	Progress float64
	// Message carries the failure description for StatusError.
	Message string
}

func (s SourceStatus) String() string {
	switch s.Kind {
	case StatusLoading:
		return fmt.Sprintf("loading %.0f%%", s.Progress*100)
	case StatusError:
		return "error: " + s.Message
	default:
		return s.Kind.String()
	}
}

// SourceInfo describes one ingestion origin.
type SourceInfo struct {
	ID   int
	Name string
	// Path is the backing file path; empty for stream sources, which have
	// no sidecar and whose bookmarks are ephemeral.
	Path   string
	Status SourceStatus
}
