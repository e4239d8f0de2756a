package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/logweave/logweave/internal/session"
)

// Common message types shared across UI models

// tickMsg drives periodic refresh while sources are still growing.
type tickMsg time.Time

// sessionSavedMsg reports the outcome of a background session save.
type sessionSavedMsg struct {
	ephemeral int
	err       error
}

// SessionLoadedMsg delivers persisted bookmarks and filters. Sidecar
// loading waits for the initial file loads, so it arrives asynchronously.
type SessionLoadedMsg struct {
	Bookmarks []session.Bookmark
	Filters   []session.SavedFilter
	Broken    int
}

func tickEvery(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
