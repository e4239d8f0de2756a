// Package ui is the interactive merged-log viewer. The model owns no line
// data: it reads through a FilteredView and dereferences identifiers via
// the index, and everything it shows is recomputed from those on demand.
package ui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/logweave/logweave/internal/emoji"
	"github.com/logweave/logweave/internal/index"
	"github.com/logweave/logweave/internal/logline"
	"github.com/logweave/logweave/internal/session"
	"github.com/logweave/logweave/internal/view"
)

// refreshInterval is how often the viewer re-checks the index version
// while any source is still loading, streaming, or tailing.
const refreshInterval = 500 * time.Millisecond

// Options configures the viewer.
type Options struct {
	PageSize   int
	ShowScores bool
	Timestamp  string
	// Live keeps the periodic refresh ticking even after all sources
	// report Done.
	Live bool
}

// Model is the bubbletea model for the merged log viewer.
type Model struct {
	idx      *index.LogIndex
	filtered *view.FilteredView
	sessions *session.Store
	opts     Options

	// selected is the position of the cursor inside the filtered view;
	// top is the first visible position.
	selected int
	top      int

	// anchor remembers the selected line across refreshes so structural
	// changes underneath the view do not teleport the cursor.
	anchor    logline.LineID
	hasAnchor bool

	bookmarks map[logline.Key]session.Bookmark
	filters   []session.SavedFilter

	// filter bar state
	filterInput  string
	typingFilter bool

	// timestamp jump prompt state
	jumpInput  string
	typingJump bool

	status   string
	width    int
	height   int
	ready    bool
	quitting bool
}

// NewModel creates a viewer over the index. Persisted bookmarks and
// filters arrive later via SessionLoadedMsg.
func NewModel(idx *index.LogIndex, sessions *session.Store, opts Options) *Model {
	if opts.PageSize <= 0 {
		opts.PageSize = 40
	}
	if opts.Timestamp == "" {
		opts.Timestamp = "15:04:05.000"
	}
	return &Model{
		idx:       idx,
		filtered:  view.NewFilteredView(idx),
		sessions:  sessions,
		opts:      opts,
		bookmarks: make(map[logline.Key]session.Bookmark),
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		tickEvery(refreshInterval),
	)
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.refresh()

	case tea.KeyMsg:
		if m.typingFilter {
			return m.updateFilterInput(msg)
		}
		if m.typingJump {
			return m.updateJumpInput(msg)
		}
		return m.updateNavigation(msg)

	case tickMsg:
		if m.filtered.RefreshIfNeeded() {
			m.recoverAnchor()
		}
		if m.anySourceActive() || m.opts.Live {
			return m, tickEvery(refreshInterval)
		}
		return m, nil

	case SessionLoadedMsg:
		for _, b := range msg.Bookmarks {
			m.bookmarks[b.ID.Key()] = b
		}
		for _, f := range msg.Filters {
			m.rememberFilter(f)
		}
		if msg.Broken > 0 {
			m.status = fmt.Sprintf("%s %d bookmarks no longer resolve",
				emoji.GetEmoji("warning"), msg.Broken)
		}

	case sessionSavedMsg:
		if msg.err != nil {
			m.status = emoji.GetEmoji("error") + " save failed: " + msg.err.Error()
		} else if msg.ephemeral > 0 {
			m.status = fmt.Sprintf("%s saved (%d stream bookmarks not persisted)",
				emoji.GetEmoji("warning"), msg.ephemeral)
		} else {
			m.status = emoji.GetEmoji("success") + " session saved"
		}
	}

	return m, nil
}

func (m *Model) updateNavigation(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		m.moveSelection(-1)
	case "down", "j":
		m.moveSelection(1)
	case "pgup":
		m.moveSelection(-m.pageSize())
	case "pgdown", " ":
		m.moveSelection(m.pageSize())
	case "home", "g":
		m.setSelection(0)
	case "end", "G":
		m.setSelection(m.filtered.Len() - 1)
	case "/":
		m.typingFilter = true
		m.filterInput, _ = m.filtered.Pattern()
		m.status = ""
	case "t":
		m.typingJump = true
		m.jumpInput = ""
		m.status = ""
	case "C":
		m.toggleFilterCase()
	case "b":
		m.toggleBookmark()
	case "s":
		return m, m.saveSession()
	case "esc":
		if pattern, _ := m.filtered.Pattern(); pattern != "" {
			m.applyFilter("")
		}
	}
	return m, nil
}

func (m *Model) updateFilterInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.typingFilter = false
		m.applyFilter(m.filterInput)
	case "esc":
		m.typingFilter = false
		m.filterInput = ""
	case "backspace":
		m.filterInput = trimLastRune(m.filterInput)
	default:
		if msg.Type == tea.KeyRunes {
			m.filterInput += string(msg.Runes)
		}
	}
	return m, nil
}

func (m *Model) updateJumpInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.typingJump = false
		m.jumpToTimestamp(m.jumpInput)
	case "esc":
		m.typingJump = false
		m.jumpInput = ""
	case "backspace":
		m.jumpInput = trimLastRune(m.jumpInput)
	default:
		if msg.Type == tea.KeyRunes {
			m.jumpInput += string(msg.Runes)
		}
	}
	return m, nil
}

// trimLastRune removes the final rune, not byte, so backspacing multibyte
// input never leaves a broken encoding behind.
func trimLastRune(s string) string {
	if s == "" {
		return s
	}
	_, size := utf8.DecodeLastRuneInString(s)
	return s[:len(s)-size]
}

// jumpTimeLayouts are tried in order; time-only layouts borrow the date of
// the currently selected line.
var jumpTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"15:04:05.000",
	"15:04:05",
	"15:04",
}

// jumpToTimestamp re-anchors the cursor at the first line at or after the
// given timestamp. The navigator binary-searches each source index, so the
// jump never walks the match list.
func (m *Model) jumpToTimestamp(input string) {
	ts, err := m.parseJumpTime(strings.TrimSpace(input))
	if err != nil {
		m.status = fmt.Sprintf("%s %v", emoji.GetEmoji("error"), err)
		return
	}
	nav := view.NewCursorNavigator(m.idx, nil)
	nav.JumpToTimestamp(ts)
	nav.FillVisible(2)
	window := nav.Window()
	if len(window) == 0 {
		m.status = "no lines to jump to"
		return
	}
	target := window[len(window)-1]
	for _, line := range window {
		if !line.ID.Timestamp.Before(ts) {
			target = line
			break
		}
	}
	m.anchor = target.ID
	m.hasAnchor = true
	m.recoverAnchor()
	m.status = ""
}

func (m *Model) parseJumpTime(input string) (time.Time, error) {
	ref := time.Now()
	if line, ok := m.filtered.Get(m.selected); ok {
		ref = line.ID.Timestamp
	}
	for _, layout := range jumpTimeLayouts {
		ts, err := time.Parse(layout, input)
		if err != nil {
			continue
		}
		if !strings.Contains(layout, "2006") {
			y, mo, d := ref.Date()
			ts = time.Date(y, mo, d, ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), ref.Location())
		}
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", input)
}

func (m *Model) applyFilter(pattern string) {
	_, caseSensitive := m.filtered.Pattern()
	if err := m.filtered.SetPattern(pattern, caseSensitive); err != nil {
		// The previous match list stays usable; only report the problem.
		m.status = fmt.Sprintf("%s invalid pattern: %v", emoji.GetEmoji("error"), err)
		return
	}
	m.status = ""
	if pattern != "" {
		m.rememberFilter(session.SavedFilter{Pattern: pattern, CaseSensitive: caseSensitive})
	}
	m.refresh()
	m.recoverAnchor()
}

func (m *Model) toggleFilterCase() {
	pattern, caseSensitive := m.filtered.Pattern()
	if pattern == "" {
		return
	}
	// The pattern already compiled once, so flipping case cannot fail.
	if err := m.filtered.SetPattern(pattern, !caseSensitive); err != nil {
		m.status = fmt.Sprintf("%s %v", emoji.GetEmoji("error"), err)
		return
	}
	if !caseSensitive {
		m.status = "filter: case sensitive"
	} else {
		m.status = "filter: case insensitive"
	}
	m.rememberFilter(session.SavedFilter{Pattern: pattern, CaseSensitive: !caseSensitive})
	m.refresh()
	m.recoverAnchor()
}

func (m *Model) rememberFilter(f session.SavedFilter) {
	for _, existing := range m.filters {
		if existing == f {
			return
		}
	}
	m.filters = append(m.filters, f)
}

func (m *Model) toggleBookmark() {
	line, ok := m.filtered.Get(m.selected)
	if !ok {
		return
	}
	key := line.ID.Key()
	if _, exists := m.bookmarks[key]; exists {
		delete(m.bookmarks, key)
		m.status = "bookmark removed"
		return
	}
	m.bookmarks[key] = session.Bookmark{
		ID:    line.ID,
		Label: line.ID.Timestamp.Format(time.RFC3339),
	}
	m.status = emoji.GetEmoji("bookmark") + " bookmarked"
}

func (m *Model) saveSession() tea.Cmd {
	marks := make([]session.Bookmark, 0, len(m.bookmarks))
	for _, b := range m.bookmarks {
		marks = append(marks, b)
	}
	filters := make([]session.SavedFilter, len(m.filters))
	copy(filters, m.filters)
	store := m.sessions
	return func() tea.Msg {
		ephemeral, err := store.Save(marks, filters)
		return sessionSavedMsg{ephemeral: len(ephemeral), err: err}
	}
}

func (m *Model) refresh() {
	m.filtered.RefreshIfNeeded()
	m.clampSelection()
}

// recoverAnchor re-finds the remembered line after the match list was
// rebuilt. An exact hit restores the position; otherwise the nearest
// following line is selected.
func (m *Model) recoverAnchor() {
	m.clampSelection()
	if !m.hasAnchor {
		return
	}
	if pos, ok := m.filtered.FindByID(m.anchor); ok {
		m.setSelection(pos)
		return
	}
	ids := m.filtered.IDs()
	for pos, id := range ids {
		if m.anchor.Less(id) {
			m.setSelection(pos)
			return
		}
	}
	m.setSelection(len(ids) - 1)
}

func (m *Model) moveSelection(delta int) {
	m.setSelection(m.selected + delta)
}

func (m *Model) setSelection(pos int) {
	if n := m.filtered.Len(); pos >= n {
		pos = n - 1
	}
	if pos < 0 {
		pos = 0
	}
	m.selected = pos
	if line, ok := m.filtered.Get(pos); ok {
		m.anchor = line.ID
		m.hasAnchor = true
	}
	m.scrollIntoView()
}

func (m *Model) clampSelection() {
	if n := m.filtered.Len(); m.selected >= n {
		m.selected = max(n-1, 0)
	}
	m.scrollIntoView()
}

func (m *Model) scrollIntoView() {
	page := m.pageSize()
	if m.selected < m.top {
		m.top = m.selected
	}
	if m.selected >= m.top+page {
		m.top = m.selected - page + 1
	}
	if m.top < 0 {
		m.top = 0
	}
}

func (m *Model) pageSize() int {
	// Header, filter bar, and status line take three rows.
	if m.height > 3 {
		return m.height - 3
	}
	return m.opts.PageSize
}

func (m *Model) anySourceActive() bool {
	for _, info := range m.idx.Sources() {
		switch info.Status.Kind {
		case logline.StatusLoading, logline.StatusStreaming, logline.StatusTailing:
			return true
		}
	}
	return false
}

// View renders the model
func (m *Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.quitting {
		return ""
	}

	theme := GetTheme()
	var b strings.Builder

	b.WriteString(m.renderHeader(theme))
	b.WriteString("\n")
	b.WriteString(m.renderLines(theme))
	b.WriteString(m.renderFooter(theme))
	return b.String()
}

func (m *Model) renderHeader(theme Theme) string {
	style := lipgloss.NewStyle().Bold(true).Foreground(theme.Primary)
	parts := make([]string, 0, 4)
	parts = append(parts, fmt.Sprintf("%s logweave", emoji.GetEmoji("rocket")))
	parts = append(parts, fmt.Sprintf("%d/%d lines", m.filtered.Len(), m.idx.TotalLines()))
	for _, info := range m.idx.Sources() {
		switch info.Status.Kind {
		case logline.StatusLoading, logline.StatusStreaming, logline.StatusTailing, logline.StatusError:
			parts = append(parts, fmt.Sprintf("%s %s", info.Name, info.Status))
		}
	}
	return style.Render(strings.Join(parts, "  │  "))
}

func (m *Model) renderLines(theme Theme) string {
	var b strings.Builder
	page := m.pageSize()
	selectedStyle := lipgloss.NewStyle().Background(theme.Selected)
	mutedStyle := lipgloss.NewStyle().Foreground(theme.Muted)

	for row := 0; row < page; row++ {
		pos := m.top + row
		line, ok := m.filtered.Get(pos)
		if !ok {
			b.WriteString("\n")
			continue
		}

		mark := " "
		if _, bookmarked := m.bookmarks[line.ID.Key()]; bookmarked {
			mark = emoji.GetEmoji("bookmark")
		}

		text := fmt.Sprintf("%s %s  %s",
			mark,
			mutedStyle.Render(line.ID.Timestamp.Format(m.opts.Timestamp)),
			m.renderMessage(theme, line))
		if pos == m.selected {
			text = selectedStyle.Render(text)
		}
		b.WriteString(text + "\n")
	}
	return b.String()
}

func (m *Model) renderMessage(theme Theme, line *logline.Line) string {
	msg := line.Message
	if !m.opts.ShowScores {
		return msg
	}
	score := line.Score()
	switch {
	case score >= 80:
		return lipgloss.NewStyle().Foreground(theme.Error).Render(msg)
	case score >= 50:
		return lipgloss.NewStyle().Foreground(theme.Warning).Render(msg)
	default:
		return msg
	}
}

func (m *Model) renderFooter(theme Theme) string {
	if m.typingFilter {
		prompt := lipgloss.NewStyle().Foreground(theme.Highlight)
		return prompt.Render(fmt.Sprintf("%s filter: %s▌", emoji.GetEmoji("filter"), m.filterInput))
	}
	if m.typingJump {
		prompt := lipgloss.NewStyle().Foreground(theme.Highlight)
		return prompt.Render(fmt.Sprintf("jump to time: %s▌", m.jumpInput))
	}
	if m.status != "" {
		return m.status
	}
	hints := "q quit  /  filter  C case  t jump  b bookmark  s save  g/G top/bottom"
	if pattern, _ := m.filtered.Pattern(); pattern != "" {
		hints = fmt.Sprintf("%s %s  │  %s", emoji.GetEmoji("filter"), pattern, hints)
	}
	return lipgloss.NewStyle().Foreground(theme.Secondary).Render(hints)
}

// Run starts the viewer and blocks until the user quits. loadSession, if
// non-nil, runs on its own goroutine and its result is delivered to the
// model when ready.
func Run(idx *index.LogIndex, sessions *session.Store, opts Options, loadSession func() SessionLoadedMsg) error {
	model := NewModel(idx, sessions, opts)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if loadSession != nil {
		go func() {
			p.Send(loadSession())
		}()
	}
	_, err := p.Run()
	return err
}
