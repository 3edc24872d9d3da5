package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/five82/perch/internal/logapi"
	"github.com/five82/perch/internal/stream"
)

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderFilterBar())
	b.WriteString("\n")
	b.WriteString(m.renderHints())
	return b.String()
}

// updateViewport re-renders the visible entries when the engine view or the
// layout changed.
func (m *Model) updateViewport() {
	if !m.ready {
		return
	}
	m.viewport.Width = m.width
	m.viewport.Height = m.contentHeight()
	m.viewport.Style = lipgloss.NewStyle().Background(lipgloss.Color(m.theme.FocusBg))

	if m.rendered != m.view.Version+1 {
		m.viewport.SetContent(m.renderEntries())
		m.rendered = m.view.Version + 1
	}
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) renderEntries() string {
	bg := NewBgStyle(m.theme.FocusBg)
	styles := m.theme.Styles()

	if len(m.view.Visible) == 0 {
		msg := "No log entries"
		switch {
		case m.view.Loading:
			msg = "Loading snapshot..."
		case m.view.Retained > 0:
			msg = fmt.Sprintf("No entries match the source filter (%d retained)", m.view.Retained)
		}
		return bg.FillLine(bg.Render(msg, styles.MutedText), m.width)
	}

	lines := make([]string, len(m.view.Visible))
	for i, entry := range m.view.Visible {
		lines[i] = bg.FillLine(formatEntry(entry, styles, bg), m.width)
	}
	return strings.Join(lines, "\n")
}

// formatEntry renders "15:04:05 ERROR web-1 message". Unparsed entries show
// their raw text.
func formatEntry(e logapi.LogEntry, styles Styles, bg BgStyle) string {
	ts := "--:--:--"
	if t := e.ParsedTime(); !t.IsZero() {
		ts = t.Local().Format("15:04:05")
	}
	parts := []string{bg.Render(ts, styles.FaintText)}

	if level := e.Level(); level != "" {
		parts = append(parts, bg.Render(fmt.Sprintf("%-5s", strings.ToUpper(level)), styles.LevelStyle(level)))
	}
	if source := e.Source(); source != "" {
		parts = append(parts, bg.Render(source, styles.SourceStyle(source)))
	}
	parts = append(parts, bg.Render(sanitize(e.Message()), styles.Text))
	return strings.Join(parts, bg.Space())
}

// sanitize removes escape sequences and control characters that would corrupt
// the layout.
func sanitize(s string) string {
	s = ansi.Strip(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t':
			return ' '
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, s)
}

func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Surface)

	parts := []string{bg.Render("perch", styles.Logo)}
	if m.origin != "" {
		parts = append(parts, bg.Render(m.origin, styles.MutedText))
	}

	if m.store != nil {
		parts = append(parts, m.connectionLabel(styles, bg))
		if !m.view.UpstreamOpen || m.status.UpstreamClosed() {
			parts = append(parts, bg.Render("upstream closed", styles.WarningText))
		}
	} else {
		parts = append(parts, bg.Render("file", styles.InfoText))
	}
	if m.view.Paused {
		label := "PAUSED"
		if m.view.DroppedWhilePaused > 0 {
			label = fmt.Sprintf("PAUSED (%d dropped)", m.view.DroppedWhilePaused)
		}
		parts = append(parts, bg.Render(label, styles.WarningText))
	}
	if m.view.Loading {
		parts = append(parts, bg.Render("loading", styles.InfoText))
	}

	counts := fmt.Sprintf("%d shown / %d kept / %d max", len(m.view.Visible), m.view.Retained, m.view.Capacity)
	parts = append(parts, bg.Render(counts, styles.Text))

	if m.store != nil {
		switch {
		case m.status.IsOffline():
			parts = append(parts, bg.Render("api unreachable", styles.DangerText))
		case m.status.HasStatus:
			st := m.status.Status
			parts = append(parts, bg.Render(fmt.Sprintf("server buf %d%% rx %d (%.1f/s) up %s",
				m.status.BufferPercent(), st.TotalReceived, m.status.IngestRate, st.Uptime), styles.MutedText))
		}
	}

	sep := bg.Space() + bg.Render("•", styles.FaintText) + bg.Space()
	return bg.FillLine(bg.Space()+strings.Join(parts, sep), m.width)
}

func (m Model) connectionLabel(styles Styles, bg BgStyle) string {
	switch m.view.Connection {
	case stream.StateOpen:
		return bg.Render("● live", styles.SuccessText)
	case stream.StateConnecting:
		return bg.Render("○ connecting", styles.WarningText)
	default:
		return bg.Render("○ disconnected", styles.DangerText)
	}
}

func (m Model) renderFilterBar() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Surface)

	if m.searching {
		mode := "text"
		if m.searchRegex {
			mode = "regex"
		}
		return bg.FillLine(m.searchInput.View()+bg.Space()+bg.Render("["+mode+"]", styles.FaintText), m.width)
	}

	var parts []string
	if summary := m.filter.Summary(); summary != "" {
		parts = append(parts, bg.Render("filter "+summary, styles.AccentText))
	} else {
		parts = append(parts, bg.Render("no filter", styles.FaintText))
	}
	if len(m.view.Sources) > 0 {
		parts = append(parts, bg.Render("sources "+strings.Join(m.view.Sources, ","), styles.MutedText))
	}
	if m.follow {
		parts = append(parts, bg.Render("follow", styles.InfoText))
	}
	switch {
	case m.notice != "":
		parts = append(parts, bg.Render(m.notice, styles.WarningText))
	case m.view.LastError != nil:
		parts = append(parts, bg.Render(m.view.LastError.Error(), styles.DangerText))
	}
	return bg.FillLine(bg.Space()+bg.Join(parts, "  "), m.width)
}

func (m Model) renderHints() string {
	bg := NewBgStyle(m.theme.Surface)
	return bg.FillLine(bg.Space()+m.help.ShortHelpView(m.keys.ShortHelp()), m.width)
}

func (m Model) renderHelp() string {
	styles := m.theme.Styles()
	title := styles.Logo.Render("perch keys")
	body := m.help.FullHelpView(m.keys.FullHelp())
	footer := styles.FaintText.Render("press any key to close")
	content := lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", footer)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content,
		lipgloss.WithWhitespaceBackground(lipgloss.Color(m.theme.Background)))
}
