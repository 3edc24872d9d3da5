package ui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/perch/internal/engine"
	"github.com/five82/perch/internal/filter"
	"github.com/five82/perch/internal/prefs"
	"github.com/five82/perch/internal/state"
)

// Engine is the subset of *engine.Engine the viewer drives.
type Engine interface {
	Snapshot() engine.View
	Changes() <-chan struct{}
	SetPaused(paused bool)
	ClearAll()
	ApplyFilter(ctx context.Context, f filter.Filter) error
	LoadSnapshot(ctx context.Context, f filter.Filter) error
}

// Clearer empties the server-side buffer.
type Clearer interface {
	ClearLogs(ctx context.Context) error
}

// Options configures the UI.
type Options struct {
	Context    context.Context
	Engine     Engine
	Store      *state.Store // nil in offline mode
	Clearer    Clearer      // nil in offline mode
	Origin     string       // server address or file path, shown in the header
	StatusTick time.Duration
	ThemeName  string
	Follow     bool
	PrefsPath  string
	Logger     *slog.Logger
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx        context.Context
	engine     Engine
	store      *state.Store
	clearer    Clearer
	origin     string
	prefsPath  string
	statusTick time.Duration
	logger     *slog.Logger

	keys     keyMap
	help     help.Model
	theme    Theme
	width    int
	height   int
	ready    bool
	showHelp bool

	view     engine.View
	status   state.Snapshot
	filter   filter.Filter
	follow   bool
	notice   string
	rendered uint64 // view version+1 last written to the viewport; 0 forces a redraw

	searching   bool
	searchRegex bool // regex mode being edited in the prompt
	searchInput textinput.Model
	viewport    viewport.Model
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	statusTick := opts.StatusTick
	if statusTick <= 0 {
		statusTick = time.Second
	}
	themeName := opts.ThemeName
	if themeName == "" {
		themeName = DefaultThemeName
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ti := textinput.New()
	ti.Placeholder = "search (ctrl+r toggles regex)"
	ti.Prompt = "/"
	ti.CharLimit = 256

	view := opts.Engine.Snapshot()
	return Model{
		ctx:         ctx,
		engine:      opts.Engine,
		store:       opts.Store,
		clearer:     opts.Clearer,
		origin:      opts.Origin,
		prefsPath:   opts.PrefsPath,
		statusTick:  statusTick,
		logger:      logger.With("component", "ui"),
		keys:        DefaultKeyMap(),
		help:        help.New(),
		theme:       GetTheme(themeName),
		view:        view,
		filter:      view.Filter,
		follow:      opts.Follow,
		searchInput: ti,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		waitForChange(m.ctx, m.engine),
		tickCmd(m.statusTick),
	}
	if m.store != nil {
		cmds = append(cmds, fetchStatusCmd(m.store))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		if !m.ready {
			m.viewport = viewport.New(m.width, m.contentHeight())
		}
		m.ready = true
		m.rendered = 0
		m.updateViewport()
		return m, nil

	case viewMsg:
		m.view = engine.View(msg)
		m.updateViewport()
		return m, waitForChange(m.ctx, m.engine)

	case tickMsg:
		var cmds []tea.Cmd
		if m.store != nil {
			cmds = append(cmds, fetchStatusCmd(m.store))
		}
		cmds = append(cmds, tickCmd(m.statusTick))
		return m, tea.Batch(cmds...)

	case statusMsg:
		m.status = state.Snapshot(msg)
		return m, nil

	case opDoneMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("%s failed: %v", msg.op, msg.err)
			m.logger.Warn("operation failed", "op", msg.op, "err", msg.err)
		} else if msg.info != "" {
			m.notice = msg.info
		}
		return m, nil
	}

	return m, nil
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.searching {
		return m.handleSearchInput(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.rendered = 0
		m.updateViewport()
		m.savePrefs()
		return m, nil

	case key.Matches(msg, m.keys.Pause):
		m.engine.SetPaused(!m.engine.Snapshot().Paused)
		return m, nil

	case key.Matches(msg, m.keys.ClearLocal):
		m.engine.ClearAll()
		m.notice = "cleared view"
		return m, nil

	case key.Matches(msg, m.keys.ClearServer):
		return m, m.clearServerCmd()

	case key.Matches(msg, m.keys.Reload):
		return m, m.reloadCmd()

	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.searchRegex = m.filter.Regex
		m.searchInput.SetValue(m.filter.Search)
		m.searchInput.CursorEnd()
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.ToggleRegex):
		f := m.filter
		f.Regex = !f.Regex
		return m.applyFilter(f)

	case key.Matches(msg, m.keys.ToggleLevel):
		idx := int(msg.String()[0] - '1')
		if idx < 0 || idx >= len(filter.Levels) {
			return m, nil
		}
		return m.applyFilter(m.filter.ToggleLevel(filter.Levels[idx]))

	case key.Matches(msg, m.keys.CycleSource):
		next, ok := nextSource(m.view.Sources, m.filter.Sources)
		if !ok {
			m.notice = "no sources seen yet"
			return m, nil
		}
		if next == "" {
			return m.applyFilter(m.filter.WithSources())
		}
		return m.applyFilter(m.filter.WithSources(next))

	case key.Matches(msg, m.keys.ClearSources):
		return m.applyFilter(m.filter.WithSources())

	case key.Matches(msg, m.keys.ToggleFollow):
		m.follow = !m.follow
		if m.follow {
			m.viewport.GotoBottom()
		}
		m.savePrefs()
		return m, nil

	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
		m.follow = false
	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
		m.follow = true
	case key.Matches(msg, m.keys.Down):
		m.viewport.LineDown(1)
		m.follow = m.viewport.AtBottom()
	case key.Matches(msg, m.keys.Up):
		m.viewport.LineUp(1)
		m.follow = false
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		m.follow = m.viewport.AtBottom()
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		m.follow = false
	}
	return m, nil
}

// handleSearchInput handles keyboard input while the search prompt is open.
func (m Model) handleSearchInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.searching = false
		m.searchInput.Blur()
		f := m.filter
		f.Search = m.searchInput.Value()
		f.Regex = m.searchRegex
		return m.applyFilter(f)

	case key.Matches(msg, m.keys.Escape):
		m.searching = false
		m.searchInput.Blur()
		return m, nil

	case key.Matches(msg, m.keys.ToggleRegex):
		m.searchRegex = !m.searchRegex
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

// applyFilter records f as the current filter and hands it to the engine.
func (m Model) applyFilter(f filter.Filter) (tea.Model, tea.Cmd) {
	m.filter = f
	m.notice = ""
	if f.Regex && filter.NewSearchMatcher(f.Search, true).Invalid() {
		m.notice = "invalid regex, matching literally"
	}
	eng, ctx := m.engine, m.ctx
	return m, func() tea.Msg {
		return opDoneMsg{op: "filter", err: eng.ApplyFilter(ctx, f)}
	}
}

func (m Model) reloadCmd() tea.Cmd {
	eng, ctx, f := m.engine, m.ctx, m.filter
	return func() tea.Msg {
		return opDoneMsg{op: "reload", err: eng.LoadSnapshot(ctx, f)}
	}
}

func (m Model) clearServerCmd() tea.Cmd {
	eng, ctx, clearer := m.engine, m.ctx, m.clearer
	return func() tea.Msg {
		if clearer != nil {
			if err := clearer.ClearLogs(ctx); err != nil {
				return opDoneMsg{op: "clear server", err: err}
			}
		}
		eng.ClearAll()
		if clearer == nil {
			return opDoneMsg{op: "clear", info: "cleared view (no server)"}
		}
		return opDoneMsg{op: "clear server", info: "cleared server buffer"}
	}
}

func (m Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	if err := prefs.Save(m.prefsPath, prefs.Prefs{Theme: m.theme.Name, Follow: m.follow}); err != nil {
		m.logger.Warn("save prefs", "err", err)
	}
}

// nextSource returns the source after current in sources, or "" to go back to
// all sources. ok is false when there is nothing to cycle through.
func nextSource(sources, current []string) (string, bool) {
	if len(sources) == 0 {
		return "", len(current) > 0
	}
	if len(current) != 1 {
		return sources[0], true
	}
	for i, s := range sources {
		if s == current[0] {
			if i+1 < len(sources) {
				return sources[i+1], true
			}
			return "", true
		}
	}
	return sources[0], true
}

func (m Model) contentHeight() int {
	return max(m.height-3, 1) // header + two footer lines
}

// Messages

type tickMsg time.Time

type viewMsg engine.View

type statusMsg state.Snapshot

type opDoneMsg struct {
	op   string
	err  error
	info string
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchStatusCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return statusMsg(store.Snapshot())
	}
}

// waitForChange blocks until the engine signals a mutation.
func waitForChange(ctx context.Context, e Engine) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-e.Changes():
			return viewMsg(e.Snapshot())
		case <-ctx.Done():
			return nil
		}
	}
}

// Run starts the Bubble Tea program and blocks until the user quits or the
// context is cancelled.
func Run(opts Options) error {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
