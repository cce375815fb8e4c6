package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskboard/internal/keys"
	"github.com/nhle/taskboard/internal/logger"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/realtime"
	"github.com/nhle/taskboard/internal/store"
	appsync "github.com/nhle/taskboard/internal/sync"
	"github.com/nhle/taskboard/internal/theme"
	"github.com/nhle/taskboard/internal/ui"
	"github.com/nhle/taskboard/internal/ui/command"
	"github.com/nhle/taskboard/internal/ui/detail"
	"github.com/nhle/taskboard/internal/ui/feed"
	helpview "github.com/nhle/taskboard/internal/ui/help"
	"github.com/nhle/taskboard/internal/ui/inbox"
	"github.com/nhle/taskboard/internal/ui/team"
)

// toastTTL is how long an error toast stays in the status bar.
const toastTTL = 6 * time.Second

// ViewState represents the current overlay, if any.
type ViewState int

const (
	ViewDashboard ViewState = iota
	ViewHelp
	ViewCommand
	ViewDetail
)

// Panel identifies the dashboard panel that receives keys.
type Panel int

const (
	PanelFeed Panel = iota
	PanelInbox
)

type configChangedMsg struct {
	cfg *model.AppConfig
}

type toastExpiredMsg struct {
	seq int
}

// Options configures New.
type Options struct {
	// Scope is the initial subject.
	Scope appsync.Scope

	// Filter is the initial activity filter.
	Filter model.ActivityFilter

	// ConfigChanges delivers reloaded configuration. Nil disables hot
	// reload.
	ConfigChanges <-chan *model.AppConfig

	Sync appsync.Options
	Log  *logger.Logger
}

// Model is the root Bubble Tea model. It hosts the three sync components
// and routes every message to each of them; they ignore what isn't theirs.
type Model struct {
	currentView  ViewState
	focus        Panel
	layout       ui.Layout
	keys         *keys.KeyMap
	log          *logger.Logger
	configCh     <-chan *model.AppConfig
	initialScope appsync.Scope
	filter       model.ActivityFilter

	feed   appsync.ActivityFeed
	center appsync.NotificationCenter
	board  appsync.TeamBoard

	feedView    feed.Model
	inboxView   inbox.Model
	teamView    team.Model
	helpView    helpview.Model
	commandView command.Model
	detailView  detail.Model

	toast    string
	toastSeq int
	ready    bool
}

// New creates the root model over a store and a push channel. A nil
// channel runs the dashboard without live updates.
func New(s store.Store, ch realtime.Channel, opts Options) Model {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	opts.Sync.Log = log
	now := opts.Sync.Now
	if now == nil {
		now = time.Now
	}
	k := keys.DefaultKeyMap()

	return Model{
		currentView:  ViewDashboard,
		focus:        PanelFeed,
		keys:         k,
		log:          log.Named("app"),
		configCh:     opts.ConfigChanges,
		initialScope: opts.Scope,
		filter:       opts.Filter,
		feed:         appsync.NewActivityFeed(s, ch, opts.Sync),
		center:       appsync.NewNotificationCenter(s, ch, opts.Sync),
		board:        appsync.NewTeamBoard(s, opts.Sync),
		feedView:     feed.New(k, now, 80, 24),
		inboxView:    inbox.New(k, now, 40, 12),
		teamView:     team.New(40, 12),
		helpView:     helpview.New(k, 80, 24),
		commandView:  command.New(80, 24),
		detailView:   detail.New(k, 80, 24),
	}
}

// Init loads every panel for the initial scope and starts listening for
// configuration changes.
func (m Model) Init() tea.Cmd {
	return func() tea.Msg {
		return configChangedMsg{cfg: &model.AppConfig{Subject: model.SubjectConfig{
			UserID:      m.initialScope.UserID,
			WorkspaceID: m.initialScope.WorkspaceID,
		}}}
	}
}

// Scope returns the subject currently shown.
func (m Model) Scope() appsync.Scope { return m.center.Scope() }

// Toast returns the status-bar error text, if any.
func (m Model) Toast() string { return m.toast }

// Update routes messages to the overlays, the sync components and the
// focused panel.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case configChangedMsg:
		scope := appsync.Scope{UserID: msg.cfg.Subject.UserID, WorkspaceID: msg.cfg.Subject.WorkspaceID}
		cmds := []tea.Cmd{m.waitForConfig()}
		if scope != m.center.Scope() || !m.ready {
			m.ready = true
			cmds = append(cmds, m.switchScope(scope))
		}
		return m, tea.Batch(cmds...)

	case appsync.ToastMsg:
		m.log.Warnw("operation failed", "source", msg.Source, "error", msg.Err)
		m.toastSeq++
		m.toast = fmt.Sprintf("%s: %s", msg.Source, appsync.ErrorText(msg.Err))
		seq := m.toastSeq
		return m, tea.Tick(toastTTL, func(time.Time) tea.Msg { return toastExpiredMsg{seq: seq} })

	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = ""
		}
		return m, nil

	case feed.SearchMsg:
		m.feed = m.feed.SetSearch(msg.Term)
		return m, m.syncViews()

	case inbox.MarkReadMsg:
		var cmd tea.Cmd
		m.center, cmd = m.center.MarkOne(msg.ID)
		return m, cmd

	case inbox.MarkAllReadMsg:
		var cmd tea.Cmd
		m.center, cmd = m.center.MarkAll()
		return m, cmd

	case inbox.DeleteMsg:
		var cmd tea.Cmd
		m.center, cmd = m.center.Delete(msg.ID)
		return m, cmd

	case detail.BackMsg:
		m.currentView = ViewDashboard
		return m, nil

	case command.CommandMsg:
		m.currentView = ViewDashboard
		return m, m.executeCommand(command.Command(msg))

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.routeSync(msg)
}

// routeSync hands msg to every sync component and refreshes the panels.
func (m Model) routeSync(msg tea.Msg) (tea.Model, tea.Cmd) {
	var feedCmd, centerCmd, boardCmd tea.Cmd
	m.feed, feedCmd = m.feed.Update(msg)
	m.center, centerCmd = m.center.Update(msg)
	m.board, boardCmd = m.board.Update(msg)

	var viewCmd tea.Cmd
	if m.currentView == ViewCommand {
		m.commandView, viewCmd = m.commandView.Update(msg)
	}
	return m, tea.Batch(feedCmd, centerCmd, boardCmd, viewCmd, m.syncViews())
}

// syncViews copies component state into the panels.
func (m *Model) syncViews() tea.Cmd {
	feedCmd := m.feedView.SetActivities(m.feed.Items())
	m.feedView.SetStatus(status(m.feed.Loading(), m.feed.Err()))

	inboxCmd := m.inboxView.SetNotifications(m.center.Items(), m.center.Unread())
	m.inboxView.SetStatus(status(m.center.Loading(), m.center.Err()))

	m.teamView.SetData(m.board.Summaries(), m.board.Stats())
	m.teamView.SetStatus(status(m.board.Loading(), m.board.Err()))
	return tea.Batch(feedCmd, inboxCmd)
}

func status(loading bool, err error) string {
	switch {
	case err != nil:
		return "⚠ " + appsync.ErrorText(err)
	case loading:
		return "loading…"
	default:
		return ""
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, m.quit()
	}

	switch m.currentView {
	case ViewHelp:
		if key.Matches(msg, m.keys.Help) || key.Matches(msg, m.keys.Back) {
			m.currentView = ViewDashboard
		}
		return m, nil
	case ViewCommand:
		if key.Matches(msg, m.keys.Back) {
			m.currentView = ViewDashboard
			return m, nil
		}
		var cmd tea.Cmd
		m.commandView, cmd = m.commandView.Update(msg)
		return m, cmd
	case ViewDetail:
		if key.Matches(msg, m.keys.Quit) {
			return m, m.quit()
		}
		var cmd tea.Cmd
		m.detailView, cmd = m.detailView.Update(msg)
		return m, cmd
	}

	// The search input owns every key while it has focus.
	if m.focus == PanelFeed && m.feedView.Searching() {
		var cmd tea.Cmd
		m.feedView, cmd = m.feedView.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, m.quit()

	case key.Matches(msg, m.keys.Help):
		m.currentView = ViewHelp
		return m, nil

	case key.Matches(msg, m.keys.Command):
		m.currentView = ViewCommand
		cmd := m.commandView.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.NextPanel), key.Matches(msg, m.keys.PrevPanel):
		if m.focus == PanelFeed {
			m.focus = PanelInbox
		} else {
			m.focus = PanelFeed
		}
		return m, nil

	case key.Matches(msg, m.keys.Open):
		return m, m.openSelected()

	case key.Matches(msg, m.keys.Refresh):
		return m, m.refresh()

	case key.Matches(msg, m.keys.Reconnect):
		return m, m.reconnect()
	}

	var cmd tea.Cmd
	switch m.focus {
	case PanelFeed:
		m.feedView, cmd = m.feedView.Update(msg)
	case PanelInbox:
		m.inboxView, cmd = m.inboxView.Update(msg)
	}
	return m, cmd
}

// openSelected shows the focused panel's highlighted item in the detail
// view. Opening an unread notification also marks it read.
func (m *Model) openSelected() tea.Cmd {
	switch m.focus {
	case PanelFeed:
		a, ok := m.feedView.Selected()
		if !ok {
			return nil
		}
		m.detailView.ShowActivity(a)
		m.currentView = ViewDetail
	case PanelInbox:
		n, ok := m.inboxView.Selected()
		if !ok {
			return nil
		}
		m.detailView.ShowNotification(n)
		m.currentView = ViewDetail
		if !n.Read {
			var cmd tea.Cmd
			m.center, cmd = m.center.MarkOne(n.ID)
			return cmd
		}
	}
	return nil
}

// switchScope rebinds every component to scope. Each component closes its
// old channel before opening the new one.
func (m *Model) switchScope(scope appsync.Scope) tea.Cmd {
	m.log.Infow("switching scope", "user_id", scope.UserID, "workspace_id", scope.WorkspaceID)
	var feedCmd, centerCmd, boardCmd tea.Cmd
	m.feed, feedCmd = m.feed.Load(scope, m.filter)
	m.center, centerCmd = m.center.SetScope(scope)
	m.board, boardCmd = m.board.Load(scope.WorkspaceID)
	return tea.Batch(feedCmd, centerCmd, boardCmd, m.syncViews())
}

func (m *Model) refresh() tea.Cmd {
	var feedCmd, centerCmd, boardCmd tea.Cmd
	m.feed, feedCmd = m.feed.Retry()
	m.center, centerCmd = m.center.Refresh()
	m.board, boardCmd = m.board.Refresh()
	return tea.Batch(feedCmd, centerCmd, boardCmd, m.syncViews())
}

func (m *Model) reconnect() tea.Cmd {
	var feedCmd, centerCmd tea.Cmd
	m.feed, feedCmd = m.feed.Retry()
	m.center, centerCmd = m.center.Reconnect()
	return tea.Batch(feedCmd, centerCmd, m.syncViews())
}

// quit closes both live channels before exiting.
func (m *Model) quit() tea.Cmd {
	var feedCmd, centerCmd tea.Cmd
	m.feed, feedCmd = m.feed.Close()
	m.center, centerCmd = m.center.Close()
	return tea.Sequence(tea.Batch(feedCmd, centerCmd), tea.Quit)
}

// waitForConfig blocks for the next reloaded configuration.
func (m Model) waitForConfig() tea.Cmd {
	ch := m.configCh
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		cfg, ok := <-ch
		if !ok {
			return nil
		}
		return configChangedMsg{cfg: cfg}
	}
}

// executeCommand handles a command from the palette.
func (m *Model) executeCommand(c command.Command) tea.Cmd {
	switch c.Name {
	case "workspace", "ws":
		scope := m.center.Scope()
		scope.WorkspaceID = c.Arg
		return m.switchScope(scope)
	case "search":
		m.feed = m.feed.SetSearch(c.Arg)
		return m.syncViews()
	case "filter":
		m.filter.Actions = nil
		for _, a := range strings.Split(c.Arg, ",") {
			if a = strings.TrimSpace(a); a != "" {
				m.filter.Actions = append(m.filter.Actions, model.ActionKind(a))
			}
		}
		m.filter.Search = m.feed.Filter().Search
		var cmd tea.Cmd
		m.feed, cmd = m.feed.Load(m.feed.Scope(), m.filter)
		return tea.Batch(cmd, m.syncViews())
	case "refresh", "sync":
		return m.refresh()
	case "reconnect":
		return m.reconnect()
	case "read all":
		var cmd tea.Cmd
		m.center, cmd = m.center.MarkAll()
		return cmd
	case "quit", "q":
		return m.quit()
	default:
		return func() tea.Msg {
			return appsync.ToastMsg{Source: "command", Err: fmt.Errorf("unknown command %q", c.Name)}
		}
	}
}

func (m *Model) resize(width, height int) {
	m.layout = ui.NewLayout(width, height)
	left, right := m.layout.ColumnWidths()
	content := m.layout.ContentHeight()
	// Borders take two columns and two rows per panel.
	m.feedView.SetSize(left-4, content-2)
	m.inboxView.SetSize(right-4, content/2-2)
	m.teamView.SetSize(right-4, content-content/2-2)
	m.helpView.SetSize(width, content)
	m.commandView.SetSize(width, content)
	m.detailView.SetSize(width-6, content-4)
}

// View renders the dashboard or the active overlay.
func (m Model) View() string {
	if m.layout.Width == 0 {
		return "Loading..."
	}

	title := "Taskboard"
	if ws := m.center.Scope().WorkspaceID; ws != "" {
		title += " · " + ws
	}
	if n := m.center.Unread(); n > 0 {
		title = fmt.Sprintf("%s [%d unread]", title, n)
	}
	header := m.layout.RenderHeader(title, m.liveStatus())
	statusBar := m.layout.RenderStatusBar(m.keyHints(), m.toast)

	var content string
	switch m.currentView {
	case ViewHelp:
		content = m.helpView.View()
	case ViewCommand:
		content = m.commandView.View()
	case ViewDetail:
		content = theme.DetailPanelStyle.Width(m.layout.Width - 2).Render(m.detailView.View())
	default:
		content = m.renderDashboard()
	}
	return m.layout.RenderWithFrame(header, content, statusBar)
}

func (m Model) renderDashboard() string {
	left, right := m.layout.ColumnWidths()
	content := m.layout.ContentHeight()

	feedStyle, inboxStyle := panelStyles(m.focus)
	feedPanel := feedStyle.Width(left - 2).Height(content - 2).Render(m.feedView.View())
	inboxPanel := inboxStyle.Width(right - 2).Height(content/2 - 2).Render(m.inboxView.View())
	teamPanel := unfocused().Width(right - 2).Height(content - content/2 - 2).Render(m.teamView.View())

	return m.teamView.StatCards(m.layout.Width) + "\n" +
		m.layout.RenderColumns(feedPanel, inboxPanel, teamPanel)
}

// liveStatus summarizes both push channels for the header.
func (m Model) liveStatus() string {
	switch {
	case m.feed.Live() && m.center.Live():
		return "● live"
	case m.feed.Loading() || m.center.Loading():
		return "syncing"
	default:
		return "○ offline (R to reconnect)"
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | esc back"
	case ViewDetail:
		return "j/k scroll | esc back"
	}
	if m.focus == PanelInbox {
		return "enter read | o open | M read all | d delete | tab feed | ? help"
	}
	return "q quit | ? help | / search | o open | : command | tab inbox | r refresh"
}
