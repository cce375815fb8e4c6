package feed

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/keys"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/theme"
)

// SearchMsg is emitted when the user submits or clears a feed search.
type SearchMsg struct {
	Term string
}

// Model is the activity feed panel.
type Model struct {
	list        list.Model
	keys        *keys.KeyMap
	searchMode  bool
	searchInput textinput.Model
	search      string
	status      string
	width       int
	height      int
}

// New creates a new activity feed panel. now is the clock used for
// relative timestamps.
func New(k *keys.KeyMap, now func() time.Time, width, height int) Model {
	if now == nil {
		now = time.Now
	}
	l := list.New([]list.Item{}, ItemDelegate{now: now}, width, height-2)
	l.Title = "Activity"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.PanelTitleStyle

	si := textinput.New()
	si.Placeholder = "search activity..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		list:        l,
		keys:        k,
		searchInput: si,
		width:       width,
		height:      height,
	}
}

// SetActivities replaces the rendered activities, keeping the cursor.
func (m *Model) SetActivities(activities []model.Activity) tea.Cmd {
	items := make([]list.Item, len(activities))
	for i, a := range activities {
		items[i] = ActivityItem{Activity: a}
	}
	return m.list.SetItems(items)
}

// SetStatus sets the loading or error line shown under the title.
func (m *Model) SetStatus(status string) {
	m.status = status
}

// Selected returns the highlighted activity, if any.
func (m Model) Selected() (model.Activity, bool) {
	item, ok := m.list.SelectedItem().(ActivityItem)
	if !ok {
		return model.Activity{}, false
	}
	return item.Activity, true
}

// Searching reports whether the search input has focus.
func (m Model) Searching() bool { return m.searchMode }

// Update handles messages for the feed panel.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		if key.Matches(msg, m.keys.Search) {
			m.searchMode = true
			m.searchInput.SetValue(m.search)
			cmd := m.searchInput.Focus()
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleSearchKeys processes key input while in search mode.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		m.searchInput.Blur()
		m.search = m.searchInput.Value()
		return m, searchCmd(m.search)

	case "esc":
		m.searchMode = false
		m.searchInput.Blur()
		m.searchInput.Reset()
		m.search = ""
		return m, searchCmd("")
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func searchCmd(term string) tea.Cmd {
	return func() tea.Msg { return SearchMsg{Term: term} }
}

// View renders the feed panel.
func (m Model) View() string {
	var parts []string
	if m.searchMode {
		parts = append(parts, lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Render(m.searchInput.View()))
	} else if m.search != "" {
		parts = append(parts, theme.HelpStyle.Render("search: "+m.search))
	}
	if m.status != "" {
		parts = append(parts, theme.HelpStyle.Render(m.status))
	}

	if len(m.list.Items()) == 0 {
		parts = append(parts, m.renderEmptyState())
	} else {
		parts = append(parts, m.list.View())
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderEmptyState shows guidance text when no activity is available.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height-2).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.search != "" {
		return style.Render("No matching activity.\nPress / then esc to clear the search.")
	}
	return style.Render("No activity yet.")
}

// SetSize updates the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, max(height-2, 1))
	m.searchInput.Width = width - 4
}
