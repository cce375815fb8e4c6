package inbox

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/keys"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/theme"
	"github.com/nhle/taskboard/internal/ui"
)

// MarkReadMsg asks for one notification to be marked read.
type MarkReadMsg struct {
	ID string
}

// MarkAllReadMsg asks for every notification in scope to be marked read.
type MarkAllReadMsg struct{}

// DeleteMsg asks for one notification to be deleted.
type DeleteMsg struct {
	ID string
}

// NotificationItem wraps a model.Notification for a bubbles/list.
type NotificationItem struct {
	Notification model.Notification
}

// FilterValue returns the string used for list filtering.
func (i NotificationItem) FilterValue() string { return i.Notification.Title }

type itemDelegate struct {
	now func() time.Time
}

func (d itemDelegate) Height() int                             { return 1 }
func (d itemDelegate) Spacing() int                            { return 0 }
func (d itemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(NotificationItem)
	if !ok {
		return
	}
	n := it.Notification

	marker := "●"
	if n.Read {
		marker = " "
	}
	dot := theme.NotificationStyle(string(n.Type)).Render(marker)
	age := ui.RelativeTime(n.CreatedAt, d.now())

	room := m.Width() - lipgloss.Width(age) - 6
	line := fmt.Sprintf("%s %s  %s", dot, ui.Truncate(n.Title, room), theme.DimmedStyle.Render(age))
	if n.Read {
		line = theme.DimmedStyle.Render(line)
	}

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}
	fmt.Fprint(w, line)
}

// Model is the notification panel.
type Model struct {
	list   list.Model
	keys   *keys.KeyMap
	unread int
	status string
	width  int
	height int
}

// New creates a new notification panel.
func New(k *keys.KeyMap, now func() time.Time, width, height int) Model {
	if now == nil {
		now = time.Now
	}
	l := list.New([]list.Item{}, itemDelegate{now: now}, width, height-1)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)

	return Model{list: l, keys: k, width: width, height: height}
}

// SetNotifications replaces the rendered notifications and unread count.
func (m *Model) SetNotifications(notifications []model.Notification, unread int) tea.Cmd {
	m.unread = unread
	items := make([]list.Item, len(notifications))
	for i, n := range notifications {
		items[i] = NotificationItem{Notification: n}
	}
	return m.list.SetItems(items)
}

// SetStatus sets the loading or error line.
func (m *Model) SetStatus(status string) {
	m.status = status
}

// Selected returns the notification under the cursor.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(NotificationItem)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// Update handles keys for the notification panel.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.MarkRead):
			n, ok := m.Selected()
			if !ok || n.Read {
				return m, nil
			}
			return m, func() tea.Msg { return MarkReadMsg{ID: n.ID} }

		case key.Matches(msg, m.keys.MarkAllRead):
			return m, func() tea.Msg { return MarkAllReadMsg{} }

		case key.Matches(msg, m.keys.Delete):
			n, ok := m.Selected()
			if !ok {
				return m, nil
			}
			return m, func() tea.Msg { return DeleteMsg{ID: n.ID} }
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the notification panel.
func (m Model) View() string {
	title := theme.PanelTitleStyle.Render("Notifications")
	if m.unread > 0 {
		title = lipgloss.JoinHorizontal(lipgloss.Top, title, " ",
			theme.UnreadBadgeStyle.Render(fmt.Sprintf("%d", m.unread)))
	}

	parts := []string{title}
	if m.status != "" {
		parts = append(parts, theme.HelpStyle.Render(m.status))
	}
	if len(m.list.Items()) == 0 {
		parts = append(parts, theme.DimmedStyle.Render("You're all caught up."))
	} else {
		parts = append(parts, m.list.View())
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// SetSize updates the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, max(height-1, 1))
}
