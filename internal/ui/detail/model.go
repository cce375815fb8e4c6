package detail

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/keys"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/theme"
)

// BackMsg signals the parent to navigate back to the dashboard.
type BackMsg struct{}

type field struct {
	label string
	value string
}

// Model is the scrollable detail view for one activity or notification.
type Model struct {
	title    string
	badge    string
	fields   []field
	body     string
	details  []field
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a new detail view model.
func New(k *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, max(height-2, 1))
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     k,
		width:    width,
		height:   height,
	}
}

// ShowActivity displays a.
func (m *Model) ShowActivity(a model.Activity) {
	m.title = a.EntityName
	if m.title == "" {
		m.title = a.EntityType + " " + a.EntityID
	}
	m.badge = theme.ActionStyle(string(a.Action)).Render(strings.ToUpper(string(a.Action)))
	m.fields = []field{
		{"Actor", a.ActorName},
		{"Entity", a.EntityType + " " + a.EntityID},
		{"Workspace", a.WorkspaceID},
		{"When", formatTime(&a.CreatedAt)},
	}
	m.body = a.Description
	m.details = detailFields(a.Details)
	m.render()
}

// ShowNotification displays n.
func (m *Model) ShowNotification(n model.Notification) {
	m.title = n.Title
	m.badge = theme.NotificationStyle(string(n.Type)).Render(strings.ToUpper(string(n.Type)))
	read := "unread"
	if n.Read {
		read = "read " + formatTime(n.ReadAt)
	}
	m.fields = []field{
		{"Workspace", n.WorkspaceID},
		{"Related", strings.TrimSpace(n.RelatedType + " " + n.RelatedID)},
		{"Received", formatTime(&n.CreatedAt)},
		{"Status", read},
	}
	m.body = n.Message
	m.details = detailFields(n.Details)
	m.render()
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Back) {
		return m, func() tea.Msg { return BackMsg{} }
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.title == "" && len(m.fields) == 0 {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("Nothing selected")
	}
	return m.viewport.View()
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = max(height-2, 1)
	m.render()
}

func (m *Model) render() {
	m.viewport.SetContent(m.content())
	m.viewport.GotoTop()
}

// content builds the full detail string for the viewport.
func (m Model) content() string {
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(m.title), m.badge, "")

	sections = append(sections, renderFields(m.fields)...)

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 1)))
	sections = append(sections, "", separator, "")

	body := m.body
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No description")
	}
	sections = append(sections, body)

	if len(m.details) > 0 {
		headerStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
		sections = append(sections, "", separator, "", headerStyle.Render("Details"), "")
		sections = append(sections, renderFields(m.details)...)
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func renderFields(fields []field) []string {
	labelStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valueStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	width := 0
	for _, f := range fields {
		width = max(width, len(f.label)+1)
	}
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		label := fmt.Sprintf("%-*s", width, f.label+":")
		lines = append(lines, labelStyle.Render(label)+"  "+valueStyle.Render(f.value))
	}
	return lines
}

// detailFields flattens a details payload into labelled lines.
func detailFields(d model.Details) []field {
	switch d := d.(type) {
	case *model.FieldChange:
		return []field{{"Fields", strings.Join(d.Fields, ", ")}}
	case *model.Assignment:
		name := d.AssigneeName
		if name == "" {
			name = d.AssigneeID
		}
		return []field{{"Assignee", name}}
	case *model.CommentRef:
		return []field{{"Comment", d.CommentID}, {"Excerpt", d.Excerpt}}
	case *model.StatusChange:
		from := d.From
		if from == "" {
			from = "none"
		}
		return []field{{"Status", from + " → " + d.To}}
	case *model.TagChange:
		return []field{{"Tag", d.Tag}}
	case *model.MemberChange:
		return []field{{"Member", d.MemberID}, {"Role", d.Role}}
	case *model.TaskRef:
		return []field{{"Task", d.TaskID}, {"Project", d.ProjectID}, {"Due", formatTime(d.DueAt)}}
	case *model.ProjectRef:
		return []field{{"Project", d.ProjectID}, {"Milestone", d.Milestone}}
	case *model.FileRef:
		return []field{{"File", d.FileName}, {"File ID", d.FileID}}
	case *model.Announcement:
		return []field{{"Severity", d.Severity}}
	default:
		return nil
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}
