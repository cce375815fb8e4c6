// Package team renders the dashboard stat cards and the team performance
// table.
package team

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/stats"
	"github.com/nhle/taskboard/internal/theme"
	"github.com/nhle/taskboard/internal/ui"
)

// Model is the team panel. It holds no behaviour beyond rendering; the
// sync.TeamBoard owns the data.
type Model struct {
	summaries []model.TeamMemberSummary
	stats     model.DashboardStats
	status    string
	width     int
	height    int
}

// New creates an empty team panel.
func New(width, height int) Model {
	return Model{width: width, height: height}
}

// SetData replaces the rendered summaries and dashboard stats.
func (m *Model) SetData(summaries []model.TeamMemberSummary, s model.DashboardStats) {
	m.summaries = summaries
	m.stats = s
}

// SetStatus sets the loading or error line.
func (m *Model) SetStatus(status string) {
	m.status = status
}

// SetSize updates the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// StatCards renders the row of dashboard counters.
func (m Model) StatCards(width int) string {
	cards := []struct {
		label string
		value string
	}{
		{"Tasks", fmt.Sprintf("%d", m.stats.TotalTasks)},
		{"Done", fmt.Sprintf("%.1f%%", stats.Round1(m.stats.CompletionRate()))},
		{"In progress", fmt.Sprintf("%d", m.stats.InProgressTasks)},
		{"Overdue", fmt.Sprintf("%d", m.stats.OverdueTasks)},
		{"Projects", fmt.Sprintf("%d", m.stats.ActiveProjects)},
	}

	cardWidth := max(width/len(cards)-2, 8)
	rendered := make([]string, len(cards))
	for i, c := range cards {
		value := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render(c.value)
		label := theme.DimmedStyle.Render(c.label)
		if c.label == "Overdue" && m.stats.OverdueTasks > 0 {
			value = lipgloss.NewStyle().Bold(true).Foreground(theme.ColorRed).Render(c.value)
		}
		rendered[i] = lipgloss.NewStyle().
			Width(cardWidth).
			Padding(0, 1).
			Render(value + " " + label)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

// View renders the team performance table.
func (m Model) View() string {
	lines := []string{theme.PanelTitleStyle.Render("Team performance")}
	if m.status != "" {
		lines = append(lines, theme.HelpStyle.Render(m.status))
	}
	if len(m.summaries) == 0 {
		lines = append(lines, theme.DimmedStyle.Render("No members in this workspace."))
		return strings.Join(lines, "\n")
	}

	nameWidth := max(m.width-28, 8)
	header := fmt.Sprintf("%-*s %5s %6s %4s", nameWidth, "Member", "Done", "Rate", "Proj")
	lines = append(lines, theme.DimmedStyle.Render(header))

	rows := len(m.summaries)
	if limit := m.height - len(lines) - 1; limit > 0 && rows > limit {
		rows = limit
	}
	for _, s := range m.summaries[:rows] {
		rate := fmt.Sprintf("%5.1f%%", stats.Round1(s.CompletionRate()))
		line := fmt.Sprintf("%-*s %2d/%-2d %s %4d",
			nameWidth, ui.Truncate(s.DisplayName, nameWidth),
			s.Completed, s.Assigned,
			theme.TierStyle(string(s.Tier())).Render(rate),
			s.ActiveProjects,
		)
		lines = append(lines, line)
	}
	if rows < len(m.summaries) {
		lines = append(lines, theme.DimmedStyle.Render(fmt.Sprintf("+%d more", len(m.summaries)-rows)))
	}
	return strings.Join(lines, "\n")
}
