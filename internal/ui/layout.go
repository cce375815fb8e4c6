package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/theme"
)

// Layout manages the dashboard panel dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
	StatsHeight     int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1; the stat cards take 3.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
		StatsHeight:     3,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the panels, accounting
// for the header, stat cards and status bar.
func (l Layout) ContentHeight() int {
	return max(l.Height-l.HeaderHeight-l.StatusBarHeight-l.StatsHeight, 0)
}

// ColumnWidths splits the content width between the activity feed on the
// left and the notification and team panels on the right.
func (l Layout) ColumnWidths() (left, right int) {
	left = l.Width * 3 / 5
	return left, l.Width - left
}

// RenderHeader renders the top header bar with a title and live status.
func (l Layout) RenderHeader(title string, liveStatus string) string {
	titleRendered := theme.HeaderStyle.Render(title)

	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(liveStatus)

	gap := max(l.Width-lipgloss.Width(titleRendered)-lipgloss.Width(statusRendered), 0)

	filler := theme.HeaderStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.HeaderStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		filler,
		statusRendered,
	)
}

// RenderStatusBar renders the bottom status bar with keyboard hints, or
// with a toast when one is showing.
func (l Layout) RenderStatusBar(hints string, toast string) string {
	style := theme.StatusBarStyle
	text := hints
	if toast != "" {
		style = theme.ToastStyle
		text = toast
	}
	rendered := style.Render(text)

	gap := max(l.Width-lipgloss.Width(rendered), 0)

	filler := style.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(style.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderColumns places the left panel beside the vertically stacked right
// panels.
func (l Layout) RenderColumns(left string, right ...string) string {
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		left,
		lipgloss.JoinVertical(lipgloss.Left, right...),
	)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, content area, and status bar.
func (l Layout) RenderWithFrame(
	header string,
	content string,
	statusBar string,
) string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		content,
		statusBar,
	)
}
