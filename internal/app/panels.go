package app

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/theme"
)

func panelStyles(focus Panel) (feedStyle, inboxStyle lipgloss.Style) {
	if focus == PanelFeed {
		return theme.FocusedPanelStyle, theme.PanelStyle
	}
	return theme.PanelStyle, theme.FocusedPanelStyle
}

func unfocused() lipgloss.Style { return theme.PanelStyle }
