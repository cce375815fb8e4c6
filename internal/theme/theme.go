package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// ToastStyle renders transient error reports in the status bar.
var ToastStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorRed).
	Padding(0, 1)

// PanelStyle wraps an unfocused dashboard panel.
var PanelStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// FocusedPanelStyle wraps the panel that receives keys.
var FocusedPanelStyle = PanelStyle.
	BorderForeground(ColorBlue)

// DetailPanelStyle wraps overlay content such as help and the command
// palette.
var DetailPanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// PanelTitleStyle renders a panel heading.
var PanelTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorBlue)

// ListItemStyle is the base style for items in a list.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights the currently focused list item.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// DimmedStyle renders read notifications and secondary text.
var DimmedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// UnreadBadgeStyle renders the unread counter.
var UnreadBadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorRed).
	Padding(0, 1)

// ActionStyle returns a color-coded style for an activity action kind.
func ActionStyle(action string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch action {
	case "create", "member_add", "tag_add":
		return base.Foreground(ColorGreen)
	case "delete", "member_remove", "tag_remove", "unassign":
		return base.Foreground(ColorRed)
	case "assign":
		return base.Foreground(ColorMagenta)
	case "status_change":
		return base.Foreground(ColorYellow)
	case "comment":
		return base.Foreground(ColorBlue)
	default:
		return base.Foreground(ColorGray)
	}
}

// NotificationStyle returns a color-coded style for a notification type.
func NotificationStyle(typ string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch typ {
	case "task_due":
		return base.Foreground(ColorOrange)
	case "task_assigned", "task_completed":
		return base.Foreground(ColorGreen)
	case "comment_mention", "new_comment":
		return base.Foreground(ColorBlue)
	case "system_announcement":
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorMagenta)
	}
}

// TierStyle returns a color-coded style for a performance tier.
func TierStyle(tier string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch tier {
	case "excellent":
		return base.Foreground(ColorGreen)
	case "good":
		return base.Foreground(ColorBlue)
	case "average":
		return base.Foreground(ColorYellow)
	default:
		return base.Foreground(ColorRed)
	}
}
