package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/theme"
)

// Command is a parsed palette entry: a verb and its optional argument.
type Command struct {
	Name string
	Arg  string
}

// CommandMsg is emitted when the user executes a command.
type CommandMsg Command

// Known lists the palette verbs with a short description each.
var Known = [][2]string{
	{"workspace <id>", "switch workspace (empty for all)"},
	{"search <term>", "filter the activity feed"},
	{"filter <action,...>", "limit the feed to action kinds"},
	{"refresh", "refetch every panel"},
	{"reconnect", "reopen live updates"},
	{"read all", "mark every notification read"},
	{"quit", "exit"},
}

// Parse splits a palette line into a command name and argument. Multi-word
// verbs such as "read all" are matched before single-word ones.
func Parse(line string) Command {
	line = strings.TrimSpace(line)
	if strings.EqualFold(line, "read all") || strings.EqualFold(line, "mark all") {
		return Command{Name: "read all"}
	}
	name, arg, _ := strings.Cut(line, " ")
	return Command{Name: strings.ToLower(name), Arg: strings.TrimSpace(arg)}
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command..."
	ti.Prompt = ": "
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if line != "" {
				return m, func() tea.Msg {
					return CommandMsg(Parse(line))
				}
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Command Palette")
	input := m.input.View()

	var hints []string
	for _, k := range Known {
		hints = append(hints, theme.HelpStyle.Render(k[0]+"  "+k[1]))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, title, input, "", strings.Join(hints, "\n"))

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
