package feed

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/theme"
	"github.com/nhle/taskboard/internal/ui"
)

// ActivityItem wraps a model.Activity so it can be used in a bubbles/list.
type ActivityItem struct {
	Activity model.Activity
}

// FilterValue returns the string used for list filtering.
func (i ActivityItem) FilterValue() string { return i.Activity.EntityName }

// Summary describes what an activity did in one line, using its details.
func Summary(a model.Activity) string {
	actor := a.ActorName
	if actor == "" {
		actor = a.ActorID
	}
	target := a.EntityName
	if target == "" {
		target = a.EntityType + " " + a.EntityID
	}

	switch d := a.Details.(type) {
	case *model.Assignment:
		who := d.AssigneeName
		if who == "" {
			who = d.AssigneeID
		}
		if a.Action == model.ActionUnassign {
			return fmt.Sprintf("%s unassigned %s from %s", actor, who, target)
		}
		return fmt.Sprintf("%s assigned %s to %s", actor, target, who)
	case *model.StatusChange:
		return fmt.Sprintf("%s moved %s from %s to %s", actor, target, orNone(d.From), d.To)
	case *model.TagChange:
		verb := "tagged"
		if a.Action == model.ActionTagRemove {
			verb = "untagged"
		}
		return fmt.Sprintf("%s %s %s #%s", actor, verb, target, d.Tag)
	case *model.CommentRef:
		if d.Excerpt != "" {
			return fmt.Sprintf("%s commented on %s: %q", actor, target, d.Excerpt)
		}
		return fmt.Sprintf("%s commented on %s", actor, target)
	case *model.MemberChange:
		verb := "added"
		if a.Action == model.ActionMemberRemove {
			verb = "removed"
		}
		return fmt.Sprintf("%s %s %s on %s", actor, verb, d.MemberID, target)
	case *model.FieldChange:
		if a.Action == model.ActionUpdate && len(d.Fields) > 0 {
			return fmt.Sprintf("%s updated %s (%s)", actor, target, strings.Join(d.Fields, ", "))
		}
	}
	verb, ok := pastTense[a.Action]
	if !ok {
		verb = string(a.Action)
	}
	return fmt.Sprintf("%s %s %s", actor, verb, target)
}

var pastTense = map[model.ActionKind]string{
	model.ActionCreate: "created",
	model.ActionUpdate: "updated",
	model.ActionDelete: "deleted",
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// ItemDelegate implements list.ItemDelegate for rendering activity lines.
type ItemDelegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single activity line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(ActivityItem)
	if !ok {
		return
	}
	a := it.Activity

	badge := theme.ActionStyle(string(a.Action)).Render(strings.ToUpper(string(a.Action)))
	age := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(ui.RelativeTime(a.CreatedAt, d.now()))

	room := m.Width() - lipgloss.Width(badge) - lipgloss.Width(age) - 5
	line := fmt.Sprintf("%s %s  %s", badge, ui.Truncate(Summary(a), room), age)

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}
