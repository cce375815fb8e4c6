package inbox

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskboard/internal/keys"
	"github.com/nhle/taskboard/internal/model"
)

func newInbox(t *testing.T) Model {
	t.Helper()
	m := New(keys.DefaultKeyMap(), time.Now, 60, 10)
	m.SetNotifications([]model.Notification{
		{ID: "n1", Title: "Assigned", Type: model.NotificationTaskAssigned},
		{ID: "n2", Title: "Old news", Type: model.NotificationNewComment, Read: true},
	}, 1)
	return m
}

func press(m Model, k string) (Model, tea.Msg) {
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
	if cmd == nil {
		return m, nil
	}
	return m, cmd()
}

func TestMarkReadEmitsSelected(t *testing.T) {
	m := newInbox(t)

	_, msg := press(m, "m")
	assert.Equal(t, MarkReadMsg{ID: "n1"}, msg)
}

func TestMarkReadSkipsReadNotification(t *testing.T) {
	m := newInbox(t)
	m, _ = press(m, "j")

	n, ok := m.Selected()
	require.True(t, ok)
	require.Equal(t, "n2", n.ID)

	_, msg := press(m, "m")
	assert.Nil(t, msg)
}

func TestMarkAllAndDelete(t *testing.T) {
	m := newInbox(t)

	_, msg := press(m, "M")
	assert.Equal(t, MarkAllReadMsg{}, msg)

	_, msg = press(m, "d")
	assert.Equal(t, DeleteMsg{ID: "n1"}, msg)
}

func TestViewShowsUnreadBadge(t *testing.T) {
	m := newInbox(t)
	assert.Contains(t, m.View(), "Assigned")

	m.SetNotifications(nil, 0)
	assert.Contains(t, m.View(), "caught up")
}
