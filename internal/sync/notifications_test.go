package sync

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/realtime"
	"github.com/nhle/taskboard/internal/store"
	"github.com/nhle/taskboard/tests/testutil"
)

var testNow = time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC)

func seedNotification(t *testing.T, s *store.SQLStore, userID, title string, at time.Time) model.Notification {
	t.Helper()
	n, err := s.CreateNotification(context.Background(), model.Notification{
		UserID:      userID,
		WorkspaceID: "w1",
		Type:        model.NotificationTaskAssigned,
		Title:       title,
		RelatedType: model.EntityTask,
		RelatedID:   "t-" + title,
		Details:     &model.TaskRef{TaskID: "t-" + title},
		CreatedAt:   at,
	})
	require.NoError(t, err)
	return n
}

func loadCenter(t *testing.T, l *loop, s NotificationStore, ch realtime.Channel, scope Scope) NotificationCenter {
	t.Helper()
	n, cmd := NewNotificationCenter(s, ch, Options{Now: func() time.Time { return testNow }}).SetScope(scope)
	l.exec(cmd)
	return drive(l, n, updateCenter, func(n NotificationCenter) bool {
		return !n.Loading() && (ch == nil || n.Live())
	})
}

// apply runs cmd synchronously and feeds its messages back into n.
func apply(n NotificationCenter, cmd tea.Cmd) (NotificationCenter, []tea.Msg) {
	var out []tea.Msg
	for _, msg := range runSync(cmd) {
		out = append(out, msg)
		var next tea.Cmd
		n, next = n.Update(msg)
		out = append(out, runSync(next)...)
	}
	return n, out
}

func TestNotificationCenterLoadsUnreadCount(t *testing.T) {
	s := testutil.NewTestStore(t)
	a := seedNotification(t, s, "u1", "a", testNow.Add(-3*time.Hour))
	seedNotification(t, s, "u1", "b", testNow.Add(-2*time.Hour))
	seedNotification(t, s, "u1", "c", testNow.Add(-time.Hour))
	seedNotification(t, s, "u2", "other", testNow)
	_, err := s.MarkNotificationsRead(context.Background(), "u1", []string{a.ID}, testNow)
	require.NoError(t, err)

	n := loadCenter(t, newLoop(t), s, nil, Scope{UserID: "u1"})

	require.NoError(t, n.Err())
	require.Len(t, n.Items(), 3)
	assert.Equal(t, "c", n.Items()[0].Title)
	assert.Equal(t, 2, n.Unread())
}

func TestNotificationCenterMarkOne(t *testing.T) {
	s := testutil.NewTestStore(t)
	target := seedNotification(t, s, "u1", "a", testNow.Add(-time.Hour))
	seedNotification(t, s, "u1", "b", testNow)
	n := loadCenter(t, newLoop(t), s, nil, Scope{UserID: "u1"})
	require.Equal(t, 2, n.Unread())

	n, cmd := n.MarkOne(target.ID)
	require.NotNil(t, cmd)
	n, _ = apply(n, cmd)

	assert.Equal(t, 1, n.Unread())
	got, ok := n.items.Get(target.ID)
	require.True(t, ok)
	assert.True(t, got.Read)
	require.NotNil(t, got.ReadAt)
	assert.True(t, got.ReadAt.Equal(testNow))

	// Already read and unknown ids issue no mutation.
	_, cmd = n.MarkOne(target.ID)
	assert.Nil(t, cmd)
	_, cmd = n.MarkOne("missing")
	assert.Nil(t, cmd)
}

type rejectingStore struct {
	NotificationStore
}

func (rejectingStore) MarkNotificationsRead(context.Context, string, []string, time.Time) (int, error) {
	return 0, &store.MutationError{Op: "marking notifications read", Err: errors.New("permission denied")}
}

func TestNotificationCenterMarkOneFailureLeavesState(t *testing.T) {
	s := testutil.NewTestStore(t)
	target := seedNotification(t, s, "u1", "a", testNow)
	n := loadCenter(t, newLoop(t), rejectingStore{s}, nil, Scope{UserID: "u1"})
	before := n.Items()

	n, cmd := n.MarkOne(target.ID)
	require.NotNil(t, cmd)
	n, msgs := apply(n, cmd)

	assert.True(t, hasToast(msgs))
	assert.Equal(t, 1, n.Unread())
	assert.Equal(t, before, n.Items())
	assert.False(t, n.Items()[0].Read)
	assert.NoError(t, n.Err())
}

func TestNotificationCenterMarkAllIsIdempotent(t *testing.T) {
	s := testutil.NewTestStore(t)
	seedNotification(t, s, "u1", "a", testNow.Add(-time.Hour))
	seedNotification(t, s, "u1", "b", testNow)
	n := loadCenter(t, newLoop(t), s, nil, Scope{UserID: "u1"})

	n, cmd := n.MarkAll()
	require.NotNil(t, cmd)
	n, _ = apply(n, cmd)
	assert.Equal(t, 0, n.Unread())
	for _, record := range n.Items() {
		assert.True(t, record.Read)
	}

	n, cmd = n.MarkAll()
	assert.Nil(t, cmd)
	assert.Equal(t, 0, n.Unread())

	count, err := s.CountUnreadNotifications(context.Background(), model.NotificationFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestNotificationCenterMarkOneRevertRefetch(t *testing.T) {
	s := testutil.NewTestStore(t)
	target := seedNotification(t, s, "u1", "a", testNow.Add(-time.Hour))
	seedNotification(t, s, "u1", "b", testNow)
	n := loadCenter(t, newLoop(t), s, nil, Scope{UserID: "u1"})
	original := n.Unread()

	n, cmd := n.MarkOne(target.ID)
	n, _ = apply(n, cmd)
	require.Equal(t, original-1, n.Unread())

	_, err := s.DB().Exec(s.DB().Rebind("UPDATE notifications SET read = 0, read_at = NULL WHERE id = ?"), target.ID)
	require.NoError(t, err)

	n, cmd = n.Refresh()
	n, _ = apply(n, cmd)
	assert.Equal(t, original, n.Unread())
}

func TestNotificationCenterDelete(t *testing.T) {
	s := testutil.NewTestStore(t)
	target := seedNotification(t, s, "u1", "a", testNow)
	n := loadCenter(t, newLoop(t), s, nil, Scope{UserID: "u1"})

	n, cmd := n.Delete(target.ID)
	require.NotNil(t, cmd)
	n, _ = apply(n, cmd)

	assert.Empty(t, n.Items())
	assert.Equal(t, 0, n.Unread())

	_, cmd = n.Delete(target.ID)
	assert.Nil(t, cmd)
}

func TestNotificationCenterLiveInsertsAreDeduplicated(t *testing.T) {
	s, hub := testutil.NewLiveTestStore(t)
	l := newLoop(t)
	n := loadCenter(t, l, s, hub, Scope{UserID: "u1"})
	require.Equal(t, 0, n.Unread())

	first := seedNotification(t, s, "u1", "first", testNow)
	payload, err := json.Marshal(first)
	require.NoError(t, err)
	dup := realtime.Change{Table: realtime.TableNotifications, Event: realtime.EventInsert, Record: payload}
	hub.Publish(dup)
	hub.Publish(dup)
	seedNotification(t, s, "u2", "not mine", testNow)
	last := seedNotification(t, s, "u1", "last", testNow.Add(time.Second))

	n = drive(l, n, updateCenter, func(n NotificationCenter) bool {
		return len(n.Items()) > 0 && n.Items()[0].ID == last.ID
	})

	require.Len(t, n.Items(), 2)
	assert.Equal(t, first.ID, n.Items()[1].ID)
	assert.Equal(t, 2, n.Unread())
}

func TestNotificationCenterScopeChangeClosesOldChannel(t *testing.T) {
	s, hub := testutil.NewLiveTestStore(t)
	l := newLoop(t)
	n := loadCenter(t, l, s, hub, Scope{UserID: "u1"})
	old := n.sub
	require.NotNil(t, old)

	n, cmd := n.SetScope(Scope{UserID: "u2"})
	assert.False(t, n.Live())
	l.exec(cmd)
	n = drive(l, n, updateCenter, func(n NotificationCenter) bool { return !n.Loading() && n.Live() })

	_, open := <-old.Changes()
	assert.False(t, open)
	assert.Equal(t, 1, hub.Len())

	// Events for the previous subject never reach the mirror.
	seedNotification(t, s, "u1", "old subject", testNow)
	last := seedNotification(t, s, "u2", "new subject", testNow)
	n = drive(l, n, updateCenter, func(n NotificationCenter) bool { return len(n.Items()) > 0 })
	assert.Equal(t, []string{last.ID}, []string{n.Items()[0].ID})
	assert.Equal(t, 1, n.Unread())
}

func TestNotificationCenterDiscardsStaleResults(t *testing.T) {
	s := testutil.NewTestStore(t)
	n := NewNotificationCenter(s, nil, Options{})

	n, _ = n.SetScope(Scope{UserID: "u1"})
	staleFetch, staleScope := n.fetchGen, n.scopeGen
	n, _ = n.SetScope(Scope{UserID: "u2"})

	n, _ = n.Update(notificationsLoadedMsg{
		gen:           staleFetch,
		notifications: []model.Notification{{ID: "n1", UserID: "u1"}},
		unread:        1,
	})
	assert.Empty(t, n.Items())
	assert.Equal(t, 0, n.Unread())

	n, _ = n.Update(markedReadMsg{scopeGen: staleScope, all: true, at: testNow})
	n, _ = n.Update(changeMsg{owner: ownerNotifications, gen: 0})
	assert.Equal(t, 0, n.Unread())
}

func TestNotificationCenterReconnectAfterFailure(t *testing.T) {
	s, hub := testutil.NewLiveTestStore(t)
	l := newLoop(t)
	n := loadCenter(t, l, s, hub, Scope{UserID: "u1"})

	hub.FailAll(realtime.ErrConnectionLost)
	n = drive(l, n, updateCenter, func(n NotificationCenter) bool { return !n.Live() })
	require.True(t, realtime.IsChannelError(n.Err()))
	assert.ErrorIs(t, n.Err(), realtime.ErrConnectionLost)

	// Inserted while disconnected; Reconnect's refetch picks it up.
	missed := seedNotification(t, s, "u1", "missed", testNow)

	n, cmd := n.Reconnect()
	l.exec(cmd)
	n = drive(l, n, updateCenter, func(n NotificationCenter) bool { return !n.Loading() && n.Live() })

	assert.NoError(t, n.Err())
	require.Len(t, n.Items(), 1)
	assert.Equal(t, missed.ID, n.Items()[0].ID)
	assert.Equal(t, 1, n.Unread())
}

// gatedNotifications holds every fetch until release is closed, then
// answers with a fixed snapshot and unread count.
type gatedNotifications struct {
	NotificationStore
	release  chan struct{}
	snapshot []model.Notification
	unread   int
}

func (g gatedNotifications) ListNotifications(ctx context.Context, _ model.NotificationFilter) ([]model.Notification, error) {
	select {
	case <-g.release:
		return g.snapshot, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g gatedNotifications) CountUnreadNotifications(context.Context, model.NotificationFilter) (int, error) {
	return g.unread, nil
}

func liveNotification(t *testing.T, id string, at time.Time) (model.Notification, realtime.Change) {
	t.Helper()
	record := model.Notification{
		ID: id, UserID: "u1", WorkspaceID: "w1", Type: model.NotificationTaskAssigned,
		Title: "Assigned " + id, Details: &model.TaskRef{TaskID: "t-" + id}, CreatedAt: at,
	}
	payload, err := json.Marshal(record)
	require.NoError(t, err)
	return record, realtime.Change{Table: realtime.TableNotifications, Event: realtime.EventInsert, Record: payload}
}

func TestNotificationCenterKeepsLiveInsertsWhenFetchLandsLate(t *testing.T) {
	tests := []struct {
		name       string
		inSnapshot bool
		wantUnread int
	}{
		{name: "snapshot predates insert", inSnapshot: false, wantUnread: 2},
		{name: "snapshot already has insert", inSnapshot: true, wantUnread: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := realtime.NewHub(nil)
			t.Cleanup(func() { hub.Close() })

			older, _ := liveNotification(t, "n-old", testNow.Add(-time.Hour))
			fresh, change := liveNotification(t, "n-live", testNow)
			st := gatedNotifications{release: make(chan struct{}), snapshot: []model.Notification{older}, unread: 1}
			if tt.inSnapshot {
				st.snapshot = []model.Notification{fresh, older}
				st.unread = 2
			}

			l := newLoop(t)
			n, cmd := NewNotificationCenter(st, hub, Options{}).SetScope(Scope{UserID: "u1"})
			l.exec(cmd)
			n = drive(l, n, updateCenter, func(n NotificationCenter) bool { return n.Live() })
			require.True(t, n.Loading())

			hub.Publish(change)
			n = drive(l, n, updateCenter, func(n NotificationCenter) bool { return len(n.Items()) == 1 })
			require.Equal(t, 1, n.Unread())

			close(st.release)
			n = drive(l, n, updateCenter, func(n NotificationCenter) bool { return !n.Loading() })

			require.NoError(t, n.Err())
			require.Len(t, n.Items(), 2)
			assert.Equal(t, "n-live", n.Items()[0].ID)
			assert.Equal(t, "n-old", n.Items()[1].ID)
			assert.Equal(t, tt.wantUnread, n.Unread())
		})
	}
}

func TestNotificationCenterIgnoresRedeliveryOfTrimmedRecord(t *testing.T) {
	hub := realtime.NewHub(nil)
	t.Cleanup(func() { hub.Close() })

	oldest, redelivery := liveNotification(t, "n-1", testNow.Add(-2*time.Hour))
	newer, _ := liveNotification(t, "n-2", testNow.Add(-time.Hour))
	st := gatedNotifications{release: make(chan struct{}), snapshot: []model.Notification{newer, oldest}, unread: 2}
	close(st.release)

	l := newLoop(t)
	n, cmd := NewNotificationCenter(st, hub, Options{Limit: 2}).SetScope(Scope{UserID: "u1"})
	l.exec(cmd)
	n = drive(l, n, updateCenter, func(n NotificationCenter) bool { return n.Live() && !n.Loading() })

	_, newest := liveNotification(t, "n-3", testNow)
	hub.Publish(newest)
	n = drive(l, n, updateCenter, func(n NotificationCenter) bool { return n.Unread() == 3 })
	require.Len(t, n.Items(), 2)

	hub.Publish(redelivery)
	_, sentinel := liveNotification(t, "n-4", testNow.Add(time.Second))
	hub.Publish(sentinel)
	n = drive(l, n, updateCenter, func(n NotificationCenter) bool {
		return len(n.Items()) > 0 && n.Items()[0].ID == "n-4"
	})

	assert.Equal(t, 4, n.Unread(), "trimmed record redelivered must not be counted twice")
	assert.Equal(t, []string{"n-4", "n-3"}, []string{n.Items()[0].ID, n.Items()[1].ID})
}
