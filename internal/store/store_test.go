package store_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/realtime"
	"github.com/nhle/taskboard/internal/store"
	"github.com/nhle/taskboard/tests/testutil"
)

var base = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func TestCreateAndListActivities(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	for i, a := range []model.Activity{
		{ID: "a1", WorkspaceID: "w1", ActorID: "u1", Action: model.ActionCreate, EntityType: model.EntityTask, EntityID: "t1", EntityName: "Fix login bug"},
		{ID: "a2", WorkspaceID: "w1", ActorID: "u1", Action: model.ActionAssign, EntityType: model.EntityTask, EntityID: "t1", Details: &model.Assignment{AssigneeID: "u2"}},
		{ID: "a3", WorkspaceID: "w2", ActorID: "u3", Action: model.ActionComment, EntityType: model.EntityProject, EntityID: "p1", Details: &model.CommentRef{CommentID: "c1"}},
	} {
		a.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		_, err := s.CreateActivity(ctx, a)
		require.NoError(t, err)
	}

	got, err := s.ListActivities(ctx, "w1", model.ActivityFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a2", got[0].ID, "newest first")
	assert.Equal(t, &model.Assignment{AssigneeID: "u2"}, got[0].Details)
	assert.Equal(t, &model.FieldChange{}, got[1].Details)

	all, err := s.ListActivities(ctx, "", model.ActivityFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	filtered, err := s.ListActivities(ctx, "", model.ActivityFilter{
		Actions:     []model.ActionKind{model.ActionComment, model.ActionAssign},
		EntityTypes: []string{model.EntityTask},
	})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "a2", filtered[0].ID)

	since := base.Add(90 * time.Second)
	recent, err := s.ListActivities(ctx, "", model.ActivityFilter{Since: &since})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "a3", recent[0].ID)

	limited, err := s.ListActivities(ctx, "", model.ActivityFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestListActivitiesEmptyWorkspace(t *testing.T) {
	s := testutil.NewTestStore(t)

	got, err := s.ListActivities(context.Background(), "nobody", model.ActivityFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCreateActivityRejectsInvalidDetails(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	_, err := s.CreateActivity(ctx, model.Activity{
		WorkspaceID: "w1", EntityID: "t1", Action: model.ActionStatusChange,
		Details: &model.StatusChange{From: "todo", To: "todo"},
	})
	assert.ErrorIs(t, err, model.ErrInvalidDetails)

	_, err = s.CreateActivity(ctx, model.Activity{
		WorkspaceID: "w1", EntityID: "t1", Action: model.ActionUpdate,
	})
	assert.ErrorIs(t, err, model.ErrInvalidDetails)

	_, err = s.CreateActivity(ctx, model.Activity{WorkspaceID: "w1", EntityID: "t1", Action: "explode"})
	assert.ErrorIs(t, err, model.ErrInvalidDetails)

	got, err := s.ListActivities(ctx, "w1", model.ActivityFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func seedNotifications(t *testing.T, s store.Store) {
	t.Helper()
	for i, n := range []model.Notification{
		{ID: "n1", UserID: "u1", WorkspaceID: "w1", Type: model.NotificationTaskAssigned, Title: "Assigned", Details: &model.TaskRef{TaskID: "t1"}},
		{ID: "n2", UserID: "u1", WorkspaceID: "w2", Type: model.NotificationNewComment, Title: "Comment", Details: &model.CommentRef{CommentID: "c1"}},
		{ID: "n3", UserID: "u1", WorkspaceID: "w1", Type: model.NotificationSystemAnnouncement, Title: "Maintenance"},
		{ID: "n4", UserID: "u2", WorkspaceID: "w1", Type: model.NotificationTaskCompleted, Title: "Done", Details: &model.TaskRef{TaskID: "t2"}},
	} {
		n.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		_, err := s.CreateNotification(context.Background(), n)
		require.NoError(t, err)
	}
}

func TestListAndCountNotifications(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	seedNotifications(t, s)

	got, err := s.ListNotifications(ctx, model.NotificationFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"n3", "n2", "n1"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, &model.Announcement{Severity: "info"}, got[0].Details)
	assert.False(t, got[0].Read)
	assert.Nil(t, got[0].ReadAt)

	scoped, err := s.ListNotifications(ctx, model.NotificationFilter{UserID: "u1", WorkspaceID: "w1"})
	require.NoError(t, err)
	assert.Len(t, scoped, 2)

	count, err := s.CountUnreadNotifications(ctx, model.NotificationFilter{UserID: "u1", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, count, "count ignores the list limit")
}

func TestMarkNotificationsRead(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	seedNotifications(t, s)

	first := base.Add(time.Hour)
	n, err := s.MarkNotificationsRead(ctx, "u1", []string{"n1", "n4"}, first)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "other users' rows are untouched")

	n, err = s.MarkNotificationsRead(ctx, "u1", []string{"n1"}, first.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := s.ListNotifications(ctx, model.NotificationFilter{UserID: "u1", WorkspaceID: "w1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	read := got[1]
	assert.Equal(t, "n1", read.ID)
	assert.True(t, read.Read)
	require.NotNil(t, read.ReadAt)
	assert.True(t, read.ReadAt.Equal(first), "read_at keeps the first transition")

	n, err = s.MarkNotificationsRead(ctx, "u1", nil, first)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMarkAllNotificationsRead(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	seedNotifications(t, s)

	n, err := s.MarkAllNotificationsRead(ctx, model.NotificationFilter{UserID: "u1", WorkspaceID: "w1"}, base)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := s.CountUnreadNotifications(ctx, model.NotificationFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 1, count, "other workspaces stay unread")

	n, err = s.MarkAllNotificationsRead(ctx, model.NotificationFilter{UserID: "u1", WorkspaceID: "w1"}, base)
	require.NoError(t, err)
	assert.Zero(t, n)

	count, err = s.CountUnreadNotifications(ctx, model.NotificationFilter{UserID: "u2"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDeleteNotification(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	seedNotifications(t, s)

	require.NoError(t, s.DeleteNotification(ctx, "u1", "n1"))

	err := s.DeleteNotification(ctx, "u1", "n1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.True(t, store.IsMutationError(err))

	err = s.DeleteNotification(ctx, "u1", "n4")
	assert.ErrorIs(t, err, store.ErrNotFound, "cannot delete another user's notification")
}

func TestCreateNotificationValidation(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	_, err := s.CreateNotification(ctx, model.Notification{UserID: "u1", Title: "Due", Type: model.NotificationTaskDue, Details: &model.TaskRef{TaskID: "t1"}})
	assert.ErrorIs(t, err, model.ErrInvalidDetails)

	_, err = s.CreateNotification(ctx, model.Notification{UserID: "u1", Title: "x", Type: "bogus"})
	assert.ErrorIs(t, err, model.ErrInvalidDetails)

	_, err = s.CreateNotification(ctx, model.Notification{Title: "x", Type: model.NotificationSystemAnnouncement})
	assert.Error(t, err)

	n, err := s.CreateNotification(ctx, model.Notification{UserID: "u1", Title: "x", Type: model.NotificationSystemAnnouncement, Read: true})
	require.NoError(t, err)
	assert.False(t, n.Read, "new notifications start unread")
	assert.NotEmpty(t, n.ID)
}

func TestStorePublishesWrites(t *testing.T) {
	ctx := context.Background()
	s, hub := testutil.NewLiveTestStore(t)

	sub, err := hub.Subscribe(ctx, realtime.Filter{Table: realtime.TableNotifications, Column: "user_id", Value: "u1"})
	require.NoError(t, err)
	defer sub.Close()

	_, err = s.CreateNotification(ctx, model.Notification{
		ID: "n1", UserID: "u2", Type: model.NotificationSystemAnnouncement, Title: "not mine",
	})
	require.NoError(t, err)
	_, err = s.CreateNotification(ctx, model.Notification{
		ID: "n2", UserID: "u1", Type: model.NotificationTaskAssigned, Title: "mine",
		Details: &model.TaskRef{TaskID: "t1"},
	})
	require.NoError(t, err)

	select {
	case c := <-sub.Changes():
		assert.Equal(t, realtime.EventInsert, c.Event)
		var n model.Notification
		require.NoError(t, json.Unmarshal(c.Record, &n))
		assert.Equal(t, "n2", n.ID)
		assert.Equal(t, &model.TaskRef{TaskID: "t1"}, n.Details)
	case <-time.After(time.Second):
		t.Fatal("no change published")
	}

	require.NoError(t, s.DeleteNotification(ctx, "u1", "n2"))
	select {
	case c := <-sub.Changes():
		assert.Equal(t, realtime.EventDelete, c.Event)
	case <-time.After(time.Second):
		t.Fatal("no delete published")
	}
}

func TestWorkspaceData(t *testing.T) {
	ctx := context.Background()
	clock := &testutil.Clock{T: base}
	s := testutil.NewTestStore(t, store.WithClock(clock.Now))

	require.NoError(t, s.UpsertMember(ctx, model.Member{ID: "m1", WorkspaceID: "w1", DisplayName: "Alice"}))
	require.NoError(t, s.UpsertMember(ctx, model.Member{ID: "m2", WorkspaceID: "w1", DisplayName: "Bob"}))
	require.NoError(t, s.UpsertProject(ctx, model.Project{ID: "p1", WorkspaceID: "w1", Name: "Web"}))
	clock.Advance(time.Minute)
	require.NoError(t, s.UpsertProject(ctx, model.Project{ID: "p2", WorkspaceID: "w1", Name: "Old", Status: model.ProjectArchived}))
	require.NoError(t, s.AddProjectMember(ctx, model.ProjectMember{ProjectID: "p1", MemberID: "m1"}))
	require.NoError(t, s.AddProjectMember(ctx, model.ProjectMember{ProjectID: "p2", MemberID: "m1"}))

	alice := "m1"
	require.NoError(t, s.UpsertTask(ctx, model.Task{ID: "t1", ProjectID: "p1", WorkspaceID: "w1", Title: "Login", AssigneeID: &alice, Status: model.TaskDone}))

	members, err := s.ListMembers(ctx, "w1")
	require.NoError(t, err)
	assert.Len(t, members, 2)
	assert.Equal(t, "Alice", members[0].DisplayName)

	ok, err := s.IsWorkspaceMember(ctx, "w1", "m2")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.IsWorkspaceMember(ctx, "w2", "m2")
	require.NoError(t, err)
	assert.False(t, ok)

	projects, err := s.ListProjects(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, model.ProjectActive, projects[0].Status)

	tasks, err := s.ListTasks(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.NotNil(t, tasks[0].AssigneeID)
	assert.Equal(t, "m1", *tasks[0].AssigneeID)
	require.NotNil(t, tasks[0].CompletedAt, "done tasks get a completion time")

	tasks[0].Status = model.TaskInProgress
	require.NoError(t, s.UpsertTask(ctx, tasks[0]))
	tasks, err = s.ListTasks(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, tasks[0].CompletedAt, "reopened tasks lose their completion time")

	memberships, err := s.ListProjectMembers(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, memberships, 2)
	assert.True(t, memberships[0].Active)
	assert.False(t, memberships[1].Active)

	assert.Error(t, s.UpsertTask(ctx, model.Task{ProjectID: "p1", WorkspaceID: "w1", Title: " "}))
}

func TestDefaultPreferencesAndWidgetsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	prefs, err := s.CreateDefaultPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "system", prefs.Theme)
	assert.Equal(t, 50, prefs.FeedLimit)
	assert.True(t, prefs.EmailNotifications)

	again, err := s.CreateDefaultPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, prefs.CreatedAt.Equal(again.CreatedAt))

	widgets, err := s.CreateDefaultWidgets(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, widgets, 4)
	assert.Equal(t, model.WidgetStats, widgets[0].Kind)
	assert.True(t, widgets[0].Visible)

	widgets, err = s.CreateDefaultWidgets(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, widgets, 4)

	_, err = s.CreateDefaultPreferences(ctx, " ")
	assert.Error(t, err)
}

func TestAPIKeys(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	key, err := s.GenerateAPIKey(ctx, "u1", "")
	require.NoError(t, err)

	userID, err := s.VerifyAPIKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)

	var lastUsed sql.NullTime
	require.NoError(t, s.DB().Get(&lastUsed, "SELECT last_used_at FROM api_keys WHERE user_id = ?", "u1"))
	assert.True(t, lastUsed.Valid)

	other, err := s.GenerateAPIKey(ctx, "u2", "ci")
	require.NoError(t, err)
	forged := key[:len(key)-4] + other[len(other)-4:]

	for _, bad := range []string{forged, "tb_000000000000_secret", "not-a-key", ""} {
		_, err := s.VerifyAPIKey(ctx, bad)
		assert.ErrorIs(t, err, store.ErrInvalidAPIKey, "key %q", bad)
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := store.Open("mysql", "dsn")
	assert.Error(t, err)
}
