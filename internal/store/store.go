package store

import (
	"context"
	"time"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/realtime"
)

// Publisher receives a change for every row the store inserts, updates or
// deletes when the backing database cannot push changes itself.
type Publisher interface {
	Publish(change realtime.Change)
}

// Store defines the remote store interface for activities, notifications,
// workspace data and the account procedures.
type Store interface {
	// === Activities ===

	CreateActivity(ctx context.Context, a model.Activity) (model.Activity, error)
	ListActivities(ctx context.Context, workspaceID string, f model.ActivityFilter) ([]model.Activity, error)

	// === Notifications ===

	CreateNotification(ctx context.Context, n model.Notification) (model.Notification, error)
	ListNotifications(ctx context.Context, f model.NotificationFilter) ([]model.Notification, error)
	CountUnreadNotifications(ctx context.Context, f model.NotificationFilter) (int, error)
	MarkNotificationsRead(ctx context.Context, userID string, ids []string, at time.Time) (int, error)
	MarkAllNotificationsRead(ctx context.Context, f model.NotificationFilter, at time.Time) (int, error)
	DeleteNotification(ctx context.Context, userID, id string) error

	// === Workspace ===

	UpsertMember(ctx context.Context, m model.Member) error
	UpsertProject(ctx context.Context, p model.Project) error
	UpsertTask(ctx context.Context, t model.Task) error
	AddProjectMember(ctx context.Context, pm model.ProjectMember) error
	ListMembers(ctx context.Context, workspaceID string) ([]model.Member, error)
	IsWorkspaceMember(ctx context.Context, workspaceID, userID string) (bool, error)
	ListProjects(ctx context.Context, workspaceID string) ([]model.Project, error)
	ListTasks(ctx context.Context, workspaceID string) ([]model.Task, error)
	ListProjectMembers(ctx context.Context, workspaceID string) ([]model.ProjectMember, error)

	// === Account procedures ===

	CreateDefaultPreferences(ctx context.Context, userID string) (*model.Preferences, error)
	CreateDefaultWidgets(ctx context.Context, userID string) ([]model.Widget, error)
	GenerateAPIKey(ctx context.Context, userID, name string) (string, error)
	VerifyAPIKey(ctx context.Context, key string) (string, error)

	Close() error
}

// Option configures an SQLStore.
type Option func(*SQLStore)

// WithPublisher makes the store publish its own writes. Use it for SQLite,
// which has no server-side notification mechanism.
func WithPublisher(p Publisher) Option {
	return func(s *SQLStore) { s.publisher = p }
}

// WithClock overrides the store's time source.
func WithClock(now func() time.Time) Option {
	return func(s *SQLStore) { s.now = now }
}
