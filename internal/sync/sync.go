// Package sync keeps in-memory mirrors of remote records current. Each
// component is a Bubble Tea sub-model: it mutates state only in Update
// and runs every remote call as a tea.Cmd whose result message is tagged
// with the generation that issued it. Results from an older generation are
// discarded.
package sync

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskboard/internal/logger"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/realtime"
)

// defaultTimeout bounds a single remote call.
const defaultTimeout = 15 * time.Second

// defaultLimit is the number of records fetched per scope.
const defaultLimit = 50

// Scope is the subject a fetch or subscription is bound to: a user,
// optionally narrowed to one workspace.
type Scope struct {
	UserID      string
	WorkspaceID string
}

// ActivityReader is the slice of the store the activity feed needs.
type ActivityReader interface {
	ListActivities(ctx context.Context, workspaceID string, f model.ActivityFilter) ([]model.Activity, error)
}

// NotificationStore is the slice of the store the notification center needs.
type NotificationStore interface {
	ListNotifications(ctx context.Context, f model.NotificationFilter) ([]model.Notification, error)
	CountUnreadNotifications(ctx context.Context, f model.NotificationFilter) (int, error)
	MarkNotificationsRead(ctx context.Context, userID string, ids []string, at time.Time) (int, error)
	MarkAllNotificationsRead(ctx context.Context, f model.NotificationFilter, at time.Time) (int, error)
	DeleteNotification(ctx context.Context, userID, id string) error
}

// TeamReader is the slice of the store the team board needs.
type TeamReader interface {
	ListMembers(ctx context.Context, workspaceID string) ([]model.Member, error)
	ListProjects(ctx context.Context, workspaceID string) ([]model.Project, error)
	ListTasks(ctx context.Context, workspaceID string) ([]model.Task, error)
	ListProjectMembers(ctx context.Context, workspaceID string) ([]model.ProjectMember, error)
}

// Options configures a sync component.
type Options struct {
	// Timeout bounds each remote call. Zero means 15s.
	Timeout time.Duration

	// Limit caps the mirrored collection. Zero means 50.
	Limit int

	Log *logger.Logger

	// Now is the clock used for read timestamps.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.Limit <= 0 {
		o.Limit = defaultLimit
	}
	if o.Log == nil {
		o.Log = logger.Nop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// ToastMsg is a transient, user-facing error report.
type ToastMsg struct {
	Source string
	Err    error
}

func toast(source string, err error) tea.Cmd {
	return func() tea.Msg {
		return ToastMsg{Source: source, Err: err}
	}
}

// generation hands out monotonically increasing tokens.
type generation uint64

func (g *generation) next() uint64 {
	*g++
	return uint64(*g)
}

// owner tags subscription messages so that several components can share
// the root model's message stream.
type owner string

const (
	ownerActivities    owner = "activities"
	ownerNotifications owner = "notifications"
)

type subscribedMsg struct {
	owner owner
	gen   uint64
	sub   realtime.Subscription
	err   error
}

type changeMsg struct {
	owner  owner
	gen    uint64
	change realtime.Change
}

type channelClosedMsg struct {
	owner owner
	gen   uint64
	err   error
}

// resubscribe closes old, then opens a subscription for f. Running both in
// one command guarantees the old channel is gone before the new one
// exists.
func resubscribe(o owner, gen uint64, ch realtime.Channel, old realtime.Subscription, f realtime.Filter, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		if old != nil {
			old.Close()
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		sub, err := ch.Subscribe(ctx, f)
		if err != nil && !realtime.IsChannelError(err) {
			err = &realtime.ChannelError{Op: "subscribe", Err: err}
		}
		return subscribedMsg{owner: o, gen: gen, sub: sub, err: err}
	}
}

// waitForChange blocks for the next change on sub. Components re-arm it
// after each change they accept.
func waitForChange(o owner, gen uint64, sub realtime.Subscription) tea.Cmd {
	return func() tea.Msg {
		c, ok := <-sub.Changes()
		if !ok {
			err := sub.Err()
			if err == nil {
				err = &realtime.ChannelError{Op: "receive", Err: realtime.ErrClosed}
			}
			return channelClosedMsg{owner: o, gen: gen, err: err}
		}
		return changeMsg{owner: o, gen: gen, change: c}
	}
}

func closeSubscription(sub realtime.Subscription) tea.Cmd {
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		sub.Close()
		return nil
	}
}

// ErrorText renders err for a toast or status line.
func ErrorText(err error) string {
	var chErr *realtime.ChannelError
	if errors.As(err, &chErr) {
		return "live updates stopped: " + chErr.Err.Error()
	}
	return err.Error()
}
