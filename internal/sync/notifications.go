package sync

import (
	"context"
	"encoding/json"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskboard/internal/logger"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/realtime"
)

type notificationsLoadedMsg struct {
	gen           uint64
	notifications []model.Notification
	unread        int
	err           error
}

type markedReadMsg struct {
	scopeGen uint64
	ids      []string
	all      bool
	at       time.Time
	err      error
}

type deletedMsg struct {
	scopeGen uint64
	id       string
	err      error
}

// NotificationCenter mirrors a user's notifications, keeps the unread
// count, and applies mark-read and delete once the store accepts them.
type NotificationCenter struct {
	store   NotificationStore
	channel realtime.Channel
	opts    Options
	log     *logger.Logger

	scope Scope

	gen      generation
	scopeGen uint64
	fetchGen uint64
	subGen   uint64

	items Collection[model.Notification]
	// pending holds live inserts accepted while a fetch is in flight,
	// newest first, kept in step with mark-read and delete.
	pending []model.Notification
	unread  int
	sub     realtime.Subscription
	loading bool
	err     error
}

// NewNotificationCenter creates an idle center. A nil channel disables
// live updates.
func NewNotificationCenter(s NotificationStore, ch realtime.Channel, opts Options) NotificationCenter {
	opts = opts.withDefaults()
	return NotificationCenter{
		store:   s,
		channel: ch,
		opts:    opts,
		log:     opts.Log.Named("notifications"),
		items:   NewCollection[model.Notification](opts.Limit),
	}
}

// SetScope binds the center to a new subject. The old channel is closed
// before the new one opens, and every in-flight result from the old scope
// is discarded on arrival.
func (n NotificationCenter) SetScope(scope Scope) (NotificationCenter, tea.Cmd) {
	n.scope = scope
	n.scopeGen = n.gen.next()
	n.items = NewCollection[model.Notification](n.opts.Limit)
	n.unread = 0
	n.err = nil
	n.log = n.opts.Log.Named("notifications").WithSubject(scope.UserID, scope.WorkspaceID)
	return n.reload(true)
}

// Reconnect refetches and reopens the live channel. Changes missed while
// the channel was down are picked up by the refetch.
func (n NotificationCenter) Reconnect() (NotificationCenter, tea.Cmd) {
	n.err = nil
	return n.reload(true)
}

// Refresh refetches without touching the live channel.
func (n NotificationCenter) Refresh() (NotificationCenter, tea.Cmd) {
	n.err = nil
	return n.reload(false)
}

// Close releases the live channel and invalidates in-flight results.
func (n NotificationCenter) Close() (NotificationCenter, tea.Cmd) {
	n.scopeGen = n.gen.next()
	n.fetchGen = n.scopeGen
	n.subGen = n.scopeGen
	sub := n.sub
	n.sub = nil
	return n, closeSubscription(sub)
}

func (n NotificationCenter) reload(reopen bool) (NotificationCenter, tea.Cmd) {
	var fetch tea.Cmd
	n, fetch = n.fetch()
	if !reopen || n.channel == nil {
		return n, fetch
	}
	old := n.sub
	n.sub = nil
	n.subGen = n.gen.next()
	return n, tea.Batch(fetch, resubscribe(ownerNotifications, n.subGen, n.channel, old, n.subscriptionFilter(), n.opts.Timeout))
}

// MarkOne marks a single notification read. Unknown or already-read ids
// issue no mutation.
func (n NotificationCenter) MarkOne(id string) (NotificationCenter, tea.Cmd) {
	record, ok := n.items.Get(id)
	if !ok || record.Read {
		return n, nil
	}
	return n, n.markRead([]string{id}, false)
}

// MarkAll marks every unread notification in scope read. With nothing
// unread it issues no mutation.
func (n NotificationCenter) MarkAll() (NotificationCenter, tea.Cmd) {
	if n.unread == 0 && n.mirrorUnread() == 0 {
		return n, nil
	}
	return n, n.markRead(nil, true)
}

// Delete removes a notification once the store confirms it.
func (n NotificationCenter) Delete(id string) (NotificationCenter, tea.Cmd) {
	if _, ok := n.items.Get(id); !ok {
		return n, nil
	}
	gen, store, userID, timeout := n.scopeGen, n.store, n.scope.UserID, n.opts.Timeout
	return n, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := store.DeleteNotification(ctx, userID, id)
		return deletedMsg{scopeGen: gen, id: id, err: err}
	}
}

func (n NotificationCenter) Items() []model.Notification { return n.items.Items() }

// Unread is the unread count for the whole scope, not only the mirrored
// records.
func (n NotificationCenter) Unread() int { return n.unread }

func (n NotificationCenter) Loading() bool { return n.loading }

// Err returns the retained error of the last fetch or channel failure.
func (n NotificationCenter) Err() error { return n.err }

func (n NotificationCenter) Scope() Scope { return n.scope }

// Live reports whether a push subscription is open.
func (n NotificationCenter) Live() bool { return n.sub != nil }

// Update applies fetch results, mutation results and live changes.
func (n NotificationCenter) Update(msg tea.Msg) (NotificationCenter, tea.Cmd) {
	switch msg := msg.(type) {
	case notificationsLoadedMsg:
		if msg.gen != n.fetchGen {
			n.log.Debugw("discarding stale fetch", "gen", msg.gen, "current", n.fetchGen)
			return n, nil
		}
		n.loading = false
		if msg.err != nil {
			n.err = msg.err
			n.pending = nil
			return n, toast("notifications", msg.err)
		}
		n.items.Reset(msg.notifications)
		n.unread = msg.unread
		// Inserts the snapshot missed are counted on top of its unread total.
		for _, record := range n.items.Merge(n.pending) {
			if !record.Read {
				n.unread++
			}
		}
		n.pending = nil
		return n, nil

	case markedReadMsg:
		if msg.scopeGen != n.scopeGen {
			return n, nil
		}
		if msg.err != nil {
			n.log.Warnw("mark read rejected", "error", msg.err)
			return n, toast("notifications", msg.err)
		}
		n.applyRead(msg)
		return n, nil

	case deletedMsg:
		if msg.scopeGen != n.scopeGen {
			return n, nil
		}
		if msg.err != nil {
			return n, toast("notifications", msg.err)
		}
		if removed, ok := n.items.Remove(msg.id); ok && !removed.Read {
			n.unread = max(n.unread-1, 0)
		}
		n.pending = withoutNotification(n.pending, msg.id)
		return n, nil

	case subscribedMsg:
		if msg.owner != ownerNotifications {
			return n, nil
		}
		if msg.gen != n.subGen {
			n.log.Debugw("closing stale subscription", "gen", msg.gen, "current", n.subGen)
			return n, closeSubscription(msg.sub)
		}
		if msg.err != nil {
			n.err = msg.err
			return n, toast("notifications", msg.err)
		}
		n.sub = msg.sub
		return n, waitForChange(ownerNotifications, msg.gen, msg.sub)

	case changeMsg:
		if msg.owner != ownerNotifications || msg.gen != n.subGen || n.sub == nil {
			return n, nil
		}
		n.accept(msg.change)
		return n, waitForChange(ownerNotifications, msg.gen, n.sub)

	case channelClosedMsg:
		if msg.owner != ownerNotifications || msg.gen != n.subGen {
			return n, nil
		}
		n.log.Warnw("notification channel closed", "error", msg.err)
		n.sub = nil
		n.err = msg.err
		return n, toast("notifications", msg.err)
	}
	return n, nil
}

func (n *NotificationCenter) accept(c realtime.Change) {
	if c.Table != realtime.TableNotifications || c.Event != realtime.EventInsert {
		return
	}
	var record model.Notification
	if err := json.Unmarshal(c.Record, &record); err != nil {
		n.log.Warnw("discarding invalid notification payload", "error", err)
		return
	}
	if record.UserID != n.scope.UserID {
		return
	}
	if n.scope.WorkspaceID != "" && record.WorkspaceID != n.scope.WorkspaceID {
		return
	}
	if !n.items.Prepend(record) {
		n.log.Debugw("dropping duplicate notification", "id", record.ID)
		return
	}
	if !record.Read {
		n.unread++
	}
	if n.loading {
		n.pending = append([]model.Notification{record}, n.pending...)
	}
}

func (n *NotificationCenter) applyRead(msg markedReadMsg) {
	ids := msg.ids
	if msg.all {
		ids = nil
		for _, record := range n.items.Items() {
			if !record.Read {
				ids = append(ids, record.ID)
			}
		}
	}
	for _, id := range ids {
		record, ok := n.items.Get(id)
		if !ok || !record.MarkRead(msg.at) {
			continue
		}
		n.items.Replace(record)
		n.unread = max(n.unread-1, 0)
	}
	if msg.all {
		n.unread = 0
	}
	n.pending = markPending(n.pending, ids, msg.at)
}

// markPending returns a copy of pending with the given ids marked read.
func markPending(pending []model.Notification, ids []string, at time.Time) []model.Notification {
	if len(pending) == 0 {
		return pending
	}
	marked := make(map[string]bool, len(ids))
	for _, id := range ids {
		marked[id] = true
	}
	out := make([]model.Notification, len(pending))
	copy(out, pending)
	for i := range out {
		if marked[out[i].ID] {
			out[i].MarkRead(at)
		}
	}
	return out
}

func withoutNotification(pending []model.Notification, id string) []model.Notification {
	var out []model.Notification
	for _, record := range pending {
		if record.ID != id {
			out = append(out, record)
		}
	}
	return out
}

func (n NotificationCenter) mirrorUnread() int {
	count := 0
	for _, record := range n.items.Items() {
		if !record.Read {
			count++
		}
	}
	return count
}

func (n NotificationCenter) markRead(ids []string, all bool) tea.Cmd {
	gen, store, filter, at, timeout := n.scopeGen, n.store, n.queryFilter(), n.opts.Now(), n.opts.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		var err error
		if all {
			_, err = store.MarkAllNotificationsRead(ctx, filter, at)
		} else {
			_, err = store.MarkNotificationsRead(ctx, filter.UserID, ids, at)
		}
		return markedReadMsg{scopeGen: gen, ids: ids, all: all, at: at, err: err}
	}
}

func (n NotificationCenter) fetch() (NotificationCenter, tea.Cmd) {
	n.fetchGen = n.gen.next()
	n.loading = true
	n.pending = nil

	gen, store, filter, timeout := n.fetchGen, n.store, n.queryFilter(), n.opts.Timeout
	return n, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		notifications, err := store.ListNotifications(ctx, filter)
		if err != nil {
			return notificationsLoadedMsg{gen: gen, err: err}
		}
		unread, err := store.CountUnreadNotifications(ctx, filter)
		if err != nil {
			return notificationsLoadedMsg{gen: gen, err: err}
		}
		return notificationsLoadedMsg{gen: gen, notifications: notifications, unread: unread}
	}
}

func (n NotificationCenter) queryFilter() model.NotificationFilter {
	return model.NotificationFilter{
		UserID:      n.scope.UserID,
		WorkspaceID: n.scope.WorkspaceID,
		Limit:       n.opts.Limit,
	}
}

func (n NotificationCenter) subscriptionFilter() realtime.Filter {
	return realtime.Filter{
		Table:  realtime.TableNotifications,
		Event:  realtime.EventInsert,
		Column: "user_id",
		Value:  n.scope.UserID,
	}
}
