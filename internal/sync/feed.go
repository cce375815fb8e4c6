package sync

import (
	"context"
	"encoding/json"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskboard/internal/logger"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/realtime"
)

// ActivityReceivedMsg announces a live activity accepted by the feed.
type ActivityReceivedMsg struct {
	Activity model.Activity
}

type activitiesLoadedMsg struct {
	gen        uint64
	activities []model.Activity
	err        error
}

// ActivityFeed fetches a scope's activities and prepends live inserts.
// The search term is applied on read, so changing it never refetches.
type ActivityFeed struct {
	reader  ActivityReader
	channel realtime.Channel
	opts    Options
	log     *logger.Logger

	scope  Scope
	filter model.ActivityFilter

	gen      generation
	fetchGen uint64
	subGen   uint64

	items Collection[model.Activity]
	// pending holds live inserts accepted while a fetch is in flight,
	// newest first. The fetch snapshot may predate them.
	pending []model.Activity
	sub     realtime.Subscription
	loading bool
	err     error
}

// NewActivityFeed creates an idle feed. A nil channel disables live
// updates.
func NewActivityFeed(r ActivityReader, ch realtime.Channel, opts Options) ActivityFeed {
	opts = opts.withDefaults()
	return ActivityFeed{
		reader:  r,
		channel: ch,
		opts:    opts,
		log:     opts.Log.Named("activity_feed"),
		items:   NewCollection[model.Activity](opts.Limit),
	}
}

// Load switches the feed to scope and filter: it drops the current
// records, fetches afresh and replaces the live subscription.
func (f ActivityFeed) Load(scope Scope, filter model.ActivityFilter) (ActivityFeed, tea.Cmd) {
	if filter.Limit <= 0 {
		filter.Limit = f.opts.Limit
	}
	f.scope = scope
	f.filter = filter
	f.items = NewCollection[model.Activity](filter.Limit)
	f.err = nil

	var fetch tea.Cmd
	f, fetch = f.fetch()
	old := f.sub
	f.sub = nil
	if f.channel == nil {
		return f, tea.Batch(fetch, closeSubscription(old))
	}
	f.subGen = f.gen.next()
	return f, tea.Batch(fetch, resubscribe(ownerActivities, f.subGen, f.channel, old, f.subscriptionFilter(), f.opts.Timeout))
}

// SetSearch changes the client-side search term.
func (f ActivityFeed) SetSearch(term string) ActivityFeed {
	f.filter.Search = term
	return f
}

// Retry re-runs the last fetch. A failed live subscription is reopened
// too.
func (f ActivityFeed) Retry() (ActivityFeed, tea.Cmd) {
	f.err = nil
	var fetch tea.Cmd
	f, fetch = f.fetch()
	if f.sub != nil || f.channel == nil {
		return f, fetch
	}
	f.subGen = f.gen.next()
	return f, tea.Batch(fetch, resubscribe(ownerActivities, f.subGen, f.channel, nil, f.subscriptionFilter(), f.opts.Timeout))
}

// Close releases the live subscription.
func (f ActivityFeed) Close() (ActivityFeed, tea.Cmd) {
	f.subGen = f.gen.next()
	f.fetchGen = f.subGen
	sub := f.sub
	f.sub = nil
	return f, closeSubscription(sub)
}

// Items returns the visible activities, newest first.
func (f ActivityFeed) Items() []model.Activity {
	if f.filter.Search == "" {
		return f.items.Items()
	}
	var out []model.Activity
	for _, a := range f.items.Items() {
		if model.MatchesSearch(a, f.filter.Search) {
			out = append(out, a)
		}
	}
	return out
}

func (f ActivityFeed) Loading() bool { return f.loading }

// Err returns the retained error of the last fetch or subscription.
func (f ActivityFeed) Err() error { return f.err }

func (f ActivityFeed) Scope() Scope { return f.scope }

func (f ActivityFeed) Filter() model.ActivityFilter { return f.filter }

// Live reports whether a push subscription is open.
func (f ActivityFeed) Live() bool { return f.sub != nil }

// Update applies fetch results and live changes.
func (f ActivityFeed) Update(msg tea.Msg) (ActivityFeed, tea.Cmd) {
	switch msg := msg.(type) {
	case activitiesLoadedMsg:
		if msg.gen != f.fetchGen {
			f.log.Debugw("discarding stale fetch", "gen", msg.gen, "current", f.fetchGen)
			return f, nil
		}
		f.loading = false
		if msg.err != nil {
			f.err = msg.err
			f.pending = nil
			return f, toast("activities", msg.err)
		}
		f.items.Reset(msg.activities)
		if added := f.items.Merge(f.pending); len(added) > 0 {
			f.log.Debugw("kept live inserts newer than fetch", "count", len(added))
		}
		f.pending = nil
		return f, nil

	case subscribedMsg:
		if msg.owner != ownerActivities {
			return f, nil
		}
		if msg.gen != f.subGen {
			f.log.Debugw("closing stale subscription", "gen", msg.gen, "current", f.subGen)
			return f, closeSubscription(msg.sub)
		}
		if msg.err != nil {
			f.err = msg.err
			return f, toast("activities", msg.err)
		}
		f.sub = msg.sub
		return f, waitForChange(ownerActivities, msg.gen, msg.sub)

	case changeMsg:
		if msg.owner != ownerActivities || msg.gen != f.subGen || f.sub == nil {
			return f, nil
		}
		next := waitForChange(ownerActivities, msg.gen, f.sub)
		a, ok := f.accept(msg.change)
		if !ok {
			return f, next
		}
		return f, tea.Batch(next, func() tea.Msg { return ActivityReceivedMsg{Activity: a} })

	case channelClosedMsg:
		if msg.owner != ownerActivities || msg.gen != f.subGen {
			return f, nil
		}
		f.log.Warnw("activity channel closed", "error", msg.err)
		f.sub = nil
		f.err = msg.err
		return f, toast("activities", msg.err)
	}
	return f, nil
}

// accept decodes an insert and prepends it when it passes the filter. The
// search term is left out here and applied on read.
func (f *ActivityFeed) accept(c realtime.Change) (model.Activity, bool) {
	if c.Table != realtime.TableActivities || c.Event != realtime.EventInsert {
		return model.Activity{}, false
	}
	var a model.Activity
	if err := json.Unmarshal(c.Record, &a); err != nil {
		f.log.Warnw("discarding invalid activity payload", "error", err)
		return model.Activity{}, false
	}
	if f.scope.WorkspaceID != "" && a.WorkspaceID != f.scope.WorkspaceID {
		return model.Activity{}, false
	}
	structural := f.filter
	structural.Search = ""
	if !structural.Matches(a) {
		return model.Activity{}, false
	}
	if !f.items.Prepend(a) {
		f.log.Debugw("dropping duplicate activity", "id", a.ID)
		return model.Activity{}, false
	}
	if f.loading {
		f.pending = append([]model.Activity{a}, f.pending...)
	}
	return a, true
}

func (f ActivityFeed) fetch() (ActivityFeed, tea.Cmd) {
	f.fetchGen = f.gen.next()
	f.loading = true
	f.pending = nil

	gen, reader, scope, filter, timeout := f.fetchGen, f.reader, f.scope, f.filter, f.opts.Timeout
	// Search runs client-side over the fetched set.
	filter.Search = ""
	return f, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		activities, err := reader.ListActivities(ctx, scope.WorkspaceID, filter)
		return activitiesLoadedMsg{gen: gen, activities: activities, err: err}
	}
}

func (f ActivityFeed) subscriptionFilter() realtime.Filter {
	rf := realtime.Filter{Table: realtime.TableActivities, Event: realtime.EventInsert}
	if f.scope.WorkspaceID != "" {
		rf.Column = "workspace_id"
		rf.Value = f.scope.WorkspaceID
	}
	return rf
}
