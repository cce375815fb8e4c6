// Package realtime delivers row-change notifications from the remote store
// to subscribers: an in-process hub, a Postgres LISTEN bridge, and a
// websocket relay with its client.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
)

// Event is the kind of row change.
type Event string

const (
	EventInsert Event = "INSERT"
	EventUpdate Event = "UPDATE"
	EventDelete Event = "DELETE"
	EventAll    Event = "*"
)

// Tables that publish changes.
const (
	TableActivities    = "activities"
	TableNotifications = "notifications"
)

// Change is one row change. Record holds the row as JSON.
type Change struct {
	Table  string          `json:"table"`
	Event  Event           `json:"event"`
	Record json.RawMessage `json:"record"`
}

// Filter selects the changes a subscription receives. Column/Value, when
// set, require the record's column to equal Value.
type Filter struct {
	Table  string `json:"table"`
	Event  Event  `json:"event"`
	Column string `json:"column,omitempty"`
	Value  string `json:"value,omitempty"`
}

// String renders the filter as table:event:column=value.
func (f Filter) String() string {
	if f.Column == "" {
		return fmt.Sprintf("%s:%s", f.Table, f.Event)
	}
	return fmt.Sprintf("%s:%s:%s=%s", f.Table, f.Event, f.Column, f.Value)
}

// Matches reports whether c passes the filter.
func (f Filter) Matches(c Change) bool {
	if f.Table != c.Table {
		return false
	}
	if f.Event != "" && f.Event != EventAll && f.Event != c.Event {
		return false
	}
	if f.Column == "" {
		return true
	}
	var record map[string]any
	if err := json.Unmarshal(c.Record, &record); err != nil {
		return false
	}
	v, ok := record[f.Column]
	if !ok || v == nil {
		return false
	}
	return fmt.Sprint(v) == f.Value
}

// Subscription is one open push channel.
type Subscription interface {
	// Changes yields matching changes. It is closed when the subscription
	// ends, after which Err reports why.
	Changes() <-chan Change

	// Err returns nil after a clean Close and a *ChannelError otherwise.
	Err() error

	// Close ends the subscription. It is safe to call more than once.
	Close() error
}

// Channel opens subscriptions. ctx bounds only the handshake; a
// subscription lives until Close or a failure.
type Channel interface {
	Subscribe(ctx context.Context, f Filter) (Subscription, error)
}
