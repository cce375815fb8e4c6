package testutil

import (
	"testing"
	"time"

	"github.com/nhle/taskboard/internal/realtime"
	"github.com/nhle/taskboard/internal/store"
)

// NewTestStore creates an in-memory SQLStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T, opts ...store.Option) *store.SQLStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:", opts...)
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// NewLiveTestStore creates an in-memory store that publishes its writes to
// the returned hub.
func NewLiveTestStore(t *testing.T, opts ...store.Option) (*store.SQLStore, *realtime.Hub) {
	t.Helper()

	hub := realtime.NewHub(nil)
	t.Cleanup(func() { hub.Close() })

	opts = append([]store.Option{store.WithPublisher(hub)}, opts...)
	return NewTestStore(t, opts...), hub
}

// Clock is a settable time source for store.WithClock.
type Clock struct {
	T time.Time
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time { return c.T }

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.T = c.T.Add(d)
	return c.T
}
