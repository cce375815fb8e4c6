package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKeys map[string]string

func (k fakeKeys) VerifyAPIKey(_ context.Context, key string) (string, error) {
	if user, ok := k[key]; ok {
		return user, nil
	}
	return "", errors.New("unknown key")
}

// fakeMembers maps a workspace to its member user ids.
type fakeMembers map[string][]string

func (m fakeMembers) IsWorkspaceMember(_ context.Context, workspaceID, userID string) (bool, error) {
	for _, id := range m[workspaceID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

var testSecret = []byte("relay-secret")

func newTestRelay(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(nil)
	srv := httptest.NewServer(NewServer(ServerConfig{
		Channel: hub,
		Keys:    fakeKeys{"tb_good": "user-1"},
		Members: fakeMembers{"w1": {"user-1"}, "w2": {"user-2"}},
		Secret:  testSecret,
	}))
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
	})
	return hub, srv
}

func receive(t *testing.T, sub Subscription) Change {
	t.Helper()
	select {
	case c, ok := <-sub.Changes():
		require.True(t, ok, "subscription closed: %v", sub.Err())
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change")
		return Change{}
	}
}

func TestRelayHealth(t *testing.T) {
	_, srv := newTestRelay(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRelayTokenExchange(t *testing.T) {
	_, srv := newTestRelay(t)
	ctx := context.Background()

	token, err := APIKeyTokenSource{BaseURL: srv.URL, APIKey: "tb_good"}.Token(ctx)
	require.NoError(t, err)
	subject, err := ParseToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", subject)

	_, err = APIKeyTokenSource{BaseURL: srv.URL, APIKey: "tb_bad"}.Token(ctx)
	assert.Error(t, err)
}

func TestRelayRejectsMissingBearer(t *testing.T) {
	_, srv := newTestRelay(t)

	resp, err := http.Get(srv.URL + "/v1/realtime")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	ch := NewWSChannel(srv.URL, StaticToken("garbage"), nil)
	_, err = ch.Subscribe(context.Background(), Filter{Table: TableActivities})
	assert.True(t, IsChannelError(err))
}

func TestRelayStreamsScopedChanges(t *testing.T) {
	hub, srv := newTestRelay(t)

	ch := NewWSChannel(srv.URL, APIKeyTokenSource{BaseURL: srv.URL, APIKey: "tb_good"}, nil)
	// The relay pins notification subscriptions to the token subject.
	sub, err := ch.Subscribe(context.Background(), Filter{
		Table:  TableNotifications,
		Event:  EventInsert,
		Column: "user_id",
		Value:  "someone-else",
	})
	require.NoError(t, err)
	require.Equal(t, 1, hub.Len())

	hub.Publish(change(TableNotifications, EventInsert, `{"id":"n1","user_id":"someone-else"}`))
	hub.Publish(change(TableNotifications, EventInsert, `{"id":"n2","user_id":"user-1"}`))

	got := receive(t, sub)
	assert.Equal(t, TableNotifications, got.Table)
	assert.JSONEq(t, `{"id":"n2","user_id":"user-1"}`, string(got.Record))

	require.NoError(t, sub.Close())
	assert.NoError(t, sub.Err())
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestRelaySurfacesUpstreamFailure(t *testing.T) {
	hub, srv := newTestRelay(t)

	ch := NewWSChannel(srv.URL, APIKeyTokenSource{BaseURL: srv.URL, APIKey: "tb_good"}, nil)
	sub, err := ch.Subscribe(context.Background(), Filter{
		Table: TableActivities, Event: EventInsert, Column: "workspace_id", Value: "w1",
	})
	require.NoError(t, err)
	defer sub.Close()

	hub.FailAll(ErrConnectionLost)

	select {
	case _, ok := <-sub.Changes():
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("subscription did not end")
	}
	assert.True(t, IsChannelError(sub.Err()))
}

func TestRelayScopesActivitySubscriptions(t *testing.T) {
	tests := []struct {
		name    string
		filter  Filter
		wantErr string
	}{
		{
			name:    "no workspace",
			filter:  Filter{Table: TableActivities, Event: EventInsert},
			wantErr: "workspace_id filter",
		},
		{
			name:    "other column",
			filter:  Filter{Table: TableActivities, Column: "actor_id", Value: "user-1"},
			wantErr: "workspace_id filter",
		},
		{
			name:    "foreign workspace",
			filter:  Filter{Table: TableActivities, Column: "workspace_id", Value: "w2"},
			wantErr: "not a member",
		},
		{
			name:    "unknown table",
			filter:  Filter{Table: "api_keys"},
			wantErr: "unknown table",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub, srv := newTestRelay(t)
			ch := NewWSChannel(srv.URL, APIKeyTokenSource{BaseURL: srv.URL, APIKey: "tb_good"}, nil)

			sub, err := ch.Subscribe(context.Background(), tt.filter)
			require.Error(t, err)
			assert.Nil(t, sub)
			assert.True(t, IsChannelError(err))
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, 0, hub.Len())
		})
	}
}

func TestRelayStreamsMemberWorkspaceActivities(t *testing.T) {
	hub, srv := newTestRelay(t)

	ch := NewWSChannel(srv.URL, APIKeyTokenSource{BaseURL: srv.URL, APIKey: "tb_good"}, nil)
	sub, err := ch.Subscribe(context.Background(), Filter{
		Table: TableActivities, Event: EventInsert, Column: "workspace_id", Value: "w1",
	})
	require.NoError(t, err)
	defer sub.Close()

	hub.Publish(change(TableActivities, EventInsert, `{"id":"a1","workspace_id":"w2"}`))
	hub.Publish(change(TableActivities, EventInsert, `{"id":"a2","workspace_id":"w1"}`))

	got := receive(t, sub)
	assert.JSONEq(t, `{"id":"a2","workspace_id":"w1"}`, string(got.Record))
}

func TestRealtimeURL(t *testing.T) {
	u, err := realtimeURL("http://localhost:8090")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8090/v1/realtime", u)

	u, err = realtimeURL("https://relay.example.com/base/")
	require.NoError(t, err)
	assert.Equal(t, "wss://relay.example.com/base/v1/realtime", u)

	_, err = realtimeURL("ftp://x")
	assert.Error(t, err)
}
