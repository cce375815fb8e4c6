package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeActivityDetails(t *testing.T) {
	tests := []struct {
		name    string
		kind    ActionKind
		raw     string
		want    Details
		wantErr bool
	}{
		{"create without payload", ActionCreate, ``, &FieldChange{}, false},
		{"update with fields", ActionUpdate, `{"kind":"update","data":{"fields":["title"]}}`, &FieldChange{Fields: []string{"title"}}, false},
		{"update without fields", ActionUpdate, `{"kind":"update","data":{}}`, nil, true},
		{"assign", ActionAssign, `{"kind":"assign","data":{"assignee_id":"u2","assignee_name":"Bob"}}`, &Assignment{AssigneeID: "u2", AssigneeName: "Bob"}, false},
		{"assign missing assignee", ActionAssign, `{"kind":"assign","data":{}}`, nil, true},
		{"status change", ActionStatusChange, `{"kind":"status_change","data":{"from":"todo","to":"done"}}`, &StatusChange{From: "todo", To: "done"}, false},
		{"status unchanged", ActionStatusChange, `{"kind":"status_change","data":{"from":"done","to":"done"}}`, nil, true},
		{"tag", ActionTagAdd, `{"kind":"tag_add","data":{"tag":"urgent"}}`, &TagChange{Tag: "urgent"}, false},
		{"kind mismatch", ActionTagAdd, `{"kind":"tag_remove","data":{"tag":"urgent"}}`, nil, true},
		{"not json", ActionComment, `{`, nil, true},
		{"unknown action", ActionKind("explode"), ``, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeActivityDetails(tt.kind, json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDetails)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeNotificationDetails(t *testing.T) {
	due := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	got, err := DecodeNotificationDetails(NotificationTaskDue, mustEncode(t, "task_due", &TaskRef{TaskID: "t1", DueAt: &due}))
	require.NoError(t, err)
	assert.True(t, got.(*TaskRef).DueAt.Equal(due))

	_, err = DecodeNotificationDetails(NotificationTaskDue, mustEncode(t, "task_due", &TaskRef{TaskID: "t1"}))
	assert.ErrorIs(t, err, ErrInvalidDetails)

	_, err = DecodeNotificationDetails(NotificationMilestoneReached, mustEncode(t, "milestone_reached", &ProjectRef{ProjectID: "p1"}))
	assert.ErrorIs(t, err, ErrInvalidDetails)

	_, err = DecodeNotificationDetails(NotificationFileUploaded, mustEncode(t, "file_uploaded", &FileRef{FileID: "f1"}))
	assert.ErrorIs(t, err, ErrInvalidDetails)

	got, err = DecodeNotificationDetails(NotificationSystemAnnouncement, nil)
	require.NoError(t, err)
	assert.Equal(t, "info", got.(*Announcement).Severity)

	_, err = DecodeNotificationDetails(NotificationSystemAnnouncement, mustEncode(t, "system_announcement", &Announcement{Severity: "panic"}))
	assert.ErrorIs(t, err, ErrInvalidDetails)
}

func mustEncode(t *testing.T, kind string, d Details) json.RawMessage {
	t.Helper()
	raw, err := EncodeDetails(kind, d)
	require.NoError(t, err)
	return raw
}

func TestActivityJSONRoundTrip(t *testing.T) {
	a := Activity{
		ID:          "a1",
		WorkspaceID: "w1",
		ActorID:     "u1",
		Action:      ActionAssign,
		EntityType:  EntityTask,
		EntityID:    "t1",
		EntityName:  "Fix login bug",
		Details:     &Assignment{AssigneeID: "u2"},
		CreatedAt:   time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	raw, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"details":{"kind":"assign","data":{"assignee_id":"u2"}}`)

	var back Activity
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, a, back)
}

func TestActivityUnmarshalRejectsInvalidDetails(t *testing.T) {
	var a Activity
	err := json.Unmarshal([]byte(`{"id":"a1","action":"assign","details":{"kind":"assign","data":{}}}`), &a)
	assert.ErrorIs(t, err, ErrInvalidDetails)
}

func TestNotificationMarkRead(t *testing.T) {
	n := Notification{ID: "n1"}
	at := time.Now()

	assert.True(t, n.MarkRead(at))
	assert.True(t, n.Read)
	assert.Equal(t, &at, n.ReadAt)

	assert.False(t, n.MarkRead(at.Add(time.Hour)))
	assert.Equal(t, at, *n.ReadAt)
}
