package model

import "time"

// ActionKind enumerates what an actor did to an entity.
type ActionKind string

const (
	ActionCreate       ActionKind = "create"
	ActionUpdate       ActionKind = "update"
	ActionDelete       ActionKind = "delete"
	ActionAssign       ActionKind = "assign"
	ActionUnassign     ActionKind = "unassign"
	ActionComment      ActionKind = "comment"
	ActionStatusChange ActionKind = "status_change"
	ActionTagAdd       ActionKind = "tag_add"
	ActionTagRemove    ActionKind = "tag_remove"
	ActionMemberAdd    ActionKind = "member_add"
	ActionMemberRemove ActionKind = "member_remove"
)

// Entity types referenced by activities and notifications.
const (
	EntityTask      = "task"
	EntityProject   = "project"
	EntityWorkspace = "workspace"
	EntityComment   = "comment"
	EntityFile      = "file"
)

// Activity is an immutable entry in a workspace's activity log.
type Activity struct {
	// ID is the unique identifier for this activity.
	ID string `json:"id"`

	// WorkspaceID scopes the activity to a workspace.
	WorkspaceID string `json:"workspace_id"`

	// ActorID references the user who performed the action.
	ActorID string `json:"actor_id"`

	// ActorName is the display name of the actor at the time of the action.
	ActorName string `json:"actor_name"`

	// Action is what the actor did.
	Action ActionKind `json:"action"`

	// EntityType, EntityID and EntityName identify the target.
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`

	// Details carries the kind-specific payload; its Kind always
	// matches Action.
	Details Details `json:"-"`

	// Description is an optional human-readable summary.
	Description string `json:"description,omitempty"`

	// CreatedAt is when the activity was recorded.
	CreatedAt time.Time `json:"created_at"`
}

// RecordID returns the activity ID.
func (a Activity) RecordID() string { return a.ID }

// ActivityFilter narrows an activity query. Zero values mean "no filter".
type ActivityFilter struct {
	Actions     []ActionKind
	EntityTypes []string
	Since       *time.Time
	Until       *time.Time
	Search      string
	Limit       int
}

// Matches reports whether a fully-formed activity passes every filter
// criterion, including the client-side search term.
func (f ActivityFilter) Matches(a Activity) bool {
	if len(f.Actions) > 0 && !containsAction(f.Actions, a.Action) {
		return false
	}
	if len(f.EntityTypes) > 0 && !containsString(f.EntityTypes, a.EntityType) {
		return false
	}
	if f.Since != nil && a.CreatedAt.Before(*f.Since) {
		return false
	}
	if f.Until != nil && a.CreatedAt.After(*f.Until) {
		return false
	}
	return MatchesSearch(a, f.Search)
}

func containsAction(list []ActionKind, v ActionKind) bool {
	for _, k := range list {
		if k == v {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
