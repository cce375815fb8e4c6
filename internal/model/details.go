package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidDetails is returned when a details payload does not match the
// shape required by its activity kind or notification type.
var ErrInvalidDetails = errors.New("invalid details")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Details is the kind-specific payload carried by an Activity or a
// Notification. Each activity kind and notification type maps to exactly
// one concrete Details type.
type Details interface {
	isDetails()
}

// FieldChange accompanies create, update and delete activities.
type FieldChange struct {
	Fields []string `json:"fields,omitempty" validate:"dive,required"`
}

// Assignment accompanies assign and unassign activities.
type Assignment struct {
	AssigneeID   string `json:"assignee_id" validate:"required"`
	AssigneeName string `json:"assignee_name,omitempty"`
}

// CommentRef points at a comment; used by comment activities and by
// mention / new-comment notifications.
type CommentRef struct {
	CommentID string `json:"comment_id" validate:"required"`
	Excerpt   string `json:"excerpt,omitempty" validate:"max=280"`
}

// StatusChange records a status transition.
type StatusChange struct {
	From string `json:"from"`
	To   string `json:"to" validate:"required,nefield=From"`
}

// TagChange accompanies tag_add and tag_remove activities.
type TagChange struct {
	Tag string `json:"tag" validate:"required"`
}

// MemberChange accompanies member_add and member_remove activities.
type MemberChange struct {
	MemberID string `json:"member_id" validate:"required"`
	Role     string `json:"role,omitempty"`
}

// TaskRef accompanies task notifications.
type TaskRef struct {
	TaskID    string     `json:"task_id" validate:"required"`
	ProjectID string     `json:"project_id,omitempty"`
	DueAt     *time.Time `json:"due_at,omitempty"`
}

// ProjectRef accompanies project_update and milestone_reached notifications.
type ProjectRef struct {
	ProjectID string `json:"project_id" validate:"required"`
	Milestone string `json:"milestone,omitempty"`
}

// FileRef accompanies file_uploaded notifications.
type FileRef struct {
	FileID   string `json:"file_id" validate:"required"`
	FileName string `json:"file_name" validate:"required"`
}

// Announcement accompanies system announcements.
type Announcement struct {
	Severity string `json:"severity,omitempty" validate:"omitempty,oneof=info warning critical"`
}

func (*FieldChange) isDetails()  {}
func (*Assignment) isDetails()   {}
func (*CommentRef) isDetails()   {}
func (*StatusChange) isDetails() {}
func (*TagChange) isDetails()    {}
func (*MemberChange) isDetails() {}
func (*TaskRef) isDetails()      {}
func (*ProjectRef) isDetails()   {}
func (*FileRef) isDetails()      {}
func (*Announcement) isDetails() {}

var activityDetails = map[ActionKind]func() Details{
	ActionCreate:       func() Details { return &FieldChange{} },
	ActionUpdate:       func() Details { return &FieldChange{} },
	ActionDelete:       func() Details { return &FieldChange{} },
	ActionAssign:       func() Details { return &Assignment{} },
	ActionUnassign:     func() Details { return &Assignment{} },
	ActionComment:      func() Details { return &CommentRef{} },
	ActionStatusChange: func() Details { return &StatusChange{} },
	ActionTagAdd:       func() Details { return &TagChange{} },
	ActionTagRemove:    func() Details { return &TagChange{} },
	ActionMemberAdd:    func() Details { return &MemberChange{} },
	ActionMemberRemove: func() Details { return &MemberChange{} },
}

var notificationDetails = map[NotificationType]func() Details{
	NotificationTaskAssigned:       func() Details { return &TaskRef{} },
	NotificationTaskCompleted:      func() Details { return &TaskRef{} },
	NotificationTaskDue:            func() Details { return &TaskRef{} },
	NotificationProjectUpdate:      func() Details { return &ProjectRef{} },
	NotificationCommentMention:     func() Details { return &CommentRef{} },
	NotificationNewComment:         func() Details { return &CommentRef{} },
	NotificationFileUploaded:       func() Details { return &FileRef{} },
	NotificationMilestoneReached:   func() Details { return &ProjectRef{} },
	NotificationSystemAnnouncement: func() Details { return &Announcement{} },
}

// detailsEnvelope is the stored and wire form of a Details value.
type detailsEnvelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ValidActionKind reports whether k is a known activity kind.
func ValidActionKind(k ActionKind) bool {
	_, ok := activityDetails[k]
	return ok
}

// ValidNotificationType reports whether t is a known notification type.
func ValidNotificationType(t NotificationType) bool {
	_, ok := notificationDetails[t]
	return ok
}

// EncodeDetails serializes d into its envelope form tagged with kind.
// A nil d encodes to nil.
func EncodeDetails(kind string, d Details) (json.RawMessage, error) {
	if d == nil {
		return nil, nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encoding %s details: %w", kind, err)
	}
	return json.Marshal(detailsEnvelope{Kind: kind, Data: data})
}

// DecodeActivityDetails parses and validates the details payload for an
// activity of the given kind.
func DecodeActivityDetails(kind ActionKind, raw json.RawMessage) (Details, error) {
	newDetails, ok := activityDetails[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidDetails, kind)
	}
	d, err := decodeDetails(string(kind), raw, newDetails())
	if err != nil {
		return nil, err
	}
	if fc, ok := d.(*FieldChange); ok && kind == ActionUpdate && len(fc.Fields) == 0 {
		return nil, fmt.Errorf("%w: update requires at least one field", ErrInvalidDetails)
	}
	return d, nil
}

// DecodeNotificationDetails parses and validates the details payload for a
// notification of the given type.
func DecodeNotificationDetails(typ NotificationType, raw json.RawMessage) (Details, error) {
	newDetails, ok := notificationDetails[typ]
	if !ok {
		return nil, fmt.Errorf("%w: unknown notification type %q", ErrInvalidDetails, typ)
	}
	d, err := decodeDetails(string(typ), raw, newDetails())
	if err != nil {
		return nil, err
	}
	switch v := d.(type) {
	case *TaskRef:
		if typ == NotificationTaskDue && v.DueAt == nil {
			return nil, fmt.Errorf("%w: task_due requires due_at", ErrInvalidDetails)
		}
	case *ProjectRef:
		if typ == NotificationMilestoneReached && v.Milestone == "" {
			return nil, fmt.Errorf("%w: milestone_reached requires milestone", ErrInvalidDetails)
		}
	case *Announcement:
		if v.Severity == "" {
			v.Severity = "info"
		}
	}
	return d, nil
}

func decodeDetails(kind string, raw json.RawMessage, target Details) (Details, error) {
	if len(raw) > 0 && string(raw) != "null" {
		var env detailsEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDetails, kind, err)
		}
		if env.Kind != "" && env.Kind != kind {
			return nil, fmt.Errorf("%w: payload kind %q does not match %q", ErrInvalidDetails, env.Kind, kind)
		}
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, target); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDetails, kind, err)
			}
		}
	}
	if err := validate.Struct(target); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDetails, kind, err)
	}
	return target, nil
}

// NormalizeActivityDetails runs a Details value built in code through the
// same encode/validate path as ingested payloads. A nil d yields the zero
// payload for kind, which must itself be valid.
func NormalizeActivityDetails(kind ActionKind, d Details) (Details, error) {
	raw, err := EncodeDetails(string(kind), d)
	if err != nil {
		return nil, err
	}
	return DecodeActivityDetails(kind, raw)
}

// NormalizeNotificationDetails is the notification counterpart of
// NormalizeActivityDetails.
func NormalizeNotificationDetails(typ NotificationType, d Details) (Details, error) {
	raw, err := EncodeDetails(string(typ), d)
	if err != nil {
		return nil, err
	}
	return DecodeNotificationDetails(typ, raw)
}
