package model

import "time"

// NotificationType enumerates the reasons a user is notified.
type NotificationType string

const (
	NotificationTaskAssigned       NotificationType = "task_assigned"
	NotificationTaskCompleted      NotificationType = "task_completed"
	NotificationTaskDue            NotificationType = "task_due"
	NotificationProjectUpdate      NotificationType = "project_update"
	NotificationCommentMention     NotificationType = "comment_mention"
	NotificationNewComment         NotificationType = "new_comment"
	NotificationFileUploaded       NotificationType = "file_uploaded"
	NotificationMilestoneReached   NotificationType = "milestone_reached"
	NotificationSystemAnnouncement NotificationType = "system_announcement"
)

// Notification represents an alert surfaced to a single recipient.
type Notification struct {
	// ID is the unique identifier for this notification.
	ID string `json:"id"`

	// UserID is the recipient.
	UserID string `json:"user_id"`

	// WorkspaceID optionally narrows the notification to a workspace.
	WorkspaceID string `json:"workspace_id,omitempty"`

	// Type identifies why the notification was raised.
	Type NotificationType `json:"type"`

	// Title is the short headline.
	Title string `json:"title"`

	// Message is optional body text.
	Message string `json:"message,omitempty"`

	// Read flips from false to true exactly once; ReadAt is set with it.
	Read   bool       `json:"read"`
	ReadAt *time.Time `json:"read_at,omitempty"`

	// RelatedType and RelatedID optionally reference the entity the
	// notification is about.
	RelatedType string `json:"related_type,omitempty"`
	RelatedID   string `json:"related_id,omitempty"`

	// Details carries the type-specific payload.
	Details Details `json:"-"`

	// CreatedAt is when the notification was generated.
	CreatedAt time.Time `json:"created_at"`
}

// RecordID returns the notification ID.
func (n Notification) RecordID() string { return n.ID }

// MarkRead applies the one-way read transition. It reports false if the
// notification was already read.
func (n *Notification) MarkRead(at time.Time) bool {
	if n.Read {
		return false
	}
	n.Read = true
	n.ReadAt = &at
	return true
}

// NotificationFilter narrows a notification query.
type NotificationFilter struct {
	UserID      string
	WorkspaceID string
	UnreadOnly  bool
	Limit       int
}
