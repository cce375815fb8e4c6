package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/realtime"
)

const maxNotificationLimit = 500

type notificationRow struct {
	ID          string       `db:"id"`
	UserID      string       `db:"user_id"`
	WorkspaceID string       `db:"workspace_id"`
	Type        string       `db:"type"`
	Title       string       `db:"title"`
	Message     string       `db:"message"`
	Read        bool         `db:"read"`
	ReadAt      sql.NullTime `db:"read_at"`
	RelatedType string       `db:"related_type"`
	RelatedID   string       `db:"related_id"`
	Details     string       `db:"details"`
	CreatedAt   time.Time    `db:"created_at"`
}

// CreateNotification validates and inserts a notification. New
// notifications are always unread.
func (s *SQLStore) CreateNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	if !model.ValidNotificationType(n.Type) {
		return model.Notification{}, fmt.Errorf("%w: unknown notification type %q", model.ErrInvalidDetails, n.Type)
	}
	if strings.TrimSpace(n.UserID) == "" || strings.TrimSpace(n.Title) == "" {
		return model.Notification{}, fmt.Errorf("notification requires a recipient and a title")
	}
	normalized, err := model.NormalizeNotificationDetails(n.Type, n.Details)
	if err != nil {
		return model.Notification{}, err
	}
	n.Details = normalized
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	n.CreatedAt = n.CreatedAt.UTC()
	n.Read = false
	n.ReadAt = nil

	details, err := model.EncodeDetails(string(n.Type), n.Details)
	if err != nil {
		return model.Notification{}, err
	}

	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO notifications (
			id, user_id, workspace_id, type, title, message,
			read, read_at, related_type, related_id, details, created_at
		) VALUES (?, ?, ?, ?, ?, ?, 0, NULL, ?, ?, ?, ?)`),
		n.ID, n.UserID, n.WorkspaceID, string(n.Type), n.Title, n.Message,
		n.RelatedType, n.RelatedID, string(details), n.CreatedAt,
	)
	if err != nil {
		return model.Notification{}, mutationErr("creating notification", err)
	}

	s.publish(realtime.TableNotifications, realtime.EventInsert, n)
	return n, nil
}

func notificationConditions(f model.NotificationFilter) ([]string, []any) {
	conditions := []string{"user_id = ?"}
	args := []any{f.UserID}
	if f.WorkspaceID != "" {
		conditions = append(conditions, "workspace_id = ?")
		args = append(args, f.WorkspaceID)
	}
	if f.UnreadOnly {
		conditions = append(conditions, "read = 0")
	}
	return conditions, args
}

// ListNotifications returns a user's notifications, newest first.
func (s *SQLStore) ListNotifications(
	ctx context.Context,
	f model.NotificationFilter,
) ([]model.Notification, error) {
	conditions, args := notificationConditions(f)

	limit := f.Limit
	if limit <= 0 || limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	query := s.db.Rebind("SELECT * FROM notifications WHERE " + strings.Join(conditions, " AND ") +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT %d", limit))

	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, queryErr("querying notifications", err)
	}

	notifications := make([]model.Notification, 0, len(rows))
	for _, r := range rows {
		n, err := r.toModel()
		if err != nil {
			return nil, queryErr("decoding notification "+r.ID, err)
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

// CountUnreadNotifications counts unread notifications matching f,
// independent of any list limit.
func (s *SQLStore) CountUnreadNotifications(ctx context.Context, f model.NotificationFilter) (int, error) {
	f.UnreadOnly = true
	conditions, args := notificationConditions(f)

	var count int
	query := s.db.Rebind("SELECT COUNT(*) FROM notifications WHERE " + strings.Join(conditions, " AND "))
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, queryErr("counting unread notifications", err)
	}
	return count, nil
}

// MarkNotificationsRead marks the given unread notifications of userID as
// read at the given time and returns how many rows changed. Already-read
// rows keep their original read_at.
func (s *SQLStore) MarkNotificationsRead(
	ctx context.Context,
	userID string,
	ids []string,
	at time.Time,
) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := s.in(
		"UPDATE notifications SET read = 1, read_at = ? WHERE user_id = ? AND read = 0 AND id IN (?)",
		at.UTC(), userID, ids,
	)
	if err != nil {
		return 0, mutationErr("building mark-read query", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mutationErr("marking notifications read", err)
	}
	affected, _ := result.RowsAffected()
	return int(affected), nil
}

// MarkAllNotificationsRead marks every unread notification matching f as
// read and returns how many rows changed.
func (s *SQLStore) MarkAllNotificationsRead(
	ctx context.Context,
	f model.NotificationFilter,
	at time.Time,
) (int, error) {
	f.UnreadOnly = true
	conditions, args := notificationConditions(f)
	query := s.db.Rebind("UPDATE notifications SET read = 1, read_at = ? WHERE " + strings.Join(conditions, " AND "))

	result, err := s.db.ExecContext(ctx, query, append([]any{at.UTC()}, args...)...)
	if err != nil {
		return 0, mutationErr("marking all notifications read", err)
	}
	affected, _ := result.RowsAffected()
	return int(affected), nil
}

// DeleteNotification removes one of userID's notifications.
func (s *SQLStore) DeleteNotification(ctx context.Context, userID, id string) error {
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("DELETE FROM notifications WHERE id = ? AND user_id = ?"), id, userID,
	)
	if err != nil {
		return mutationErr("deleting notification "+id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return mutationErr("deleting notification "+id, ErrNotFound)
	}
	s.publish(realtime.TableNotifications, realtime.EventDelete, map[string]string{"id": id, "user_id": userID})
	return nil
}

func (r notificationRow) toModel() (model.Notification, error) {
	typ := model.NotificationType(r.Type)
	details, err := model.DecodeNotificationDetails(typ, []byte(r.Details))
	if err != nil {
		return model.Notification{}, err
	}
	n := model.Notification{
		ID:          r.ID,
		UserID:      r.UserID,
		WorkspaceID: r.WorkspaceID,
		Type:        typ,
		Title:       r.Title,
		Message:     r.Message,
		Read:        r.Read,
		RelatedType: r.RelatedType,
		RelatedID:   r.RelatedID,
		Details:     details,
		CreatedAt:   r.CreatedAt,
	}
	if r.ReadAt.Valid {
		readAt := r.ReadAt.Time
		n.ReadAt = &readAt
	}
	return n, nil
}
