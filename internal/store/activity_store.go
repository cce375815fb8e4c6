package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/realtime"
)

const maxActivityLimit = 500

type activityRow struct {
	ID          string    `db:"id"`
	WorkspaceID string    `db:"workspace_id"`
	ActorID     string    `db:"actor_id"`
	ActorName   string    `db:"actor_name"`
	Action      string    `db:"action"`
	EntityType  string    `db:"entity_type"`
	EntityID    string    `db:"entity_id"`
	EntityName  string    `db:"entity_name"`
	Details     string    `db:"details"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// CreateActivity validates and inserts an activity. An empty ID gets a new
// UUID and a zero CreatedAt gets the store clock.
func (s *SQLStore) CreateActivity(ctx context.Context, a model.Activity) (model.Activity, error) {
	if !model.ValidActionKind(a.Action) {
		return model.Activity{}, fmt.Errorf("%w: unknown action %q", model.ErrInvalidDetails, a.Action)
	}
	if strings.TrimSpace(a.WorkspaceID) == "" || strings.TrimSpace(a.EntityID) == "" {
		return model.Activity{}, fmt.Errorf("activity requires workspace and entity ids")
	}
	normalized, err := model.NormalizeActivityDetails(a.Action, a.Details)
	if err != nil {
		return model.Activity{}, err
	}
	a.Details = normalized
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	a.CreatedAt = a.CreatedAt.UTC()

	details, err := model.EncodeDetails(string(a.Action), a.Details)
	if err != nil {
		return model.Activity{}, err
	}

	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO activities (
			id, workspace_id, actor_id, actor_name, action,
			entity_type, entity_id, entity_name, details, description, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		a.ID, a.WorkspaceID, a.ActorID, a.ActorName, string(a.Action),
		a.EntityType, a.EntityID, a.EntityName, string(details), a.Description, a.CreatedAt,
	)
	if err != nil {
		return model.Activity{}, mutationErr("creating activity", err)
	}

	s.publish(realtime.TableActivities, realtime.EventInsert, a)
	return a, nil
}

// ListActivities returns activities for a workspace, or for every
// workspace when workspaceID is empty, newest first. Kind,
// entity type and date range filters run in the query; the search term is
// left to the caller.
func (s *SQLStore) ListActivities(
	ctx context.Context,
	workspaceID string,
	f model.ActivityFilter,
) ([]model.Activity, error) {
	var conditions []string
	var args []any
	if workspaceID != "" {
		conditions = append(conditions, "workspace_id = ?")
		args = append(args, workspaceID)
	}

	if len(f.Actions) > 0 {
		actions := make([]string, len(f.Actions))
		for i, a := range f.Actions {
			actions[i] = string(a)
		}
		conditions = append(conditions, "action IN (?)")
		args = append(args, actions)
	}
	if len(f.EntityTypes) > 0 {
		conditions = append(conditions, "entity_type IN (?)")
		args = append(args, f.EntityTypes)
	}
	if f.Since != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, f.Since.UTC())
	}
	if f.Until != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, f.Until.UTC())
	}

	limit := f.Limit
	if limit <= 0 || limit > maxActivityLimit {
		limit = maxActivityLimit
	}

	query := "SELECT * FROM activities"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT %d", limit)

	query, args, err := s.in(query, args...)
	if err != nil {
		return nil, queryErr("building activity query", err)
	}

	var rows []activityRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, queryErr("querying activities", err)
	}

	activities := make([]model.Activity, 0, len(rows))
	for _, r := range rows {
		a, err := r.toModel()
		if err != nil {
			return nil, queryErr("decoding activity "+r.ID, err)
		}
		activities = append(activities, a)
	}
	return activities, nil
}

func (r activityRow) toModel() (model.Activity, error) {
	action := model.ActionKind(r.Action)
	details, err := model.DecodeActivityDetails(action, []byte(r.Details))
	if err != nil {
		return model.Activity{}, err
	}
	return model.Activity{
		ID:          r.ID,
		WorkspaceID: r.WorkspaceID,
		ActorID:     r.ActorID,
		ActorName:   r.ActorName,
		Action:      action,
		EntityType:  r.EntityType,
		EntityID:    r.EntityID,
		EntityName:  r.EntityName,
		Details:     details,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
	}, nil
}
