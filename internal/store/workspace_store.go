package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/taskboard/internal/model"
)

type taskRow struct {
	ID          string         `db:"id"`
	ProjectID   string         `db:"project_id"`
	WorkspaceID string         `db:"workspace_id"`
	Title       string         `db:"title"`
	Status      string         `db:"status"`
	AssigneeID  sql.NullString `db:"assignee_id"`
	DueDate     sql.NullTime   `db:"due_date"`
	CompletedAt sql.NullTime   `db:"completed_at"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

// UpsertMember inserts or updates a workspace member.
func (s *SQLStore) UpsertMember(ctx context.Context, m model.Member) error {
	if strings.TrimSpace(m.DisplayName) == "" {
		return fmt.Errorf("member display name must not be empty")
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO members (id, workspace_id, display_name, email)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			workspace_id = excluded.workspace_id,
			display_name = excluded.display_name,
			email = excluded.email`),
		m.ID, m.WorkspaceID, m.DisplayName, m.Email,
	)
	if err != nil {
		return mutationErr("upserting member "+m.ID, err)
	}
	return nil
}

// UpsertProject inserts or updates a project.
func (s *SQLStore) UpsertProject(ctx context.Context, p model.Project) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("project name must not be empty")
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = model.ProjectActive
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO projects (id, workspace_id, name, status, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			workspace_id = excluded.workspace_id,
			name = excluded.name,
			status = excluded.status`),
		p.ID, p.WorkspaceID, p.Name, string(p.Status), p.CreatedAt.UTC(),
	)
	if err != nil {
		return mutationErr("upserting project "+p.ID, err)
	}
	return nil
}

// UpsertTask inserts or updates a task. completed_at is kept in step with
// the status.
func (s *SQLStore) UpsertTask(ctx context.Context, t model.Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("task title must not be empty")
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = model.TaskTodo
	}
	now := s.now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	if t.IsDone() && t.CompletedAt == nil {
		t.CompletedAt = &now
	} else if !t.IsDone() {
		t.CompletedAt = nil
	}

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO tasks (
			id, project_id, workspace_id, title, status,
			assignee_id, due_date, completed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			project_id = excluded.project_id,
			workspace_id = excluded.workspace_id,
			title = excluded.title,
			status = excluded.status,
			assignee_id = excluded.assignee_id,
			due_date = excluded.due_date,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at`),
		t.ID, t.ProjectID, t.WorkspaceID, t.Title, string(t.Status),
		nullString(t.AssigneeID), nullTime(t.DueDate), nullTime(t.CompletedAt),
		t.CreatedAt.UTC(), t.UpdatedAt,
	)
	if err != nil {
		return mutationErr("upserting task "+t.ID, err)
	}
	return nil
}

// AddProjectMember adds (or re-roles) a project membership.
func (s *SQLStore) AddProjectMember(ctx context.Context, pm model.ProjectMember) error {
	if pm.Role == "" {
		pm.Role = "member"
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO project_members (project_id, member_id, role)
		VALUES (?, ?, ?)
		ON CONFLICT (project_id, member_id) DO UPDATE SET role = excluded.role`),
		pm.ProjectID, pm.MemberID, pm.Role,
	)
	if err != nil {
		return mutationErr(fmt.Sprintf("adding member %s to project %s", pm.MemberID, pm.ProjectID), err)
	}
	return nil
}

// ListMembers returns the members of a workspace ordered by name.
func (s *SQLStore) ListMembers(ctx context.Context, workspaceID string) ([]model.Member, error) {
	var members []model.Member
	err := s.db.SelectContext(ctx, &members,
		s.db.Rebind("SELECT * FROM members WHERE workspace_id = ? ORDER BY display_name, id"),
		workspaceID,
	)
	if err != nil {
		return nil, queryErr("querying members", err)
	}
	return members, nil
}

// IsWorkspaceMember reports whether userID is a member of workspaceID.
// Member ids are user ids.
func (s *SQLStore) IsWorkspaceMember(ctx context.Context, workspaceID, userID string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		s.db.Rebind("SELECT COUNT(*) FROM members WHERE workspace_id = ? AND id = ?"),
		workspaceID, userID,
	)
	if err != nil {
		return false, queryErr("checking workspace membership", err)
	}
	return n > 0, nil
}

// ListProjects returns the projects of a workspace, oldest first.
func (s *SQLStore) ListProjects(ctx context.Context, workspaceID string) ([]model.Project, error) {
	var projects []model.Project
	err := s.db.SelectContext(ctx, &projects,
		s.db.Rebind("SELECT * FROM projects WHERE workspace_id = ? ORDER BY created_at, id"),
		workspaceID,
	)
	if err != nil {
		return nil, queryErr("querying projects", err)
	}
	return projects, nil
}

// ListTasks returns the tasks of a workspace, oldest first.
func (s *SQLStore) ListTasks(ctx context.Context, workspaceID string) ([]model.Task, error) {
	var rows []taskRow
	err := s.db.SelectContext(ctx, &rows,
		s.db.Rebind("SELECT * FROM tasks WHERE workspace_id = ? ORDER BY created_at, id"),
		workspaceID,
	)
	if err != nil {
		return nil, queryErr("querying tasks", err)
	}

	tasks := make([]model.Task, 0, len(rows))
	for _, r := range rows {
		t := model.Task{
			ID:          r.ID,
			ProjectID:   r.ProjectID,
			WorkspaceID: r.WorkspaceID,
			Title:       r.Title,
			Status:      model.TaskStatus(r.Status),
			CreatedAt:   r.CreatedAt,
			UpdatedAt:   r.UpdatedAt,
		}
		if r.AssigneeID.Valid {
			assignee := r.AssigneeID.String
			t.AssigneeID = &assignee
		}
		if r.DueDate.Valid {
			due := r.DueDate.Time
			t.DueDate = &due
		}
		if r.CompletedAt.Valid {
			completed := r.CompletedAt.Time
			t.CompletedAt = &completed
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// ListProjectMembers returns every project membership in a workspace. A
// membership is active while its project is active.
func (s *SQLStore) ListProjectMembers(ctx context.Context, workspaceID string) ([]model.ProjectMember, error) {
	var memberships []model.ProjectMember
	err := s.db.SelectContext(ctx, &memberships, s.db.Rebind(`
		SELECT pm.project_id, pm.member_id, pm.role,
			CASE WHEN p.status = 'active' THEN 1 ELSE 0 END AS active
		FROM project_members pm
		JOIN projects p ON p.id = pm.project_id
		WHERE p.workspace_id = ?
		ORDER BY p.created_at, pm.project_id, pm.member_id`),
		workspaceID,
	)
	if err != nil {
		return nil, queryErr("querying project members", err)
	}
	return memberships, nil
}
