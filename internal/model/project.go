package model

import "time"

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectArchived  ProjectStatus = "archived"
	ProjectCompleted ProjectStatus = "completed"
)

// Project is a grouping container for related tasks.
type Project struct {
	ID          string        `json:"id" db:"id"`
	WorkspaceID string        `json:"workspace_id" db:"workspace_id"`
	Name        string        `json:"name" db:"name"`
	Status      ProjectStatus `json:"status" db:"status"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}

// Member is a user belonging to a workspace.
type Member struct {
	ID          string `json:"id" db:"id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`
	DisplayName string `json:"display_name" db:"display_name"`
	Email       string `json:"email" db:"email"`
}

// ProjectMember links a member to a project.
type ProjectMember struct {
	ProjectID string `json:"project_id" db:"project_id"`
	MemberID  string `json:"member_id" db:"member_id"`
	Role      string `json:"role" db:"role"`
	// Active is false once the project is archived or completed.
	Active bool `json:"active" db:"active"`
}
