package model

import "time"

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskReview     TaskStatus = "review"
	TaskDone       TaskStatus = "done"
)

// Task is a unit of work inside a project.
type Task struct {
	ID          string     `json:"id" db:"id"`
	ProjectID   string     `json:"project_id" db:"project_id"`
	WorkspaceID string     `json:"workspace_id" db:"workspace_id"`
	Title       string     `json:"title" db:"title"`
	Status      TaskStatus `json:"status" db:"status"`
	AssigneeID  *string    `json:"assignee_id,omitempty" db:"assignee_id"`
	DueDate     *time.Time `json:"due_date,omitempty" db:"due_date"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// IsDone reports whether the task is completed.
func (t Task) IsDone() bool {
	return t.Status == TaskDone
}

// IsOverdue reports whether the task is open past its due date.
func (t Task) IsOverdue(now time.Time) bool {
	return !t.IsDone() && t.DueDate != nil && t.DueDate.Before(now)
}
