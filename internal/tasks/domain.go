package tasks

import (
	"time"

	"github.com/google/uuid"

	"github.com/AleksGin/business-manager/internal/rbac"
)

// Status is the task lifecycle state.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// Valid reports whether the status is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Task belongs to a team and is created by one user, optionally assigned
// to another.
type Task struct {
	UUID         uuid.UUID
	Title        string
	Description  string
	Status       Status
	TeamUUID     uuid.UUID
	CreatorUUID  uuid.UUID
	AssigneeUUID *uuid.UUID
	DueDate      *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Ref returns the permission-check view of the task.
func (t *Task) Ref() rbac.TaskRef {
	return rbac.TaskRef{
		UUID:         t.UUID,
		TeamUUID:     t.TeamUUID,
		CreatorUUID:  t.CreatorUUID,
		AssigneeUUID: t.AssigneeUUID,
	}
}

// Overdue reports whether the task is past due and not completed.
func (t *Task) Overdue(now time.Time) bool {
	return t.DueDate != nil && now.After(*t.DueDate) && t.Status != StatusCompleted
}
