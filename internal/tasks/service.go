package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AleksGin/business-manager/internal/rbac"
	"github.com/AleksGin/business-manager/internal/shared"
	"github.com/AleksGin/business-manager/internal/teams"
	"github.com/AleksGin/business-manager/internal/users"
)

// CreateTaskInput is the internal DTO for task creation.
type CreateTaskInput struct {
	Title        string
	Description  string
	TeamUUID     uuid.UUID
	AssigneeUUID *uuid.UUID
	DueDate      *time.Time
}

// ServiceParams groups dependencies for the task service.
type ServiceParams struct {
	Logger *slog.Logger
	Repo   Repository
	Teams  teams.Repository
	Users  users.Repository
	Perms  rbac.PermissionChecker
	Tx     shared.TxRunner
}

// Service runs the task use cases behind the permission checks.
type Service struct {
	logger  *slog.Logger
	repo    Repository
	teams   teams.Repository
	users   users.Repository
	perms   rbac.PermissionChecker
	tx      shared.TxRunner
	newUUID func() uuid.UUID
	now     func() time.Time
}

// NewService constructs the task service.
func NewService(p ServiceParams) *Service {
	return &Service{
		logger:  p.Logger,
		repo:    p.Repo,
		teams:   p.Teams,
		users:   p.Users,
		perms:   p.Perms,
		tx:      p.Tx,
		newUUID: uuid.New,
		now:     time.Now,
	}
}

// Create makes a new task on the team. Managers of the team and admins
// qualify; the assignee, when given, must be on the same team.
func (s *Service) Create(ctx context.Context, actorUUID uuid.UUID, in CreateTaskInput) (*Task, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("%w: task title is required", shared.ErrValidation)
	}
	var created *Task
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		actor, err := s.users.GetByUUID(ctx, actorUUID)
		if err != nil {
			return fmt.Errorf("load actor: %w", err)
		}
		team, err := s.teams.GetByUUID(ctx, in.TeamUUID)
		if err != nil {
			return err
		}
		if !s.perms.CanCreateTask(actor.Subject(), team.Ref()) {
			return shared.ErrPermissionDenied
		}
		if in.AssigneeUUID != nil {
			if err := s.checkAssignee(ctx, *in.AssigneeUUID, team.UUID); err != nil {
				return err
			}
		}

		task := &Task{
			UUID:         s.newUUID(),
			Title:        in.Title,
			Description:  in.Description,
			Status:       StatusOpen,
			TeamUUID:     team.UUID,
			CreatorUUID:  actor.UUID,
			AssigneeUUID: in.AssigneeUUID,
			DueDate:      in.DueDate,
		}
		if err := s.repo.Create(ctx, task); err != nil {
			return err
		}
		created = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("task created", slog.String("task", created.UUID.String()), slog.String("team", created.TeamUUID.String()))
	return created, nil
}

// Get returns the task if the actor may view it.
func (s *Service) Get(ctx context.Context, actorUUID, taskUUID uuid.UUID) (*Task, error) {
	actor, err := s.users.GetByUUID(ctx, actorUUID)
	if err != nil {
		return nil, fmt.Errorf("load actor: %w", err)
	}
	task, err := s.repo.GetByUUID(ctx, taskUUID)
	if err != nil {
		return nil, err
	}
	if !s.perms.CanViewTask(actor.Subject(), task.Ref()) {
		return nil, shared.ErrPermissionDenied
	}
	return task, nil
}

// ListForTeam returns the team's tasks to members and admins.
func (s *Service) ListForTeam(ctx context.Context, actorUUID, teamUUID uuid.UUID, page shared.Page, status *Status) ([]Task, error) {
	actor, err := s.users.GetByUUID(ctx, actorUUID)
	if err != nil {
		return nil, fmt.Errorf("load actor: %w", err)
	}
	team, err := s.teams.GetByUUID(ctx, teamUUID)
	if err != nil {
		return nil, err
	}
	subject := actor.Subject()
	if !s.perms.IsSystemAdmin(subject) && !s.perms.IsTeamMember(subject, team.Ref()) {
		return nil, shared.ErrPermissionDenied
	}
	return s.repo.List(ctx, page, Filter{TeamUUID: &teamUUID, Status: status})
}

// ListMine returns the actor's own tasks, created or assigned.
func (s *Service) ListMine(ctx context.Context, actorUUID uuid.UUID, page shared.Page) ([]Task, error) {
	return s.repo.GetUserTasks(ctx, actorUUID, page)
}

// Overdue returns the team's overdue tasks to its manager or an admin.
func (s *Service) Overdue(ctx context.Context, actorUUID, teamUUID uuid.UUID, limit int) ([]Task, error) {
	actor, err := s.users.GetByUUID(ctx, actorUUID)
	if err != nil {
		return nil, fmt.Errorf("load actor: %w", err)
	}
	team, err := s.teams.GetByUUID(ctx, teamUUID)
	if err != nil {
		return nil, err
	}
	subject := actor.Subject()
	if !s.perms.IsSystemAdmin(subject) && !s.perms.IsTeamManager(subject, team.Ref()) {
		return nil, shared.ErrPermissionDenied
	}
	if limit <= 0 {
		limit = 50
	}
	return s.repo.GetOverdue(ctx, &teamUUID, limit)
}

// StatusReport returns per-status counts for a team.
func (s *Service) StatusReport(ctx context.Context, actorUUID, teamUUID uuid.UUID) (map[Status]int, error) {
	actor, err := s.users.GetByUUID(ctx, actorUUID)
	if err != nil {
		return nil, fmt.Errorf("load actor: %w", err)
	}
	team, err := s.teams.GetByUUID(ctx, teamUUID)
	if err != nil {
		return nil, err
	}
	subject := actor.Subject()
	if !s.perms.IsSystemAdmin(subject) && !s.perms.IsTeamMember(subject, team.Ref()) {
		return nil, shared.ErrPermissionDenied
	}
	return s.repo.CountByStatus(ctx, teamUUID)
}

// Assign hands the task to a member of its team.
func (s *Service) Assign(ctx context.Context, actorUUID, taskUUID, assigneeUUID uuid.UUID) (*Task, error) {
	var updated *Task
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		actor, err := s.users.GetByUUID(ctx, actorUUID)
		if err != nil {
			return fmt.Errorf("load actor: %w", err)
		}
		task, err := s.repo.GetByUUID(ctx, taskUUID)
		if err != nil {
			return err
		}
		if !s.perms.CanAssignTask(actor.Subject(), task.Ref()) {
			return shared.ErrPermissionDenied
		}
		if err := s.checkAssignee(ctx, assigneeUUID, task.TeamUUID); err != nil {
			return err
		}
		task.AssigneeUUID = &assigneeUUID
		if err := s.repo.Update(ctx, task); err != nil {
			return err
		}
		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ChangeStatus moves the task to a new state. Creator, assignee and admins
// qualify.
func (s *Service) ChangeStatus(ctx context.Context, actorUUID, taskUUID uuid.UUID, status Status) (*Task, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown task status %q", shared.ErrValidation, status)
	}
	var updated *Task
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		actor, err := s.users.GetByUUID(ctx, actorUUID)
		if err != nil {
			return fmt.Errorf("load actor: %w", err)
		}
		task, err := s.repo.GetByUUID(ctx, taskUUID)
		if err != nil {
			return err
		}
		if !s.perms.CanChangeTaskStatus(actor.Subject(), task.Ref()) {
			return shared.ErrPermissionDenied
		}
		task.Status = status
		if err := s.repo.Update(ctx, task); err != nil {
			return err
		}
		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the task. Creator and admins qualify.
func (s *Service) Delete(ctx context.Context, actorUUID, taskUUID uuid.UUID) (bool, error) {
	var deleted bool
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		actor, err := s.users.GetByUUID(ctx, actorUUID)
		if err != nil {
			return fmt.Errorf("load actor: %w", err)
		}
		task, err := s.repo.GetByUUID(ctx, taskUUID)
		if err != nil {
			return err
		}
		if !s.perms.CanDeleteTask(actor.Subject(), task.Ref()) {
			return shared.ErrPermissionDenied
		}
		deleted, err = s.repo.Delete(ctx, taskUUID)
		return err
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func (s *Service) checkAssignee(ctx context.Context, assigneeUUID, teamUUID uuid.UUID) error {
	assignee, err := s.users.GetByUUID(ctx, assigneeUUID)
	if err != nil {
		return fmt.Errorf("load assignee: %w", err)
	}
	if assignee.TeamUUID == nil || *assignee.TeamUUID != teamUUID {
		return fmt.Errorf("%w: assignee is not a member of the task's team", shared.ErrValidation)
	}
	return nil
}
