package evaluations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AleksGin/business-manager/internal/rbac"
	"github.com/AleksGin/business-manager/internal/shared"
	"github.com/AleksGin/business-manager/internal/tasks"
	"github.com/AleksGin/business-manager/internal/users"
)

// CreateEvaluationInput is the internal DTO for evaluation creation. The
// evaluated user is the task's assignee; the actor is the evaluator.
type CreateEvaluationInput struct {
	TaskUUID uuid.UUID
	Score    Score
	Comment  string
}

// ServiceParams groups dependencies for the evaluation service.
type ServiceParams struct {
	Logger *slog.Logger
	Repo   Repository
	Tasks  tasks.Repository
	Users  users.Repository
	Perms  rbac.PermissionChecker
	Tx     shared.TxRunner
}

// Service runs the evaluation use cases behind the permission checks.
type Service struct {
	logger  *slog.Logger
	repo    Repository
	tasks   tasks.Repository
	users   users.Repository
	perms   rbac.PermissionChecker
	tx      shared.TxRunner
	newUUID func() uuid.UUID
	now     func() time.Time
}

// NewService constructs the evaluation service.
func NewService(p ServiceParams) *Service {
	return &Service{
		logger:  p.Logger,
		repo:    p.Repo,
		tasks:   p.Tasks,
		users:   p.Users,
		perms:   p.Perms,
		tx:      p.Tx,
		newUUID: uuid.New,
		now:     time.Now,
	}
}

// Create grades a completed task. The actor must be the designated
// evaluator, never the evaluated user themself; admins may grade anything.
func (s *Service) Create(ctx context.Context, actorUUID uuid.UUID, in CreateEvaluationInput) (*Evaluation, error) {
	if !in.Score.Valid() {
		return nil, fmt.Errorf("%w: score must be between %d and %d", shared.ErrValidation, ScorePoor, ScoreOutstanding)
	}
	var created *Evaluation
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		actor, err := s.users.GetByUUID(ctx, actorUUID)
		if err != nil {
			return fmt.Errorf("load actor: %w", err)
		}
		task, err := s.tasks.GetByUUID(ctx, in.TaskUUID)
		if err != nil {
			return err
		}
		if task.AssigneeUUID == nil {
			return fmt.Errorf("%w: task has no assignee to evaluate", shared.ErrValidation)
		}
		if task.Status != tasks.StatusCompleted {
			return fmt.Errorf("%w: only completed tasks can be evaluated", shared.ErrValidation)
		}
		if _, err := s.repo.GetByTask(ctx, in.TaskUUID); err == nil {
			return fmt.Errorf("%w: task already has an evaluation", shared.ErrValidation)
		} else if !errors.Is(err, shared.ErrNotFound) {
			return err
		}

		eval := &Evaluation{
			UUID:          s.newUUID(),
			TaskUUID:      task.UUID,
			TeamUUID:      task.TeamUUID,
			EvaluatorUUID: actor.UUID,
			EvaluatedUUID: *task.AssigneeUUID,
			Score:         in.Score,
			Comment:       in.Comment,
		}
		if !s.perms.CanCreateEvaluation(actor.Subject(), eval.Ref()) {
			return shared.ErrPermissionDenied
		}
		if err := s.repo.Create(ctx, eval); err != nil {
			return err
		}
		created = eval
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("evaluation created",
		slog.String("evaluation", created.UUID.String()),
		slog.String("task", created.TaskUUID.String()),
		slog.Int("score", int(created.Score)),
	)
	return created, nil
}

// Get returns the evaluation if the actor may view it. The evaluated user
// may always read their own grade.
func (s *Service) Get(ctx context.Context, actorUUID, evalUUID uuid.UUID) (*Evaluation, error) {
	actor, err := s.users.GetByUUID(ctx, actorUUID)
	if err != nil {
		return nil, fmt.Errorf("load actor: %w", err)
	}
	eval, err := s.repo.GetByUUID(ctx, evalUUID)
	if err != nil {
		return nil, err
	}
	if actor.UUID != eval.EvaluatedUUID && !s.perms.CanViewEvaluation(actor.Subject(), eval.Ref()) {
		return nil, shared.ErrPermissionDenied
	}
	return eval, nil
}

// Update changes the score or comment. Only the evaluator and admins.
func (s *Service) Update(ctx context.Context, actorUUID, evalUUID uuid.UUID, score Score, comment *string) (*Evaluation, error) {
	if !score.Valid() {
		return nil, fmt.Errorf("%w: score must be between %d and %d", shared.ErrValidation, ScorePoor, ScoreOutstanding)
	}
	var updated *Evaluation
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		actor, err := s.users.GetByUUID(ctx, actorUUID)
		if err != nil {
			return fmt.Errorf("load actor: %w", err)
		}
		eval, err := s.repo.GetByUUID(ctx, evalUUID)
		if err != nil {
			return err
		}
		if !s.perms.CanUpdateEvaluation(actor.Subject(), eval.Ref()) {
			return shared.ErrPermissionDenied
		}
		eval.Score = score
		if comment != nil {
			eval.Comment = *comment
		}
		if err := s.repo.Update(ctx, eval); err != nil {
			return err
		}
		updated = eval
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes an evaluation. Only the evaluator and admins.
func (s *Service) Delete(ctx context.Context, actorUUID, evalUUID uuid.UUID) (bool, error) {
	var deleted bool
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		actor, err := s.users.GetByUUID(ctx, actorUUID)
		if err != nil {
			return fmt.Errorf("load actor: %w", err)
		}
		eval, err := s.repo.GetByUUID(ctx, evalUUID)
		if err != nil {
			return err
		}
		if !s.perms.CanUpdateEvaluation(actor.Subject(), eval.Ref()) {
			return shared.ErrPermissionDenied
		}
		deleted, err = s.repo.Delete(ctx, evalUUID)
		return err
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// Received lists evaluations a user was given. Self, managers and admins.
func (s *Service) Received(ctx context.Context, actorUUID, userUUID uuid.UUID, page shared.Page) ([]Evaluation, error) {
	if err := s.checkUserScope(ctx, actorUUID, userUUID); err != nil {
		return nil, err
	}
	return s.repo.GetReceived(ctx, userUUID, page)
}

// Given lists evaluations the actor handed out.
func (s *Service) Given(ctx context.Context, actorUUID uuid.UUID, page shared.Page) ([]Evaluation, error) {
	return s.repo.GetGiven(ctx, actorUUID, page)
}

// AverageScore returns the user's mean received score; ok is false when
// the user has none yet.
func (s *Service) AverageScore(ctx context.Context, actorUUID, userUUID uuid.UUID) (float64, bool, error) {
	if err := s.checkUserScope(ctx, actorUUID, userUUID); err != nil {
		return 0, false, err
	}
	return s.repo.AverageScore(ctx, userUUID)
}

func (s *Service) checkUserScope(ctx context.Context, actorUUID, userUUID uuid.UUID) error {
	if actorUUID == userUUID {
		return nil
	}
	actor, err := s.users.GetByUUID(ctx, actorUUID)
	if err != nil {
		return fmt.Errorf("load actor: %w", err)
	}
	target, err := s.users.GetByUUID(ctx, userUUID)
	if err != nil {
		return fmt.Errorf("load target: %w", err)
	}
	if !s.perms.CanViewUser(actor.Subject(), target.Subject()) {
		return shared.ErrPermissionDenied
	}
	subject := actor.Subject()
	if !s.perms.IsSystemAdmin(subject) && subject.Role != rbac.RoleManager {
		return shared.ErrPermissionDenied
	}
	return nil
}
