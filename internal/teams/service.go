package teams

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AleksGin/business-manager/internal/rbac"
	"github.com/AleksGin/business-manager/internal/shared"
	"github.com/AleksGin/business-manager/internal/users"
)

// CreateTeamInput is the internal DTO for team creation.
type CreateTeamInput struct {
	Name        string
	Description string
}

// UpdateTeamInput carries field-wise team changes; nil means unchanged.
// Ownership never moves through Update, only through TransferOwnership.
type UpdateTeamInput struct {
	Name        *string
	Description *string
}

// ServiceParams groups dependencies for the team service.
type ServiceParams struct {
	Logger *slog.Logger
	Repo   Repository
	Users  users.Repository
	Perms  rbac.PermissionChecker
	Tx     shared.TxRunner
}

// Service orchestrates the team use cases.
type Service struct {
	logger  *slog.Logger
	repo    Repository
	users   users.Repository
	perms   rbac.PermissionChecker
	tx      shared.TxRunner
	newUUID func() uuid.UUID
	now     func() time.Time
}

// NewService constructs the team service.
func NewService(p ServiceParams) *Service {
	return &Service{
		logger:  p.Logger,
		repo:    p.Repo,
		users:   p.Users,
		perms:   p.Perms,
		tx:      p.Tx,
		newUUID: uuid.New,
		now:     time.Now,
	}
}

// Create makes a new team owned by the actor. The owner becomes a member
// in the same transaction, so a team never exists without its owner on it.
func (s *Service) Create(ctx context.Context, actorUUID uuid.UUID, in CreateTeamInput) (*Team, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("%w: team name is required", shared.ErrValidation)
	}
	var created *Team
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		actor, err := s.users.GetByUUID(ctx, actorUUID)
		if err != nil {
			return fmt.Errorf("load actor: %w", err)
		}
		if !s.perms.CanCreateTeam(actor.Subject()) {
			return shared.ErrPermissionDenied
		}
		if actor.TeamUUID != nil {
			return fmt.Errorf("%w: actor already belongs to a team", shared.ErrValidation)
		}

		team := &Team{
			UUID:        s.newUUID(),
			Name:        in.Name,
			Description: in.Description,
			OwnerUUID:   actor.UUID,
		}
		if err := s.repo.Create(ctx, team); err != nil {
			return err
		}

		actor.TeamUUID = &team.UUID
		if err := s.users.Update(ctx, actor); err != nil {
			return err
		}
		created = team
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("team created", slog.String("team", created.UUID.String()), slog.String("owner", created.OwnerUUID.String()))
	return created, nil
}

// Get returns the team if the actor may view it.
func (s *Service) Get(ctx context.Context, actorUUID, teamUUID uuid.UUID) (*Team, error) {
	actor, err := s.users.GetByUUID(ctx, actorUUID)
	if err != nil {
		return nil, fmt.Errorf("load actor: %w", err)
	}
	team, err := s.repo.GetByUUID(ctx, teamUUID)
	if err != nil {
		return nil, err
	}
	if !s.perms.CanViewTeam(actor.Subject(), team.Ref()) {
		return nil, shared.ErrPermissionDenied
	}
	return team, nil
}

// List returns all teams. Admin only; everyone else works through their
// own team.
func (s *Service) List(ctx context.Context, actorUUID uuid.UUID, page shared.Page) ([]Team, error) {
	actor, err := s.users.GetByUUID(ctx, actorUUID)
	if err != nil {
		return nil, fmt.Errorf("load actor: %w", err)
	}
	if !s.perms.IsSystemAdmin(actor.Subject()) {
		return nil, shared.ErrPermissionDenied
	}
	return s.repo.List(ctx, page)
}

// Members lists the users on the team. Team members, owners and admins may
// look.
func (s *Service) Members(ctx context.Context, actorUUID, teamUUID uuid.UUID) ([]users.User, error) {
	actor, err := s.users.GetByUUID(ctx, actorUUID)
	if err != nil {
		return nil, fmt.Errorf("load actor: %w", err)
	}
	team, err := s.repo.GetByUUID(ctx, teamUUID)
	if err != nil {
		return nil, err
	}
	subject := actor.Subject()
	if !s.perms.IsTeamMember(subject, team.Ref()) && !s.perms.CanViewTeam(subject, team.Ref()) {
		return nil, shared.ErrPermissionDenied
	}
	return s.users.GetTeamMembers(ctx, teamUUID)
}

// Update applies field-wise changes to the team.
func (s *Service) Update(ctx context.Context, actorUUID, teamUUID uuid.UUID, in UpdateTeamInput) (*Team, error) {
	var updated *Team
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		actor, err := s.users.GetByUUID(ctx, actorUUID)
		if err != nil {
			return fmt.Errorf("load actor: %w", err)
		}
		team, err := s.repo.GetByUUID(ctx, teamUUID)
		if err != nil {
			return err
		}
		if !s.perms.CanUpdateTeam(actor.Subject(), team.Ref()) {
			return shared.ErrPermissionDenied
		}
		if in.Name != nil {
			if *in.Name == "" {
				return fmt.Errorf("%w: team name is required", shared.ErrValidation)
			}
			team.Name = *in.Name
		}
		if in.Description != nil {
			team.Description = *in.Description
		}
		if err := s.repo.Update(ctx, team); err != nil {
			return err
		}
		updated = team
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the team and detaches its members.
func (s *Service) Delete(ctx context.Context, actorUUID, teamUUID uuid.UUID) (bool, error) {
	var deleted bool
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		actor, err := s.users.GetByUUID(ctx, actorUUID)
		if err != nil {
			return fmt.Errorf("load actor: %w", err)
		}
		team, err := s.repo.GetByUUID(ctx, teamUUID)
		if err != nil {
			return err
		}
		if !s.perms.CanDeleteTeam(actor.Subject(), team.Ref()) {
			return shared.ErrPermissionDenied
		}
		deleted, err = s.repo.Delete(ctx, teamUUID)
		return err
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}
