package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AleksGin/business-manager/internal/rbac"
	"github.com/AleksGin/business-manager/internal/shared"
)

// ActivationTokenIssuer creates the email-verification credential for a
// freshly registered user. Implemented by the auth activation manager.
type ActivationTokenIssuer interface {
	IssueEmailVerification(ctx context.Context, userUUID uuid.UUID) (string, error)
}

// SessionRevoker invalidates every stored credential of a user. Implemented
// by the token store.
type SessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userUUID uuid.UUID) (int64, error)
}

// CreateUserInput is the internal DTO for account creation.
type CreateUserInput struct {
	Email     string
	Name      string
	Surname   string
	Gender    Gender
	BirthDate time.Time
	Password  string
	Role      rbac.Role
	TeamUUID  *uuid.UUID
}

// UpdateUserInput carries field-wise profile changes; nil means unchanged.
type UpdateUserInput struct {
	Name      *string
	Surname   *string
	Gender    *Gender
	BirthDate *time.Time
	Role      *rbac.Role
	TeamUUID  *uuid.UUID
}

// QueryUsersRequest narrows a user listing.
type QueryUsersRequest struct {
	Page        shared.Page
	TeamUUID    *uuid.UUID
	SearchQuery string
	ExcludeTeam bool
}

// ServiceParams groups dependencies for the user service.
type ServiceParams struct {
	Logger     *slog.Logger
	Repo       Repository
	Validator  *Validator
	Perms      rbac.PermissionChecker
	Hasher     PasswordHasher
	Activation ActivationTokenIssuer
	Sessions   SessionRevoker
	Tx         shared.TxRunner
}

// Service orchestrates the user use cases: every mutation loads the
// participants, asks the permission validator for a decision, applies the
// business rules and commits as one transaction.
type Service struct {
	logger     *slog.Logger
	repo       Repository
	validator  *Validator
	perms      rbac.PermissionChecker
	hasher     PasswordHasher
	activation ActivationTokenIssuer
	sessions   SessionRevoker
	tx         shared.TxRunner
	policy     RegistrationPolicy
	newUUID    func() uuid.UUID
	now        func() time.Time
}

// NewService constructs the user service.
func NewService(p ServiceParams) *Service {
	return &Service{
		logger:     p.Logger,
		repo:       p.Repo,
		validator:  p.Validator,
		perms:      p.Perms,
		hasher:     p.Hasher,
		activation: p.Activation,
		sessions:   p.Sessions,
		tx:         p.Tx,
		newUUID:    uuid.New,
		now:        time.Now,
	}
}

// CreateUser registers a new account. A nil actorUUID is the
// self-registration path: the registration policy forces role and team
// defaults. Otherwise only system admins may create users.
func (s *Service) CreateUser(ctx context.Context, actorUUID *uuid.UUID, in CreateUserInput) (*User, error) {
	var created *User
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if actorUUID == nil {
			in = s.policy.ApplySelfRegistration(in)
		} else {
			actor, err := s.repo.GetByUUID(ctx, *actorUUID)
			if err != nil {
				return fmt.Errorf("load actor: %w", err)
			}
			if !s.perms.IsSystemAdmin(actor.Subject()) {
				return shared.ErrPermissionDenied
			}
			if in.Role == "" {
				in.Role = rbac.RoleEmployee
			}
		}

		if !s.validator.ValidateAge(in.BirthDate, s.now()) {
			return fmt.Errorf("%w: user must be at least %d years old", shared.ErrValidation, MinAge)
		}
		if !s.validator.ValidatePasswordStrength(in.Password) {
			return fmt.Errorf("%w: password does not meet strength requirements", shared.ErrValidation)
		}
		unique, err := s.validator.ValidateEmailUnique(ctx, in.Email, nil)
		if err != nil {
			return err
		}
		if !unique {
			return fmt.Errorf("%w: email %s already in use", shared.ErrValidation, in.Email)
		}

		hash, err := s.hasher.Hash(in.Password)
		if err != nil {
			return err
		}

		user := &User{
			UUID:         s.newUUID(),
			Email:        in.Email,
			PasswordHash: hash,
			Name:         in.Name,
			Surname:      in.Surname,
			Gender:       in.Gender,
			BirthDate:    in.BirthDate,
			Role:         in.Role,
			TeamUUID:     in.TeamUUID,
			IsActive:     true,
			IsVerified:   false,
		}
		if err := s.repo.Create(ctx, user); err != nil {
			return err
		}

		if _, err := s.activation.IssueEmailVerification(ctx, user.UUID); err != nil {
			return fmt.Errorf("issue verification token: %w", err)
		}

		created = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user created", slog.String("user", created.UUID.String()), slog.String("role", string(created.Role)))
	return created, nil
}

// GetByUUID returns the target user if the actor may view them.
func (s *Service) GetByUUID(ctx context.Context, actorUUID, targetUUID uuid.UUID) (*User, error) {
	actor, err := s.repo.GetByUUID(ctx, actorUUID)
	if err != nil {
		return nil, fmt.Errorf("load actor: %w", err)
	}
	target, err := s.repo.GetByUUID(ctx, targetUUID)
	if err != nil {
		return nil, fmt.Errorf("load target: %w", err)
	}
	if !s.perms.CanViewUser(actor.Subject(), target.Subject()) {
		return nil, shared.ErrPermissionDenied
	}
	return target, nil
}

// GetByEmail returns the user holding the email if the actor may view them.
func (s *Service) GetByEmail(ctx context.Context, actorUUID uuid.UUID, email string) (*User, error) {
	actor, err := s.repo.GetByUUID(ctx, actorUUID)
	if err != nil {
		return nil, fmt.Errorf("load actor: %w", err)
	}
	target, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("load target: %w", err)
	}
	if !s.perms.CanViewUser(actor.Subject(), target.Subject()) {
		return nil, shared.ErrPermissionDenied
	}
	return target, nil
}

// Query lists users the actor may browse. Employees are pinned to their own
// team; managers and admins may browse any team or the whole directory.
func (s *Service) Query(ctx context.Context, actorUUID uuid.UUID, req QueryUsersRequest) ([]User, error) {
	actor, err := s.repo.GetByUUID(ctx, actorUUID)
	if err != nil {
		return nil, fmt.Errorf("load actor: %w", err)
	}

	teamFilter := req.TeamUUID
	if actor.Role == rbac.RoleEmployee {
		if actor.TeamUUID == nil {
			return []User{*actor}, nil
		}
		if teamFilter != nil && *teamFilter != *actor.TeamUUID {
			return nil, shared.ErrPermissionDenied
		}
		teamFilter = actor.TeamUUID
	}

	if req.SearchQuery != "" {
		return s.repo.Search(ctx, SearchRequest{
			Query:       req.SearchQuery,
			TeamUUID:    teamFilter,
			ExcludeTeam: req.ExcludeTeam,
			Limit:       req.Page.Limit,
		})
	}
	return s.repo.List(ctx, req.Page, teamFilter)
}

// WithoutTeam lists users not assigned to any team.
func (s *Service) WithoutTeam(ctx context.Context, actorUUID uuid.UUID, page shared.Page) ([]User, error) {
	actor, err := s.repo.GetByUUID(ctx, actorUUID)
	if err != nil {
		return nil, fmt.Errorf("load actor: %w", err)
	}
	if !s.perms.CanViewUsersWithoutTeam(actor.Subject()) {
		return nil, shared.ErrPermissionDenied
	}
	return s.repo.GetWithoutTeam(ctx, page)
}

// Update applies field-wise changes to the target user. Role changes route
// through the role-assignment rules; team changes are reserved to admins
// (membership normally moves through the team membership manager).
func (s *Service) Update(ctx context.Context, actorUUID, targetUUID uuid.UUID, in UpdateUserInput) (*User, error) {
	var updated *User
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		actor, err := s.repo.GetByUUID(ctx, actorUUID)
		if err != nil {
			return fmt.Errorf("load actor: %w", err)
		}
		target, err := s.repo.GetByUUID(ctx, targetUUID)
		if err != nil {
			return fmt.Errorf("load target: %w", err)
		}
		if !s.perms.CanUpdateUser(actor.Subject(), target.Subject()) {
			return shared.ErrPermissionDenied
		}

		if in.Name != nil {
			target.Name = *in.Name
		}
		if in.Surname != nil {
			target.Surname = *in.Surname
		}
		if in.Gender != nil {
			target.Gender = *in.Gender
		}
		if in.BirthDate != nil {
			if !s.validator.ValidateAge(*in.BirthDate, s.now()) {
				return fmt.Errorf("%w: user must be at least %d years old", shared.ErrValidation, MinAge)
			}
			target.BirthDate = *in.BirthDate
		}
		if in.Role != nil {
			if !s.perms.CanAssignRole(actor.Subject(), target.Subject(), *in.Role) {
				return shared.ErrPermissionDenied
			}
			target.Role = *in.Role
		}
		if in.TeamUUID != nil {
			if !s.perms.IsSystemAdmin(actor.Subject()) {
				return shared.ErrPermissionDenied
			}
			target.TeamUUID = in.TeamUUID
		}

		if err := s.repo.Update(ctx, target); err != nil {
			return err
		}
		updated = target
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the target user. Only admins qualify, and never on
// themselves.
func (s *Service) Delete(ctx context.Context, actorUUID, targetUUID uuid.UUID) (bool, error) {
	var deleted bool
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		actor, err := s.repo.GetByUUID(ctx, actorUUID)
		if err != nil {
			return fmt.Errorf("load actor: %w", err)
		}
		target, err := s.repo.GetByUUID(ctx, targetUUID)
		if err != nil {
			return fmt.Errorf("load target: %w", err)
		}
		if !s.perms.CanDeleteUser(actor.Subject(), target.Subject()) {
			return shared.ErrPermissionDenied
		}
		deleted, err = s.repo.Delete(ctx, targetUUID)
		return err
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// AssignRole gives the target a new role under the hierarchy rules.
func (s *Service) AssignRole(ctx context.Context, actorUUID, targetUUID uuid.UUID, newRole rbac.Role) error {
	if !newRole.Valid() {
		return fmt.Errorf("%w: unknown role %q", shared.ErrValidation, newRole)
	}
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		actor, err := s.repo.GetByUUID(ctx, actorUUID)
		if err != nil {
			return fmt.Errorf("load actor: %w", err)
		}
		target, err := s.repo.GetByUUID(ctx, targetUUID)
		if err != nil {
			return fmt.Errorf("load target: %w", err)
		}
		if !s.perms.CanAssignRole(actor.Subject(), target.Subject(), newRole) {
			return shared.ErrPermissionDenied
		}
		target.Role = newRole
		return s.repo.Update(ctx, target)
	})
}

// RemoveRole demotes the target back to a plain employee.
func (s *Service) RemoveRole(ctx context.Context, actorUUID, targetUUID uuid.UUID) error {
	return s.AssignRole(ctx, actorUUID, targetUUID, rbac.RoleEmployee)
}

// Activate re-enables a blocked account. Admin only.
func (s *Service) Activate(ctx context.Context, actorUUID, targetUUID uuid.UUID) error {
	return s.setActive(ctx, actorUUID, targetUUID, true)
}

// Deactivate blocks an account and revokes every stored credential in the
// same transaction, so a disabled user cannot keep refreshing.
func (s *Service) Deactivate(ctx context.Context, actorUUID, targetUUID uuid.UUID) error {
	return s.setActive(ctx, actorUUID, targetUUID, false)
}

func (s *Service) setActive(ctx context.Context, actorUUID, targetUUID uuid.UUID, active bool) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		actor, err := s.repo.GetByUUID(ctx, actorUUID)
		if err != nil {
			return fmt.Errorf("load actor: %w", err)
		}
		if !s.perms.IsSystemAdmin(actor.Subject()) {
			return shared.ErrPermissionDenied
		}
		target, err := s.repo.GetByUUID(ctx, targetUUID)
		if err != nil {
			return fmt.Errorf("load target: %w", err)
		}
		target.IsActive = active
		if err := s.repo.Update(ctx, target); err != nil {
			return err
		}
		if !active {
			if _, err := s.sessions.RevokeAllForUser(ctx, targetUUID); err != nil {
				return err
			}
		}
		return nil
	})
}

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}
