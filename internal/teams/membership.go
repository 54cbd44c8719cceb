package teams

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/AleksGin/business-manager/internal/rbac"
	"github.com/AleksGin/business-manager/internal/shared"
	"github.com/AleksGin/business-manager/internal/users"
)

const inviteKeyPrefix = "team:invite:"

// MembershipManager moves users in and out of teams. Membership is the
// team_uuid back-reference on the user row; the manager keeps the owner
// invariant intact while mutating it.
type MembershipManager struct {
	logger    *slog.Logger
	repo      Repository
	users     users.Repository
	perms     rbac.PermissionChecker
	tx        shared.TxRunner
	redis     *redis.Client
	inviteTTL time.Duration
}

// MembershipParams groups dependencies for the MembershipManager.
type MembershipParams struct {
	Logger    *slog.Logger
	Repo      Repository
	Users     users.Repository
	Perms     rbac.PermissionChecker
	Tx        shared.TxRunner
	Redis     *redis.Client
	InviteTTL time.Duration
}

// NewMembershipManager constructs a MembershipManager.
func NewMembershipManager(p MembershipParams) *MembershipManager {
	ttl := p.InviteTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MembershipManager{
		logger:    p.Logger,
		repo:      p.Repo,
		users:     p.Users,
		perms:     p.Perms,
		tx:        p.Tx,
		redis:     p.Redis,
		inviteTTL: ttl,
	}
}

// AddUserToTeam places a teamless user on the team.
func (m *MembershipManager) AddUserToTeam(ctx context.Context, actorUUID, teamUUID, userUUID uuid.UUID) error {
	return m.tx.WithTx(ctx, func(ctx context.Context) error {
		actor, team, err := m.loadActorAndTeam(ctx, actorUUID, teamUUID)
		if err != nil {
			return err
		}
		if !m.perms.CanManageTeamMembers(actor.Subject(), team.Ref()) {
			return shared.ErrPermissionDenied
		}
		return m.attach(ctx, userUUID, teamUUID)
	})
}

// RemoveUserFromTeam detaches a member. The owner can never be removed;
// ownership has to move first.
func (m *MembershipManager) RemoveUserFromTeam(ctx context.Context, actorUUID, teamUUID, userUUID uuid.UUID) error {
	return m.tx.WithTx(ctx, func(ctx context.Context) error {
		actor, team, err := m.loadActorAndTeam(ctx, actorUUID, teamUUID)
		if err != nil {
			return err
		}
		if !m.perms.CanManageTeamMembers(actor.Subject(), team.Ref()) {
			return shared.ErrPermissionDenied
		}
		if userUUID == team.OwnerUUID {
			return fmt.Errorf("%w: team owner cannot be removed, transfer ownership first", shared.ErrValidation)
		}
		user, err := m.users.GetByUUID(ctx, userUUID)
		if err != nil {
			return fmt.Errorf("load member: %w", err)
		}
		if user.TeamUUID == nil || *user.TeamUUID != teamUUID {
			return fmt.Errorf("%w: user is not a member of this team", shared.ErrValidation)
		}
		user.TeamUUID = nil
		return m.users.Update(ctx, user)
	})
}

// TransferOwnership hands the team to a new owner. The new owner is pulled
// onto the team if they are not already a member.
func (m *MembershipManager) TransferOwnership(ctx context.Context, actorUUID, teamUUID, newOwnerUUID uuid.UUID) error {
	err := m.tx.WithTx(ctx, func(ctx context.Context) error {
		actor, team, err := m.loadActorAndTeam(ctx, actorUUID, teamUUID)
		if err != nil {
			return err
		}
		if !m.perms.CanManageTeamMembers(actor.Subject(), team.Ref()) {
			return shared.ErrPermissionDenied
		}
		newOwner, err := m.users.GetByUUID(ctx, newOwnerUUID)
		if err != nil {
			return fmt.Errorf("load new owner: %w", err)
		}
		if newOwner.TeamUUID != nil && *newOwner.TeamUUID != teamUUID {
			return fmt.Errorf("%w: new owner belongs to another team", shared.ErrValidation)
		}
		if newOwner.TeamUUID == nil {
			newOwner.TeamUUID = &team.UUID
			if err := m.users.Update(ctx, newOwner); err != nil {
				return err
			}
		}
		team.OwnerUUID = newOwnerUUID
		return m.repo.Update(ctx, team)
	})
	if err != nil {
		return err
	}
	m.logger.Info("team ownership transferred",
		slog.String("team", teamUUID.String()),
		slog.String("new_owner", newOwnerUUID.String()),
	)
	return nil
}

// GenerateInviteCode mints a single-use invite code for the team. The code
// lives in Redis with a TTL and is consumed on join.
func (m *MembershipManager) GenerateInviteCode(ctx context.Context, actorUUID, teamUUID uuid.UUID) (string, error) {
	actor, team, err := m.loadActorAndTeam(ctx, actorUUID, teamUUID)
	if err != nil {
		return "", err
	}
	if !m.perms.CanManageTeamMembers(actor.Subject(), team.Ref()) {
		return "", shared.ErrPermissionDenied
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate invite code: %w", err)
	}
	code := base64.RawURLEncoding.EncodeToString(buf)

	if err := m.redis.Set(ctx, inviteKeyPrefix+code, teamUUID.String(), m.inviteTTL).Err(); err != nil {
		return "", fmt.Errorf("store invite code: %w", err)
	}
	return code, nil
}

// JoinTeamByCode consumes an invite code and attaches the caller to the
// team it points at. The GETDEL makes the code single-use even under
// concurrent joins: only one caller sees a value.
func (m *MembershipManager) JoinTeamByCode(ctx context.Context, userUUID uuid.UUID, code string) (*Team, error) {
	raw, err := m.redis.GetDel(ctx, inviteKeyPrefix+code).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: invalid or expired invite code", shared.ErrValidation)
		}
		return nil, fmt.Errorf("consume invite code: %w", err)
	}
	teamUUID, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid or expired invite code", shared.ErrValidation)
	}

	var joined *Team
	err = m.tx.WithTx(ctx, func(ctx context.Context) error {
		team, err := m.repo.GetByUUID(ctx, teamUUID)
		if err != nil {
			return err
		}
		if err := m.attach(ctx, userUUID, teamUUID); err != nil {
			return err
		}
		joined = team
		return nil
	})
	if err != nil {
		return nil, err
	}
	return joined, nil
}

func (m *MembershipManager) loadActorAndTeam(ctx context.Context, actorUUID, teamUUID uuid.UUID) (*users.User, *Team, error) {
	actor, err := m.users.GetByUUID(ctx, actorUUID)
	if err != nil {
		return nil, nil, fmt.Errorf("load actor: %w", err)
	}
	team, err := m.repo.GetByUUID(ctx, teamUUID)
	if err != nil {
		return nil, nil, err
	}
	return actor, team, nil
}

func (m *MembershipManager) attach(ctx context.Context, userUUID, teamUUID uuid.UUID) error {
	user, err := m.users.GetByUUID(ctx, userUUID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user.TeamUUID != nil {
		if *user.TeamUUID == teamUUID {
			return fmt.Errorf("%w: user is already a member of this team", shared.ErrValidation)
		}
		return fmt.Errorf("%w: user already belongs to another team", shared.ErrValidation)
	}
	user.TeamUUID = &teamUUID
	return m.users.Update(ctx, user)
}
