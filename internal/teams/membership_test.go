package teams

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleksGin/business-manager/internal/rbac"
	"github.com/AleksGin/business-manager/internal/shared"
)

type membershipFixture struct {
	*teamFixture
	mgr   *MembershipManager
	redis *miniredis.Miniredis
}

func newMembershipFixture(t *testing.T) *membershipFixture {
	t.Helper()
	base := newTeamFixture()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mgr := NewMembershipManager(MembershipParams{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Repo:      base.repo,
		Users:     base.userRepo,
		Perms:     rbac.NewValidator(),
		Tx:        noopTx{},
		Redis:     client,
		InviteTTL: time.Hour,
	})
	return &membershipFixture{teamFixture: base, mgr: mgr, redis: mr}
}

func TestAddUserToTeam(t *testing.T) {
	f := newMembershipFixture(t)
	owner := f.seedUser(rbac.RoleManager, nil)
	team := f.seedTeam(owner)
	newcomer := f.seedUser(rbac.RoleEmployee, nil)

	require.NoError(t, f.mgr.AddUserToTeam(context.Background(), owner.UUID, team.UUID, newcomer.UUID))
	stored := f.userRepo.users[newcomer.UUID]
	require.NotNil(t, stored.TeamUUID)
	assert.Equal(t, team.UUID, *stored.TeamUUID)
}

func TestAddUserToTeamByNonOwnerDenied(t *testing.T) {
	f := newMembershipFixture(t)
	owner := f.seedUser(rbac.RoleManager, nil)
	team := f.seedTeam(owner)
	member := f.seedUser(rbac.RoleEmployee, &team.UUID)
	newcomer := f.seedUser(rbac.RoleEmployee, nil)

	err := f.mgr.AddUserToTeam(context.Background(), member.UUID, team.UUID, newcomer.UUID)
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestAddUserAlreadyOnAnotherTeam(t *testing.T) {
	f := newMembershipFixture(t)
	owner := f.seedUser(rbac.RoleManager, nil)
	team := f.seedTeam(owner)
	otherTeam := uuid.New()
	taken := f.seedUser(rbac.RoleEmployee, &otherTeam)

	err := f.mgr.AddUserToTeam(context.Background(), owner.UUID, team.UUID, taken.UUID)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestRemoveUserFromTeam(t *testing.T) {
	f := newMembershipFixture(t)
	owner := f.seedUser(rbac.RoleManager, nil)
	team := f.seedTeam(owner)
	member := f.seedUser(rbac.RoleEmployee, &team.UUID)

	require.NoError(t, f.mgr.RemoveUserFromTeam(context.Background(), owner.UUID, team.UUID, member.UUID))
	assert.Nil(t, f.userRepo.users[member.UUID].TeamUUID)
}

func TestRemoveOwnerRejected(t *testing.T) {
	f := newMembershipFixture(t)
	owner := f.seedUser(rbac.RoleManager, nil)
	team := f.seedTeam(owner)

	err := f.mgr.RemoveUserFromTeam(context.Background(), owner.UUID, team.UUID, owner.UUID)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestTransferOwnership(t *testing.T) {
	f := newMembershipFixture(t)
	owner := f.seedUser(rbac.RoleManager, nil)
	team := f.seedTeam(owner)
	successor := f.seedUser(rbac.RoleEmployee, nil)

	require.NoError(t, f.mgr.TransferOwnership(context.Background(), owner.UUID, team.UUID, successor.UUID))

	stored := f.repo.teams[team.UUID]
	assert.Equal(t, successor.UUID, stored.OwnerUUID)
	// new owner is pulled onto the team
	require.NotNil(t, f.userRepo.users[successor.UUID].TeamUUID)
	assert.Equal(t, team.UUID, *f.userRepo.users[successor.UUID].TeamUUID)
}

func TestTransferOwnershipToForeignMemberRejected(t *testing.T) {
	f := newMembershipFixture(t)
	owner := f.seedUser(rbac.RoleManager, nil)
	team := f.seedTeam(owner)
	otherTeam := uuid.New()
	foreign := f.seedUser(rbac.RoleEmployee, &otherTeam)

	err := f.mgr.TransferOwnership(context.Background(), owner.UUID, team.UUID, foreign.UUID)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestInviteCodeRoundTrip(t *testing.T) {
	f := newMembershipFixture(t)
	owner := f.seedUser(rbac.RoleManager, nil)
	team := f.seedTeam(owner)
	joiner := f.seedUser(rbac.RoleEmployee, nil)

	code, err := f.mgr.GenerateInviteCode(context.Background(), owner.UUID, team.UUID)
	require.NoError(t, err)
	require.NotEmpty(t, code)

	joined, err := f.mgr.JoinTeamByCode(context.Background(), joiner.UUID, code)
	require.NoError(t, err)
	assert.Equal(t, team.UUID, joined.UUID)
	require.NotNil(t, f.userRepo.users[joiner.UUID].TeamUUID)
	assert.Equal(t, team.UUID, *f.userRepo.users[joiner.UUID].TeamUUID)
}

func TestInviteCodeSingleUse(t *testing.T) {
	f := newMembershipFixture(t)
	owner := f.seedUser(rbac.RoleManager, nil)
	team := f.seedTeam(owner)
	first := f.seedUser(rbac.RoleEmployee, nil)
	second := f.seedUser(rbac.RoleEmployee, nil)

	code, err := f.mgr.GenerateInviteCode(context.Background(), owner.UUID, team.UUID)
	require.NoError(t, err)

	_, err = f.mgr.JoinTeamByCode(context.Background(), first.UUID, code)
	require.NoError(t, err)

	_, err = f.mgr.JoinTeamByCode(context.Background(), second.UUID, code)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestInviteCodeExpires(t *testing.T) {
	f := newMembershipFixture(t)
	owner := f.seedUser(rbac.RoleManager, nil)
	team := f.seedTeam(owner)
	joiner := f.seedUser(rbac.RoleEmployee, nil)

	code, err := f.mgr.GenerateInviteCode(context.Background(), owner.UUID, team.UUID)
	require.NoError(t, err)

	f.redis.FastForward(2 * time.Hour)

	_, err = f.mgr.JoinTeamByCode(context.Background(), joiner.UUID, code)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestInviteCodeGenerationDeniedForMember(t *testing.T) {
	f := newMembershipFixture(t)
	owner := f.seedUser(rbac.RoleManager, nil)
	team := f.seedTeam(owner)
	member := f.seedUser(rbac.RoleEmployee, &team.UUID)

	_, err := f.mgr.GenerateInviteCode(context.Background(), member.UUID, team.UUID)
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)
}
