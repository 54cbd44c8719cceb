package rbac

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAllowAllGrantsWhatTheValidatorDenies(t *testing.T) {
	strict := NewValidator()
	open := AllowAll{}

	employee := subject(RoleEmployee, nil)
	stranger := subject(RoleEmployee, nil)
	team := TeamRef{UUID: uuid.New(), OwnerUUID: uuid.New()}
	task := TaskRef{UUID: uuid.New(), TeamUUID: team.UUID, CreatorUUID: uuid.New()}

	assert.False(t, strict.CanDeleteUser(employee, stranger))
	assert.True(t, open.CanDeleteUser(employee, stranger))

	assert.False(t, strict.CanAssignRole(employee, stranger, RoleAdmin))
	assert.True(t, open.CanAssignRole(employee, stranger, RoleAdmin))

	assert.False(t, strict.CanCreateTeam(employee))
	assert.True(t, open.CanCreateTeam(employee))

	assert.False(t, strict.CanDeleteTask(employee, task))
	assert.True(t, open.CanDeleteTask(employee, task))

	assert.True(t, open.IsSystemAdmin(employee))
}

func TestOwnerOnlySelfAndOwnership(t *testing.T) {
	v := OwnerOnly{}

	owner := subject(RoleEmployee, nil)
	other := subject(RoleEmployee, nil)
	team := TeamRef{UUID: uuid.New(), OwnerUUID: owner.UUID}

	assert.True(t, v.CanViewUser(owner, owner))
	assert.False(t, v.CanViewUser(owner, other))
	assert.True(t, v.CanUpdateUser(owner, owner))
	assert.False(t, v.CanUpdateUser(other, owner))

	assert.True(t, v.CanViewTeam(owner, team))
	assert.True(t, v.CanDeleteTeam(owner, team))
	assert.False(t, v.CanViewTeam(other, team))
	assert.False(t, v.CanManageTeamMembers(other, team))
}

func TestOwnerOnlyRoleCapabilitiesFailClosed(t *testing.T) {
	v := OwnerOnly{}
	admin := subject(RoleAdmin, nil)
	_ = TeamRef{UUID: uuid.New(), OwnerUUID: uuid.New()}

	assert.False(t, v.IsSystemAdmin(admin), "roles never grant anything here")
	assert.False(t, v.CanAssignRole(admin, subject(RoleEmployee, nil), RoleManager))
	assert.False(t, v.CanCreateTeam(admin))
	assert.False(t, v.CanViewUsersWithoutTeam(admin))
	assert.False(t, v.CanDeleteUser(admin, subject(RoleEmployee, nil)))
}

func TestOwnerOnlyTaskAndMeetingOwnership(t *testing.T) {
	v := OwnerOnly{}
	creator := subject(RoleEmployee, nil)
	assignee := subject(RoleEmployee, nil)
	stranger := subject(RoleEmployee, nil)

	task := TaskRef{
		UUID:         uuid.New(),
		TeamUUID:     uuid.New(),
		CreatorUUID:  creator.UUID,
		AssigneeUUID: &assignee.UUID,
	}
	assert.True(t, v.CanViewTask(creator, task))
	assert.True(t, v.CanViewTask(assignee, task))
	assert.False(t, v.CanViewTask(stranger, task))
	assert.True(t, v.CanChangeTaskStatus(assignee, task))
	assert.True(t, v.CanDeleteTask(creator, task))
	assert.False(t, v.CanDeleteTask(assignee, task))

	meeting := MeetingRef{
		UUID:         uuid.New(),
		TeamUUID:     task.TeamUUID,
		CreatorUUID:  creator.UUID,
		Participants: []uuid.UUID{assignee.UUID},
	}
	assert.True(t, v.CanViewMeeting(assignee, meeting))
	assert.True(t, v.CanDeleteMeeting(creator, meeting))
	assert.False(t, v.CanDeleteMeeting(assignee, meeting))
}
