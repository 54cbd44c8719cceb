package rbac

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func subject(role Role, team *uuid.UUID) Subject {
	return Subject{UUID: uuid.New(), Role: role, TeamUUID: team}
}

func teamPtr(id uuid.UUID) *uuid.UUID {
	return &id
}

func TestCanViewUser(t *testing.T) {
	v := NewValidator()
	teamA := uuid.New()
	teamB := uuid.New()

	admin := subject(RoleAdmin, nil)
	manager := subject(RoleManager, teamPtr(teamA))
	e1 := subject(RoleEmployee, teamPtr(teamA))
	e2 := subject(RoleEmployee, teamPtr(teamB))
	e3 := subject(RoleEmployee, teamPtr(teamA))
	loner := subject(RoleEmployee, nil)

	assert.True(t, v.CanViewUser(admin, e1))
	assert.True(t, v.CanViewUser(admin, manager))
	assert.True(t, v.CanViewUser(manager, e2), "managers may view any user")
	assert.True(t, v.CanViewUser(e1, e1), "self view")
	assert.True(t, v.CanViewUser(e1, e3), "same team")
	assert.False(t, v.CanViewUser(e1, e2), "different team")
	assert.False(t, v.CanViewUser(loner, e1), "no team on actor")
	assert.False(t, v.CanViewUser(e1, loner), "no team on target")
}

func TestCanUpdateUser(t *testing.T) {
	v := NewValidator()
	teamA := uuid.New()
	teamB := uuid.New()

	admin := subject(RoleAdmin, nil)
	manager := subject(RoleManager, teamPtr(teamA))
	e1 := subject(RoleEmployee, teamPtr(teamA))
	e2 := subject(RoleEmployee, teamPtr(teamB))

	assert.True(t, v.CanUpdateUser(admin, e2))
	assert.True(t, v.CanUpdateUser(e1, e1))
	assert.True(t, v.CanUpdateUser(manager, e1), "manager within own team")
	assert.False(t, v.CanUpdateUser(manager, e2), "manager outside own team")
	assert.False(t, v.CanUpdateUser(e1, e2))
}

func TestCanDeleteUser(t *testing.T) {
	v := NewValidator()
	admin := subject(RoleAdmin, nil)
	manager := subject(RoleManager, nil)
	employee := subject(RoleEmployee, nil)

	assert.True(t, v.CanDeleteUser(admin, employee))
	assert.False(t, v.CanDeleteUser(admin, admin), "admin cannot delete themself")
	assert.False(t, v.CanDeleteUser(manager, employee))
	assert.False(t, v.CanDeleteUser(employee, employee))
}

func TestCanAssignRole(t *testing.T) {
	teamA := uuid.New()
	teamB := uuid.New()

	admin := subject(RoleAdmin, nil)
	manager := subject(RoleManager, teamPtr(teamA))
	employee := subject(RoleEmployee, teamPtr(teamA))
	teammate := subject(RoleEmployee, teamPtr(teamA))
	outsider := subject(RoleEmployee, teamPtr(teamB))

	v := NewValidator()

	cases := []struct {
		name    string
		actor   Subject
		target  Subject
		newRole Role
		want    bool
	}{
		{"admin assigns employee", admin, outsider, RoleEmployee, true},
		{"admin assigns manager", admin, outsider, RoleManager, true},
		{"admin assigns admin", admin, outsider, RoleAdmin, true},
		{"manager assigns teammate employee", manager, teammate, RoleEmployee, true},
		{"manager promotes teammate to manager", manager, teammate, RoleManager, true},
		{"manager assigns admin", manager, teammate, RoleAdmin, false},
		{"manager outside own team", manager, outsider, RoleEmployee, false},
		{"manager promotes outsider to manager", manager, outsider, RoleManager, false},
		{"employee assigns anything", employee, teammate, RoleEmployee, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, v.CanAssignRole(tc.actor, tc.target, tc.newRole))
		})
	}
}

func TestManagerNeverAssignsAdmin(t *testing.T) {
	v := NewValidator()
	team := uuid.New()
	manager := subject(RoleManager, teamPtr(team))

	for _, target := range []Subject{
		subject(RoleEmployee, teamPtr(team)),
		subject(RoleManager, teamPtr(team)),
		subject(RoleEmployee, nil),
		manager,
	} {
		assert.False(t, v.CanAssignRole(manager, target, RoleAdmin))
	}
}

func TestTeamCapabilities(t *testing.T) {
	v := NewValidator()
	owner := subject(RoleManager, nil)
	team := TeamRef{UUID: uuid.New(), OwnerUUID: owner.UUID}
	admin := subject(RoleAdmin, nil)
	stranger := subject(RoleManager, nil)

	assert.True(t, v.CanCreateTeam(owner))
	assert.True(t, v.CanCreateTeam(admin))
	assert.False(t, v.CanCreateTeam(subject(RoleEmployee, nil)))

	assert.True(t, v.CanViewTeam(owner, team))
	assert.True(t, v.CanUpdateTeam(admin, team))
	assert.True(t, v.CanDeleteTeam(owner, team))
	assert.True(t, v.CanManageTeamMembers(owner, team))
	assert.False(t, v.CanViewTeam(stranger, team))
	assert.False(t, v.CanUpdateTeam(stranger, team))
	assert.False(t, v.CanManageTeamMembers(stranger, team))
}

func TestTaskCapabilities(t *testing.T) {
	v := NewValidator()
	teamID := uuid.New()
	team := TeamRef{UUID: teamID, OwnerUUID: uuid.New()}

	admin := subject(RoleAdmin, nil)
	manager := subject(RoleManager, teamPtr(teamID))
	creator := subject(RoleEmployee, teamPtr(teamID))
	assignee := subject(RoleEmployee, teamPtr(teamID))
	outsider := subject(RoleEmployee, nil)

	task := TaskRef{
		UUID:         uuid.New(),
		TeamUUID:     teamID,
		CreatorUUID:  creator.UUID,
		AssigneeUUID: &assignee.UUID,
	}

	assert.True(t, v.CanCreateTask(admin, team))
	assert.True(t, v.CanCreateTask(manager, team))
	assert.False(t, v.CanCreateTask(creator, team), "employees cannot create tasks")
	assert.False(t, v.CanCreateTask(subject(RoleManager, nil), team), "manager of no team")

	assert.True(t, v.CanViewTask(admin, task))
	assert.True(t, v.CanViewTask(creator, task))
	assert.True(t, v.CanViewTask(assignee, task))
	assert.True(t, v.CanViewTask(manager, task), "teammate view")
	assert.False(t, v.CanViewTask(outsider, task))

	assert.True(t, v.CanDeleteTask(creator, task))
	assert.True(t, v.CanDeleteTask(admin, task))
	assert.False(t, v.CanDeleteTask(assignee, task))

	assert.True(t, v.CanAssignTask(manager, task))
	assert.True(t, v.CanAssignTask(admin, task))
	assert.False(t, v.CanAssignTask(creator, task))

	assert.True(t, v.CanChangeTaskStatus(creator, task))
	assert.True(t, v.CanChangeTaskStatus(assignee, task))
	assert.True(t, v.CanChangeTaskStatus(admin, task))
	assert.False(t, v.CanChangeTaskStatus(manager, task))
}

func TestEvaluationCapabilities(t *testing.T) {
	v := NewValidator()
	evaluator := subject(RoleManager, nil)
	evaluated := subject(RoleEmployee, nil)
	admin := subject(RoleAdmin, nil)

	eval := EvaluationRef{
		UUID:          uuid.New(),
		TaskUUID:      uuid.New(),
		TeamUUID:      uuid.New(),
		EvaluatorUUID: evaluator.UUID,
		EvaluatedUUID: evaluated.UUID,
	}

	assert.True(t, v.CanCreateEvaluation(admin, eval))
	assert.True(t, v.CanCreateEvaluation(evaluator, eval))
	assert.False(t, v.CanCreateEvaluation(evaluated, eval), "evaluated user alone never qualifies")

	// Self-evaluation is rejected even for the designated evaluator.
	selfEval := eval
	selfEval.EvaluatedUUID = evaluator.UUID
	assert.False(t, v.CanCreateEvaluation(evaluator, selfEval))

	assert.True(t, v.CanViewEvaluation(evaluator, eval))
	assert.True(t, v.CanUpdateEvaluation(evaluator, eval))
	assert.False(t, v.CanViewEvaluation(evaluated, eval))
}

func TestMembershipChecks(t *testing.T) {
	v := NewValidator()
	teamID := uuid.New()
	team := TeamRef{UUID: teamID, OwnerUUID: uuid.New()}

	member := subject(RoleEmployee, teamPtr(teamID))
	manager := subject(RoleManager, teamPtr(teamID))
	admin := subject(RoleAdmin, nil)

	assert.True(t, v.IsSystemAdmin(admin))
	assert.False(t, v.IsSystemAdmin(manager))

	assert.True(t, v.IsTeamManager(manager, team))
	assert.False(t, v.IsTeamManager(member, team))
	assert.False(t, v.IsTeamManager(subject(RoleManager, nil), team))

	assert.True(t, v.IsTeamMember(member, team))
	assert.False(t, v.IsTeamMember(admin, team))
}

func TestAdminAlwaysViewsAndUpdates(t *testing.T) {
	v := NewValidator()
	admin := subject(RoleAdmin, nil)

	targets := []Subject{
		subject(RoleEmployee, nil),
		subject(RoleManager, teamPtr(uuid.New())),
		subject(RoleAdmin, nil),
		admin,
	}
	for _, target := range targets {
		assert.True(t, v.CanViewUser(admin, target))
		assert.True(t, v.CanUpdateUser(admin, target))
	}
	assert.False(t, v.CanDeleteUser(admin, admin))
}

func TestCanCreateMeeting(t *testing.T) {
	v := NewValidator()
	teamUUID := uuid.New()
	team := TeamRef{UUID: teamUUID, OwnerUUID: uuid.New()}

	manager := Subject{UUID: uuid.New(), Role: RoleManager, TeamUUID: &teamUUID}
	assert.True(t, v.CanCreateMeeting(manager, team))

	foreignManager := Subject{UUID: uuid.New(), Role: RoleManager}
	assert.False(t, v.CanCreateMeeting(foreignManager, team))

	admin := Subject{UUID: uuid.New(), Role: RoleAdmin}
	assert.True(t, v.CanCreateMeeting(admin, team))
}

func TestCanViewMeeting(t *testing.T) {
	v := NewValidator()
	teamUUID := uuid.New()
	creator := Subject{UUID: uuid.New(), Role: RoleManager, TeamUUID: &teamUUID}
	participant := Subject{UUID: uuid.New(), Role: RoleEmployee}
	teammate := Subject{UUID: uuid.New(), Role: RoleEmployee, TeamUUID: &teamUUID}
	stranger := Subject{UUID: uuid.New(), Role: RoleEmployee}

	meeting := MeetingRef{
		UUID:         uuid.New(),
		TeamUUID:     teamUUID,
		CreatorUUID:  creator.UUID,
		Participants: []uuid.UUID{participant.UUID},
	}

	assert.True(t, v.CanViewMeeting(creator, meeting))
	assert.True(t, v.CanViewMeeting(participant, meeting))
	assert.True(t, v.CanViewMeeting(teammate, meeting))
	assert.False(t, v.CanViewMeeting(stranger, meeting))
}

func TestCanDeleteMeetingCreatorOnly(t *testing.T) {
	v := NewValidator()
	teamUUID := uuid.New()
	creator := Subject{UUID: uuid.New(), Role: RoleManager, TeamUUID: &teamUUID}
	teammate := Subject{UUID: uuid.New(), Role: RoleEmployee, TeamUUID: &teamUUID}

	meeting := MeetingRef{UUID: uuid.New(), TeamUUID: teamUUID, CreatorUUID: creator.UUID}

	assert.True(t, v.CanDeleteMeeting(creator, meeting))
	assert.False(t, v.CanDeleteMeeting(teammate, meeting))
	assert.True(t, v.CanDeleteMeeting(Subject{UUID: uuid.New(), Role: RoleAdmin}, meeting))
}
