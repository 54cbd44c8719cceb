package rbac

// PermissionChecker is the decision contract interactors depend on. Every
// method is a pure function of the facts passed in: no I/O, no hidden state,
// and "no access" is reported as false, never as an error.
type PermissionChecker interface {
	CanViewUser(actor, target Subject) bool
	CanUpdateUser(actor, target Subject) bool
	CanDeleteUser(actor, target Subject) bool
	CanAssignRole(actor, target Subject, newRole Role) bool
	CanViewUsersWithoutTeam(actor Subject) bool

	CanCreateTeam(actor Subject) bool
	CanViewTeam(actor Subject, team TeamRef) bool
	CanUpdateTeam(actor Subject, team TeamRef) bool
	CanDeleteTeam(actor Subject, team TeamRef) bool
	CanManageTeamMembers(actor Subject, team TeamRef) bool

	CanCreateTask(actor Subject, team TeamRef) bool
	CanViewTask(actor Subject, task TaskRef) bool
	CanDeleteTask(actor Subject, task TaskRef) bool
	CanAssignTask(actor Subject, task TaskRef) bool
	CanChangeTaskStatus(actor Subject, task TaskRef) bool

	CanCreateMeeting(actor Subject, team TeamRef) bool
	CanViewMeeting(actor Subject, meeting MeetingRef) bool
	CanDeleteMeeting(actor Subject, meeting MeetingRef) bool
	CanManageMeetingParticipants(actor Subject, meeting MeetingRef) bool

	CanCreateEvaluation(actor Subject, eval EvaluationRef) bool
	CanViewEvaluation(actor Subject, eval EvaluationRef) bool
	CanUpdateEvaluation(actor Subject, eval EvaluationRef) bool

	IsSystemAdmin(actor Subject) bool
	IsTeamManager(actor Subject, team TeamRef) bool
	IsTeamMember(actor Subject, team TeamRef) bool
}

// Validator is the production rule set.
type Validator struct{}

// NewValidator constructs the production permission validator.
func NewValidator() Validator {
	return Validator{}
}

var _ PermissionChecker = Validator{}

// CanViewUser allows admins and managers to view anyone, users to view
// themselves, and teammates to view each other.
func (Validator) CanViewUser(actor, target Subject) bool {
	if actor.Role == RoleAdmin || actor.Role == RoleManager {
		return true
	}
	if actor.UUID == target.UUID {
		return true
	}
	return sameTeam(actor, target)
}

// CanUpdateUser allows admins to update anyone, users to update themselves,
// and managers to update members of their own team.
func (Validator) CanUpdateUser(actor, target Subject) bool {
	if actor.Role == RoleAdmin {
		return true
	}
	if actor.UUID == target.UUID {
		return true
	}
	return actor.Role == RoleManager && sameTeam(actor, target)
}

// CanDeleteUser allows only admins, and never on themselves.
func (Validator) CanDeleteUser(actor, target Subject) bool {
	return actor.Role == RoleAdmin && actor.UUID != target.UUID
}

// CanAssignRole checks the role hierarchy, then narrows managers to their
// own team. A manager can never hand out ADMIN.
func (Validator) CanAssignRole(actor, target Subject, newRole Role) bool {
	if !canAssign(actor.Role, newRole) {
		return false
	}
	if actor.Role == RoleManager {
		if newRole == RoleAdmin {
			return false
		}
		return sameTeam(actor, target)
	}
	return actor.Role == RoleAdmin
}

// CanViewUsersWithoutTeam lets managers and admins browse the unassigned pool.
func (Validator) CanViewUsersWithoutTeam(actor Subject) bool {
	return actor.Role == RoleManager || actor.Role == RoleAdmin
}

// CanCreateTeam lets managers and admins create teams.
func (Validator) CanCreateTeam(actor Subject) bool {
	return actor.Role == RoleManager || actor.Role == RoleAdmin
}

// CanViewTeam allows admins and the team owner.
func (Validator) CanViewTeam(actor Subject, team TeamRef) bool {
	return actor.Role == RoleAdmin || actor.UUID == team.OwnerUUID
}

// CanUpdateTeam allows admins and the team owner.
func (Validator) CanUpdateTeam(actor Subject, team TeamRef) bool {
	return actor.Role == RoleAdmin || actor.UUID == team.OwnerUUID
}

// CanDeleteTeam allows admins and the team owner.
func (Validator) CanDeleteTeam(actor Subject, team TeamRef) bool {
	return actor.Role == RoleAdmin || actor.UUID == team.OwnerUUID
}

// CanManageTeamMembers gates adding and removing members.
func (Validator) CanManageTeamMembers(actor Subject, team TeamRef) bool {
	return actor.Role == RoleAdmin || actor.UUID == team.OwnerUUID
}

// CanCreateTask allows admins anywhere, and managers within their own team.
func (Validator) CanCreateTask(actor Subject, team TeamRef) bool {
	if actor.Role == RoleAdmin {
		return true
	}
	return actor.InTeam(team.UUID) && actor.Role == RoleManager
}

// CanViewTask allows admins, the creator, the assignee, and teammates.
func (Validator) CanViewTask(actor Subject, task TaskRef) bool {
	if actor.Role == RoleAdmin {
		return true
	}
	if actor.UUID == task.CreatorUUID {
		return true
	}
	if task.AssigneeUUID != nil && actor.UUID == *task.AssigneeUUID {
		return true
	}
	return actor.InTeam(task.TeamUUID)
}

// CanDeleteTask allows admins and the creator.
func (Validator) CanDeleteTask(actor Subject, task TaskRef) bool {
	return actor.Role == RoleAdmin || actor.UUID == task.CreatorUUID
}

// CanAssignTask allows admins, and managers within the task's team.
func (Validator) CanAssignTask(actor Subject, task TaskRef) bool {
	if actor.Role == RoleAdmin {
		return true
	}
	return actor.InTeam(task.TeamUUID) && actor.Role == RoleManager
}

// CanChangeTaskStatus allows the creator, the assignee and admins.
func (Validator) CanChangeTaskStatus(actor Subject, task TaskRef) bool {
	if actor.Role == RoleAdmin {
		return true
	}
	if actor.UUID == task.CreatorUUID {
		return true
	}
	return task.AssigneeUUID != nil && actor.UUID == *task.AssigneeUUID
}

// CanCreateMeeting follows the task-creation rule: admins anywhere,
// managers within their own team.
func (v Validator) CanCreateMeeting(actor Subject, team TeamRef) bool {
	return v.CanCreateTask(actor, team)
}

// CanViewMeeting allows admins, the creator, participants, and teammates.
func (Validator) CanViewMeeting(actor Subject, meeting MeetingRef) bool {
	if actor.Role == RoleAdmin {
		return true
	}
	if actor.UUID == meeting.CreatorUUID || meeting.HasParticipant(actor.UUID) {
		return true
	}
	return actor.InTeam(meeting.TeamUUID)
}

// CanDeleteMeeting allows admins and the creator.
func (Validator) CanDeleteMeeting(actor Subject, meeting MeetingRef) bool {
	return actor.Role == RoleAdmin || actor.UUID == meeting.CreatorUUID
}

// CanManageMeetingParticipants allows admins and the creator.
func (Validator) CanManageMeetingParticipants(actor Subject, meeting MeetingRef) bool {
	return actor.Role == RoleAdmin || actor.UUID == meeting.CreatorUUID
}

// CanCreateEvaluation allows admins and the designated evaluator. The
// evaluated user alone can never create their own evaluation.
func (Validator) CanCreateEvaluation(actor Subject, eval EvaluationRef) bool {
	if actor.Role == RoleAdmin {
		return true
	}
	return actor.UUID == eval.EvaluatorUUID && actor.UUID != eval.EvaluatedUUID
}

// CanViewEvaluation follows the same rule as creation.
func (v Validator) CanViewEvaluation(actor Subject, eval EvaluationRef) bool {
	return v.CanCreateEvaluation(actor, eval)
}

// CanUpdateEvaluation follows the same rule as creation.
func (v Validator) CanUpdateEvaluation(actor Subject, eval EvaluationRef) bool {
	return v.CanCreateEvaluation(actor, eval)
}

// IsSystemAdmin reports whether the actor holds the ADMIN role.
func (Validator) IsSystemAdmin(actor Subject) bool {
	return actor.Role == RoleAdmin
}

// IsTeamManager reports whether the actor manages the given team.
func (Validator) IsTeamManager(actor Subject, team TeamRef) bool {
	return actor.Role == RoleManager && actor.InTeam(team.UUID)
}

// IsTeamMember reports whether the actor belongs to the given team.
func (Validator) IsTeamMember(actor Subject, team TeamRef) bool {
	return actor.InTeam(team.UUID)
}
