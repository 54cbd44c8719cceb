package rbac

// AllowAll grants every capability. It is the composition-time stand-in for
// trusted internal tooling that runs without an authenticated actor; never
// wired into the HTTP composition.
type AllowAll struct{}

var _ PermissionChecker = AllowAll{}

func (AllowAll) CanViewUser(_, _ Subject) bool                    { return true }
func (AllowAll) CanUpdateUser(_, _ Subject) bool                  { return true }
func (AllowAll) CanDeleteUser(_, _ Subject) bool                  { return true }
func (AllowAll) CanAssignRole(_, _ Subject, _ Role) bool          { return true }
func (AllowAll) CanViewUsersWithoutTeam(_ Subject) bool           { return true }
func (AllowAll) CanCreateTeam(_ Subject) bool                     { return true }
func (AllowAll) CanViewTeam(_ Subject, _ TeamRef) bool            { return true }
func (AllowAll) CanUpdateTeam(_ Subject, _ TeamRef) bool          { return true }
func (AllowAll) CanDeleteTeam(_ Subject, _ TeamRef) bool          { return true }
func (AllowAll) CanManageTeamMembers(_ Subject, _ TeamRef) bool   { return true }
func (AllowAll) CanCreateTask(_ Subject, _ TeamRef) bool          { return true }
func (AllowAll) CanViewTask(_ Subject, _ TaskRef) bool            { return true }
func (AllowAll) CanDeleteTask(_ Subject, _ TaskRef) bool          { return true }
func (AllowAll) CanAssignTask(_ Subject, _ TaskRef) bool          { return true }
func (AllowAll) CanChangeTaskStatus(_ Subject, _ TaskRef) bool    { return true }
func (AllowAll) CanCreateMeeting(_ Subject, _ TeamRef) bool       { return true }
func (AllowAll) CanViewMeeting(_ Subject, _ MeetingRef) bool      { return true }
func (AllowAll) CanDeleteMeeting(_ Subject, _ MeetingRef) bool    { return true }
func (AllowAll) CanManageMeetingParticipants(_ Subject, _ MeetingRef) bool { return true }
func (AllowAll) CanCreateEvaluation(_ Subject, _ EvaluationRef) bool { return true }
func (AllowAll) CanViewEvaluation(_ Subject, _ EvaluationRef) bool   { return true }
func (AllowAll) CanUpdateEvaluation(_ Subject, _ EvaluationRef) bool { return true }
func (AllowAll) IsSystemAdmin(_ Subject) bool                     { return true }
func (AllowAll) IsTeamManager(_ Subject, _ TeamRef) bool          { return true }
func (AllowAll) IsTeamMember(_ Subject, _ TeamRef) bool           { return true }

// OwnerOnly grants only self- and ownership-based access, ignoring roles.
// It is the conservative stand-in wherever a composition cannot supply the
// full rule set; any role-dependent capability fails closed.
type OwnerOnly struct{}

var _ PermissionChecker = OwnerOnly{}

func (OwnerOnly) CanViewUser(actor, target Subject) bool   { return actor.UUID == target.UUID }
func (OwnerOnly) CanUpdateUser(actor, target Subject) bool { return actor.UUID == target.UUID }
func (OwnerOnly) CanDeleteUser(_, _ Subject) bool          { return false }
func (OwnerOnly) CanAssignRole(_, _ Subject, _ Role) bool  { return false }
func (OwnerOnly) CanViewUsersWithoutTeam(_ Subject) bool   { return false }
func (OwnerOnly) CanCreateTeam(_ Subject) bool             { return false }
func (OwnerOnly) CanViewTeam(actor Subject, team TeamRef) bool {
	return actor.UUID == team.OwnerUUID
}
func (OwnerOnly) CanUpdateTeam(actor Subject, team TeamRef) bool {
	return actor.UUID == team.OwnerUUID
}
func (OwnerOnly) CanDeleteTeam(actor Subject, team TeamRef) bool {
	return actor.UUID == team.OwnerUUID
}
func (OwnerOnly) CanManageTeamMembers(actor Subject, team TeamRef) bool {
	return actor.UUID == team.OwnerUUID
}
func (OwnerOnly) CanCreateTask(_ Subject, _ TeamRef) bool { return false }
func (OwnerOnly) CanViewTask(actor Subject, task TaskRef) bool {
	if actor.UUID == task.CreatorUUID {
		return true
	}
	return task.AssigneeUUID != nil && actor.UUID == *task.AssigneeUUID
}
func (OwnerOnly) CanDeleteTask(actor Subject, task TaskRef) bool {
	return actor.UUID == task.CreatorUUID
}
func (OwnerOnly) CanAssignTask(_ Subject, _ TaskRef) bool { return false }
func (o OwnerOnly) CanChangeTaskStatus(actor Subject, task TaskRef) bool {
	return o.CanViewTask(actor, task)
}
func (OwnerOnly) CanCreateMeeting(_ Subject, _ TeamRef) bool { return false }
func (OwnerOnly) CanViewMeeting(actor Subject, meeting MeetingRef) bool {
	return actor.UUID == meeting.CreatorUUID || meeting.HasParticipant(actor.UUID)
}
func (OwnerOnly) CanDeleteMeeting(actor Subject, meeting MeetingRef) bool {
	return actor.UUID == meeting.CreatorUUID
}
func (OwnerOnly) CanManageMeetingParticipants(actor Subject, meeting MeetingRef) bool {
	return actor.UUID == meeting.CreatorUUID
}
func (OwnerOnly) CanCreateEvaluation(actor Subject, eval EvaluationRef) bool {
	return actor.UUID == eval.EvaluatorUUID && actor.UUID != eval.EvaluatedUUID
}
func (o OwnerOnly) CanViewEvaluation(actor Subject, eval EvaluationRef) bool {
	return o.CanCreateEvaluation(actor, eval)
}
func (o OwnerOnly) CanUpdateEvaluation(actor Subject, eval EvaluationRef) bool {
	return o.CanCreateEvaluation(actor, eval)
}
func (OwnerOnly) IsSystemAdmin(_ Subject) bool              { return false }
func (OwnerOnly) IsTeamManager(_ Subject, _ TeamRef) bool   { return false }
func (OwnerOnly) IsTeamMember(actor Subject, team TeamRef) bool {
	return actor.InTeam(team.UUID)
}
