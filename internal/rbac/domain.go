package rbac

import (
	"fmt"

	"github.com/google/uuid"
)

// Role is a system-wide permission level held by a user.
type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleManager  Role = "MANAGER"
	RoleAdmin    Role = "ADMIN"
)

// ParseRole validates a raw role string.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleEmployee, RoleManager, RoleAdmin:
		return Role(raw), nil
	}
	return "", fmt.Errorf("rbac: unknown role %q", raw)
}

// Valid reports whether the role is one of the known levels.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// Subject carries the identity facts the validator inspects for a user,
// whether acting or being acted upon. Callers load these from repositories
// before asking for a decision; the validator itself performs no I/O.
type Subject struct {
	UUID     uuid.UUID
	Role     Role
	TeamUUID *uuid.UUID
}

// InTeam reports whether the subject belongs to the given team.
func (s Subject) InTeam(teamUUID uuid.UUID) bool {
	return s.TeamUUID != nil && *s.TeamUUID == teamUUID
}

// sameTeam reports whether both subjects belong to the same, non-empty team.
func sameTeam(a, b Subject) bool {
	return a.TeamUUID != nil && b.TeamUUID != nil && *a.TeamUUID == *b.TeamUUID
}

// TeamRef carries the team facts needed for ownership decisions.
type TeamRef struct {
	UUID      uuid.UUID
	OwnerUUID uuid.UUID
}

// TaskRef carries the task facts needed for access decisions.
type TaskRef struct {
	UUID         uuid.UUID
	TeamUUID     uuid.UUID
	CreatorUUID  uuid.UUID
	AssigneeUUID *uuid.UUID
}

// MeetingRef carries the meeting facts needed for access decisions.
type MeetingRef struct {
	UUID         uuid.UUID
	TeamUUID     uuid.UUID
	CreatorUUID  uuid.UUID
	Participants []uuid.UUID
}

// HasParticipant reports whether the user is on the participant list.
func (m MeetingRef) HasParticipant(userUUID uuid.UUID) bool {
	for _, p := range m.Participants {
		if p == userUUID {
			return true
		}
	}
	return false
}

// EvaluationRef carries the evaluation facts needed for access decisions.
// EvaluatorUUID is the user designated to evaluate the task outcome,
// EvaluatedUUID the user whose work is being evaluated.
type EvaluationRef struct {
	UUID          uuid.UUID
	TaskUUID      uuid.UUID
	TeamUUID      uuid.UUID
	EvaluatorUUID uuid.UUID
	EvaluatedUUID uuid.UUID
}
