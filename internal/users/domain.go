package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/AleksGin/business-manager/internal/rbac"
)

// Gender of a user, kept as free-form enum for profile data.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// Valid reports whether the gender value is known.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// User is a registered account. TeamUUID is a weak reference: nil means the
// user belongs to no team, and referential integrity is the repository's
// concern, not an in-memory object graph.
type User struct {
	UUID         uuid.UUID
	Email        string
	PasswordHash string
	Name         string
	Surname      string
	Gender       Gender
	BirthDate    time.Time
	Role         rbac.Role
	TeamUUID     *uuid.UUID
	IsActive     bool
	IsVerified   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Subject projects the identity facts the permission validator inspects.
func (u *User) Subject() rbac.Subject {
	return rbac.Subject{UUID: u.UUID, Role: u.Role, TeamUUID: u.TeamUUID}
}
