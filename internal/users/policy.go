package users

import (
	"github.com/AleksGin/business-manager/internal/rbac"
)

// RegistrationPolicy is the single place that decides what an account looks
// like when nobody with permissions created it. Every entry point that
// registers users without an authenticated actor must route through it.
type RegistrationPolicy struct{}

// ApplySelfRegistration forces the defaults for a self-registered account:
// role EMPLOYEE and no team, regardless of what the request asked for. The
// request is normalized, never rejected, so a client sending role=ADMIN
// simply ends up with an employee account.
func (RegistrationPolicy) ApplySelfRegistration(in CreateUserInput) CreateUserInput {
	in.Role = rbac.RoleEmployee
	in.TeamUUID = nil
	return in
}
