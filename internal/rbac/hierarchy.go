package rbac

// hierarchy maps each role to the set of roles it may assign to others.
// Process-wide, read-only configuration.
var hierarchy = map[Role][]Role{
	RoleAdmin:    {RoleEmployee, RoleManager, RoleAdmin},
	RoleManager:  {RoleEmployee, RoleManager},
	RoleEmployee: {},
}

// AssignableRoles returns a copy of the roles the given role may assign.
func AssignableRoles(role Role) []Role {
	roles := hierarchy[role]
	out := make([]Role, len(roles))
	copy(out, roles)
	return out
}

// Hierarchy returns a copy of the full role hierarchy.
func Hierarchy() map[Role][]Role {
	out := make(map[Role][]Role, len(hierarchy))
	for role := range hierarchy {
		out[role] = AssignableRoles(role)
	}
	return out
}

// canAssign reports whether actorRole is allowed to hand out newRole at all,
// ignoring team scoping.
func canAssign(actorRole, newRole Role) bool {
	for _, role := range hierarchy[actorRole] {
		if role == newRole {
			return true
		}
	}
	return false
}
