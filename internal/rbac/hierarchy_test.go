package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssignableRoles(t *testing.T) {
	assert.ElementsMatch(t, []Role{RoleEmployee, RoleManager, RoleAdmin}, AssignableRoles(RoleAdmin))
	assert.ElementsMatch(t, []Role{RoleEmployee, RoleManager}, AssignableRoles(RoleManager))
	assert.Empty(t, AssignableRoles(RoleEmployee))
}

func TestHierarchyReturnsCopies(t *testing.T) {
	h := Hierarchy()
	h[RoleManager] = append(h[RoleManager], RoleAdmin)

	assert.ElementsMatch(t, []Role{RoleEmployee, RoleManager}, AssignableRoles(RoleManager),
		"mutating the returned map must not change the process-wide table")
}

func TestParseRole(t *testing.T) {
	for _, raw := range []string{"EMPLOYEE", "MANAGER", "ADMIN"} {
		role, err := ParseRole(raw)
		assert.NoError(t, err)
		assert.True(t, role.Valid())
	}

	_, err := ParseRole("SUPERUSER")
	assert.Error(t, err)
	assert.False(t, Role("employee").Valid(), "roles are case sensitive")
}
