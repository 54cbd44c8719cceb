package teams

import (
	"time"

	"github.com/google/uuid"

	"github.com/AleksGin/business-manager/internal/rbac"
)

// Team groups users under one owner. The owner is always also a member;
// membership itself lives on the user rows as a weak back-reference.
type Team struct {
	UUID        uuid.UUID
	Name        string
	Description string
	OwnerUUID   uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Ref returns the permission-check view of the team.
func (t *Team) Ref() rbac.TeamRef {
	return rbac.TeamRef{UUID: t.UUID, OwnerUUID: t.OwnerUUID}
}
