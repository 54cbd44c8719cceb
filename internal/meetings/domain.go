package meetings

import (
	"time"

	"github.com/google/uuid"

	"github.com/AleksGin/business-manager/internal/rbac"
)

// Meeting belongs to a team and gathers a set of participants around a
// time slot.
type Meeting struct {
	UUID         uuid.UUID
	Title        string
	Description  string
	TeamUUID     uuid.UUID
	CreatorUUID  uuid.UUID
	StartTime    time.Time
	EndTime      time.Time
	Participants []uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Ref returns the permission-check view of the meeting.
func (m *Meeting) Ref() rbac.MeetingRef {
	return rbac.MeetingRef{
		UUID:         m.UUID,
		TeamUUID:     m.TeamUUID,
		CreatorUUID:  m.CreatorUUID,
		Participants: m.Participants,
	}
}

// HasParticipant reports whether the user is on the participant list.
func (m *Meeting) HasParticipant(userUUID uuid.UUID) bool {
	for _, p := range m.Participants {
		if p == userUUID {
			return true
		}
	}
	return false
}

// Overlaps reports whether the meeting's time slot intersects the given
// window.
func (m *Meeting) Overlaps(start, end time.Time) bool {
	return m.StartTime.Before(end) && start.Before(m.EndTime)
}
