package meetings

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AleksGin/business-manager/internal/rbac"
	"github.com/AleksGin/business-manager/internal/shared"
	"github.com/AleksGin/business-manager/internal/teams"
	"github.com/AleksGin/business-manager/internal/users"
)

// CreateMeetingInput is the internal DTO for meeting creation.
type CreateMeetingInput struct {
	Title        string
	Description  string
	TeamUUID     uuid.UUID
	StartTime    time.Time
	EndTime      time.Time
	Participants []uuid.UUID
}

// ServiceParams groups dependencies for the meeting service.
type ServiceParams struct {
	Logger *slog.Logger
	Repo   Repository
	Teams  teams.Repository
	Users  users.Repository
	Perms  rbac.PermissionChecker
	Tx     shared.TxRunner
}

// Service runs the meeting use cases behind the permission checks.
type Service struct {
	logger  *slog.Logger
	repo    Repository
	teams   teams.Repository
	users   users.Repository
	perms   rbac.PermissionChecker
	tx      shared.TxRunner
	newUUID func() uuid.UUID
	now     func() time.Time
}

// NewService constructs the meeting service.
func NewService(p ServiceParams) *Service {
	return &Service{
		logger:  p.Logger,
		repo:    p.Repo,
		teams:   p.Teams,
		users:   p.Users,
		perms:   p.Perms,
		tx:      p.Tx,
		newUUID: uuid.New,
		now:     time.Now,
	}
}

// Create schedules a meeting for the team. Every participant must be free
// in the slot; conflicts reject the whole meeting.
func (s *Service) Create(ctx context.Context, actorUUID uuid.UUID, in CreateMeetingInput) (*Meeting, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("%w: meeting title is required", shared.ErrValidation)
	}
	if !in.EndTime.After(in.StartTime) {
		return nil, fmt.Errorf("%w: meeting must end after it starts", shared.ErrValidation)
	}
	var created *Meeting
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		actor, err := s.users.GetByUUID(ctx, actorUUID)
		if err != nil {
			return fmt.Errorf("load actor: %w", err)
		}
		team, err := s.teams.GetByUUID(ctx, in.TeamUUID)
		if err != nil {
			return err
		}
		if !s.perms.CanCreateMeeting(actor.Subject(), team.Ref()) {
			return shared.ErrPermissionDenied
		}
		for _, p := range in.Participants {
			conflicts, err := s.repo.FindTimeConflicts(ctx, p, in.StartTime, in.EndTime, nil)
			if err != nil {
				return err
			}
			if len(conflicts) > 0 {
				return fmt.Errorf("%w: participant %s has a conflicting meeting", shared.ErrValidation, p)
			}
		}

		meeting := &Meeting{
			UUID:         s.newUUID(),
			Title:        in.Title,
			Description:  in.Description,
			TeamUUID:     team.UUID,
			CreatorUUID:  actor.UUID,
			StartTime:    in.StartTime,
			EndTime:      in.EndTime,
			Participants: in.Participants,
		}
		if err := s.repo.Create(ctx, meeting); err != nil {
			return err
		}
		created = meeting
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("meeting created", slog.String("meeting", created.UUID.String()), slog.String("team", created.TeamUUID.String()))
	return created, nil
}

// Get returns the meeting if the actor may view it.
func (s *Service) Get(ctx context.Context, actorUUID, meetingUUID uuid.UUID) (*Meeting, error) {
	actor, err := s.users.GetByUUID(ctx, actorUUID)
	if err != nil {
		return nil, fmt.Errorf("load actor: %w", err)
	}
	meeting, err := s.repo.GetByUUID(ctx, meetingUUID)
	if err != nil {
		return nil, err
	}
	if !s.perms.CanViewMeeting(actor.Subject(), meeting.Ref()) {
		return nil, shared.ErrPermissionDenied
	}
	return meeting, nil
}

// ListForTeam returns the team's meetings to members and admins.
func (s *Service) ListForTeam(ctx context.Context, actorUUID, teamUUID uuid.UUID, page shared.Page) ([]Meeting, error) {
	actor, err := s.users.GetByUUID(ctx, actorUUID)
	if err != nil {
		return nil, fmt.Errorf("load actor: %w", err)
	}
	team, err := s.teams.GetByUUID(ctx, teamUUID)
	if err != nil {
		return nil, err
	}
	subject := actor.Subject()
	if !s.perms.IsSystemAdmin(subject) && !s.perms.IsTeamMember(subject, team.Ref()) {
		return nil, shared.ErrPermissionDenied
	}
	return s.repo.GetTeamMeetings(ctx, teamUUID, page)
}

// ListMine returns the actor's own meetings.
func (s *Service) ListMine(ctx context.Context, actorUUID uuid.UUID, page shared.Page) ([]Meeting, error) {
	return s.repo.GetUserMeetings(ctx, actorUUID, page)
}

// Upcoming returns the actor's future meetings.
func (s *Service) Upcoming(ctx context.Context, actorUUID uuid.UUID, limit int) ([]Meeting, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.GetUpcoming(ctx, actorUUID, limit)
}

// AddParticipant puts a teammate on the meeting, checking their calendar
// for conflicts first.
func (s *Service) AddParticipant(ctx context.Context, actorUUID, meetingUUID, userUUID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		actor, meeting, err := s.loadActorAndMeeting(ctx, actorUUID, meetingUUID)
		if err != nil {
			return err
		}
		if !s.perms.CanManageMeetingParticipants(actor.Subject(), meeting.Ref()) {
			return shared.ErrPermissionDenied
		}
		if meeting.HasParticipant(userUUID) {
			return fmt.Errorf("%w: user is already a participant", shared.ErrValidation)
		}
		conflicts, err := s.repo.FindTimeConflicts(ctx, userUUID, meeting.StartTime, meeting.EndTime, &meeting.UUID)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return fmt.Errorf("%w: user has a conflicting meeting", shared.ErrValidation)
		}
		return s.repo.AddParticipant(ctx, meetingUUID, userUUID)
	})
}

// RemoveParticipant drops a user from the meeting.
func (s *Service) RemoveParticipant(ctx context.Context, actorUUID, meetingUUID, userUUID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		actor, meeting, err := s.loadActorAndMeeting(ctx, actorUUID, meetingUUID)
		if err != nil {
			return err
		}
		if !s.perms.CanManageMeetingParticipants(actor.Subject(), meeting.Ref()) {
			return shared.ErrPermissionDenied
		}
		removed, err := s.repo.RemoveParticipant(ctx, meetingUUID, userUUID)
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("%w: user is not a participant", shared.ErrValidation)
		}
		return nil
	})
}

// Delete removes the meeting. Creator and admins qualify.
func (s *Service) Delete(ctx context.Context, actorUUID, meetingUUID uuid.UUID) (bool, error) {
	var deleted bool
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		actor, meeting, err := s.loadActorAndMeeting(ctx, actorUUID, meetingUUID)
		if err != nil {
			return err
		}
		if !s.perms.CanDeleteMeeting(actor.Subject(), meeting.Ref()) {
			return shared.ErrPermissionDenied
		}
		deleted, err = s.repo.Delete(ctx, meetingUUID)
		return err
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func (s *Service) loadActorAndMeeting(ctx context.Context, actorUUID, meetingUUID uuid.UUID) (*users.User, *Meeting, error) {
	actor, err := s.users.GetByUUID(ctx, actorUUID)
	if err != nil {
		return nil, nil, fmt.Errorf("load actor: %w", err)
	}
	meeting, err := s.repo.GetByUUID(ctx, meetingUUID)
	if err != nil {
		return nil, nil, err
	}
	return actor, meeting, nil
}
