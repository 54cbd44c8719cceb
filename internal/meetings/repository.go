package meetings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AleksGin/business-manager/internal/platform/db"
	"github.com/AleksGin/business-manager/internal/shared"
)

// Repository defines persistence operations for meetings. Participants
// live in a join table and travel with the meeting row.
type Repository interface {
	Create(ctx context.Context, meeting *Meeting) error
	GetByUUID(ctx context.Context, meetingUUID uuid.UUID) (*Meeting, error)
	Update(ctx context.Context, meeting *Meeting) error
	Delete(ctx context.Context, meetingUUID uuid.UUID) (bool, error)
	GetTeamMeetings(ctx context.Context, teamUUID uuid.UUID, page shared.Page) ([]Meeting, error)
	GetUserMeetings(ctx context.Context, userUUID uuid.UUID, page shared.Page) ([]Meeting, error)
	GetUpcoming(ctx context.Context, userUUID uuid.UUID, limit int) ([]Meeting, error)
	FindTimeConflicts(ctx context.Context, userUUID uuid.UUID, start, end time.Time, excludeUUID *uuid.UUID) ([]Meeting, error)
	AddParticipant(ctx context.Context, meetingUUID, userUUID uuid.UUID) error
	RemoveParticipant(ctx context.Context, meetingUUID, userUUID uuid.UUID) (bool, error)
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

const meetingColumns = `m.uuid, m.title, m.description, m.team_uuid, m.creator_uuid, m.start_time, m.end_time, m.created_at, m.updated_at`

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

func (r *PGRepository) q(ctx context.Context) dbtx {
	if tx, ok := db.TxFromContext(ctx); ok {
		return tx
	}
	return r.pool
}

// Create inserts a new meeting with its participant list.
func (r *PGRepository) Create(ctx context.Context, meeting *Meeting) error {
	q := r.q(ctx)
	_, err := q.Exec(ctx, `
		INSERT INTO meetings (uuid, title, description, team_uuid, creator_uuid, start_time, end_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`,
		meeting.UUID, meeting.Title, meeting.Description, meeting.TeamUUID,
		meeting.CreatorUUID, meeting.StartTime, meeting.EndTime,
	)
	if err != nil {
		return fmt.Errorf("meetings: create: %w", err)
	}
	for _, p := range meeting.Participants {
		if _, err := q.Exec(ctx, `
			INSERT INTO meeting_participants (meeting_uuid, user_uuid)
			VALUES ($1, $2) ON CONFLICT DO NOTHING`, meeting.UUID, p); err != nil {
			return fmt.Errorf("meetings: add participant: %w", err)
		}
	}
	return nil
}

// GetByUUID fetches a meeting and its participants.
func (r *PGRepository) GetByUUID(ctx context.Context, meetingUUID uuid.UUID) (*Meeting, error) {
	row := r.q(ctx).QueryRow(ctx, `SELECT `+meetingColumns+` FROM meetings m WHERE m.uuid = $1`, meetingUUID)
	meeting, err := scanMeeting(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadParticipants(ctx, meeting); err != nil {
		return nil, err
	}
	return meeting, nil
}

// Update persists meeting changes. Participant churn goes through
// AddParticipant/RemoveParticipant.
func (r *PGRepository) Update(ctx context.Context, meeting *Meeting) error {
	tag, err := r.q(ctx).Exec(ctx, `
		UPDATE meetings SET title = $2, description = $3, start_time = $4, end_time = $5, updated_at = NOW()
		WHERE uuid = $1`,
		meeting.UUID, meeting.Title, meeting.Description, meeting.StartTime, meeting.EndTime,
	)
	if err != nil {
		return fmt.Errorf("meetings: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a meeting and its participant rows.
func (r *PGRepository) Delete(ctx context.Context, meetingUUID uuid.UUID) (bool, error) {
	q := r.q(ctx)
	if _, err := q.Exec(ctx, `DELETE FROM meeting_participants WHERE meeting_uuid = $1`, meetingUUID); err != nil {
		return false, fmt.Errorf("meetings: clear participants: %w", err)
	}
	tag, err := q.Exec(ctx, `DELETE FROM meetings WHERE uuid = $1`, meetingUUID)
	if err != nil {
		return false, fmt.Errorf("meetings: delete: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetTeamMeetings returns the team's meetings ordered by start time.
func (r *PGRepository) GetTeamMeetings(ctx context.Context, teamUUID uuid.UUID, page shared.Page) ([]Meeting, error) {
	rows, err := r.q(ctx).Query(ctx, `
		SELECT `+meetingColumns+` FROM meetings m
		WHERE m.team_uuid = $1
		ORDER BY m.start_time
		LIMIT $2 OFFSET $3`, teamUUID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("meetings: team meetings: %w", err)
	}
	defer rows.Close()
	return r.scanWithParticipants(ctx, rows)
}

// GetUserMeetings returns meetings the user created or participates in.
func (r *PGRepository) GetUserMeetings(ctx context.Context, userUUID uuid.UUID, page shared.Page) ([]Meeting, error) {
	rows, err := r.q(ctx).Query(ctx, `
		SELECT DISTINCT `+meetingColumns+` FROM meetings m
		LEFT JOIN meeting_participants mp ON mp.meeting_uuid = m.uuid
		WHERE m.creator_uuid = $1 OR mp.user_uuid = $1
		ORDER BY m.start_time
		LIMIT $2 OFFSET $3`, userUUID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("meetings: user meetings: %w", err)
	}
	defer rows.Close()
	return r.scanWithParticipants(ctx, rows)
}

// GetUpcoming returns the user's future meetings, soonest first.
func (r *PGRepository) GetUpcoming(ctx context.Context, userUUID uuid.UUID, limit int) ([]Meeting, error) {
	rows, err := r.q(ctx).Query(ctx, `
		SELECT DISTINCT `+meetingColumns+` FROM meetings m
		LEFT JOIN meeting_participants mp ON mp.meeting_uuid = m.uuid
		WHERE (m.creator_uuid = $1 OR mp.user_uuid = $1) AND m.start_time > NOW()
		ORDER BY m.start_time
		LIMIT $2`, userUUID, limit)
	if err != nil {
		return nil, fmt.Errorf("meetings: upcoming: %w", err)
	}
	defer rows.Close()
	return r.scanWithParticipants(ctx, rows)
}

// FindTimeConflicts returns the user's meetings overlapping the window.
func (r *PGRepository) FindTimeConflicts(ctx context.Context, userUUID uuid.UUID, start, end time.Time, excludeUUID *uuid.UUID) ([]Meeting, error) {
	query := `
		SELECT DISTINCT ` + meetingColumns + ` FROM meetings m
		LEFT JOIN meeting_participants mp ON mp.meeting_uuid = m.uuid
		WHERE (m.creator_uuid = $1 OR mp.user_uuid = $1)
		  AND m.start_time < $3 AND $2 < m.end_time`
	args := []any{userUUID, start, end}
	if excludeUUID != nil {
		query += ` AND m.uuid <> $4`
		args = append(args, *excludeUUID)
	}
	rows, err := r.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("meetings: time conflicts: %w", err)
	}
	defer rows.Close()
	return r.scanWithParticipants(ctx, rows)
}

// AddParticipant attaches a user to the meeting.
func (r *PGRepository) AddParticipant(ctx context.Context, meetingUUID, userUUID uuid.UUID) error {
	_, err := r.q(ctx).Exec(ctx, `
		INSERT INTO meeting_participants (meeting_uuid, user_uuid)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`, meetingUUID, userUUID)
	if err != nil {
		return fmt.Errorf("meetings: add participant: %w", err)
	}
	return nil
}

// RemoveParticipant detaches a user from the meeting.
func (r *PGRepository) RemoveParticipant(ctx context.Context, meetingUUID, userUUID uuid.UUID) (bool, error) {
	tag, err := r.q(ctx).Exec(ctx, `
		DELETE FROM meeting_participants WHERE meeting_uuid = $1 AND user_uuid = $2`, meetingUUID, userUUID)
	if err != nil {
		return false, fmt.Errorf("meetings: remove participant: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PGRepository) loadParticipants(ctx context.Context, meeting *Meeting) error {
	rows, err := r.q(ctx).Query(ctx, `
		SELECT user_uuid FROM meeting_participants WHERE meeting_uuid = $1`, meeting.UUID)
	if err != nil {
		return fmt.Errorf("meetings: load participants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p uuid.UUID
		if err := rows.Scan(&p); err != nil {
			return fmt.Errorf("meetings: scan participant: %w", err)
		}
		meeting.Participants = append(meeting.Participants, p)
	}
	return rows.Err()
}

func (r *PGRepository) scanWithParticipants(ctx context.Context, rows pgx.Rows) ([]Meeting, error) {
	var out []Meeting
	for rows.Next() {
		var m Meeting
		if err := rows.Scan(&m.UUID, &m.Title, &m.Description, &m.TeamUUID,
			&m.CreatorUUID, &m.StartTime, &m.EndTime, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("meetings: scan: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := r.loadParticipants(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func scanMeeting(row pgx.Row) (*Meeting, error) {
	var m Meeting
	err := row.Scan(&m.UUID, &m.Title, &m.Description, &m.TeamUUID,
		&m.CreatorUUID, &m.StartTime, &m.EndTime, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("meetings: scan: %w", err)
	}
	return &m, nil
}
