package teams

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AleksGin/business-manager/internal/platform/db"
	"github.com/AleksGin/business-manager/internal/shared"
)

// Repository defines persistence operations for teams.
type Repository interface {
	Create(ctx context.Context, team *Team) error
	GetByUUID(ctx context.Context, teamUUID uuid.UUID) (*Team, error)
	Update(ctx context.Context, team *Team) error
	Delete(ctx context.Context, teamUUID uuid.UUID) (bool, error)
	List(ctx context.Context, page shared.Page) ([]Team, error)
	GetByOwner(ctx context.Context, ownerUUID uuid.UUID) ([]Team, error)
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

const teamColumns = `uuid, name, description, owner_uuid, created_at, updated_at`

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

// Create inserts a new team.
func (r *PGRepository) Create(ctx context.Context, team *Team) error {
	_, err := r.q(ctx).Exec(ctx, `
		INSERT INTO teams (uuid, name, description, owner_uuid, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())`,
		team.UUID, team.Name, team.Description, team.OwnerUUID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: team name %q already in use", shared.ErrValidation, team.Name)
		}
		return fmt.Errorf("teams: create: %w", err)
	}
	return nil
}

// GetByUUID fetches a team by id.
func (r *PGRepository) GetByUUID(ctx context.Context, teamUUID uuid.UUID) (*Team, error) {
	row := r.q(ctx).QueryRow(ctx, `SELECT `+teamColumns+` FROM teams WHERE uuid = $1`, teamUUID)
	return scanTeam(row)
}

// Update persists team changes.
func (r *PGRepository) Update(ctx context.Context, team *Team) error {
	tag, err := r.q(ctx).Exec(ctx, `
		UPDATE teams SET name = $2, description = $3, owner_uuid = $4, updated_at = NOW()
		WHERE uuid = $1`,
		team.UUID, team.Name, team.Description, team.OwnerUUID,
	)
	if err != nil {
		return fmt.Errorf("teams: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a team. Member back-references are cleared first so no
// user keeps pointing at a vanished team.
func (r *PGRepository) Delete(ctx context.Context, teamUUID uuid.UUID) (bool, error) {
	if _, err := r.q(ctx).Exec(ctx, `UPDATE users SET team_uuid = NULL, updated_at = NOW() WHERE team_uuid = $1`, teamUUID); err != nil {
		return false, fmt.Errorf("teams: clear members: %w", err)
	}
	tag, err := r.q(ctx).Exec(ctx, `DELETE FROM teams WHERE uuid = $1`, teamUUID)
	if err != nil {
		return false, fmt.Errorf("teams: delete: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// List returns teams page by page, newest first.
func (r *PGRepository) List(ctx context.Context, page shared.Page) ([]Team, error) {
	rows, err := r.q(ctx).Query(ctx, `
		SELECT `+teamColumns+` FROM teams
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("teams: list: %w", err)
	}
	defer rows.Close()
	return scanTeams(rows)
}

// GetByOwner returns the teams owned by a user.
func (r *PGRepository) GetByOwner(ctx context.Context, ownerUUID uuid.UUID) ([]Team, error) {
	rows, err := r.q(ctx).Query(ctx, `SELECT `+teamColumns+` FROM teams WHERE owner_uuid = $1 ORDER BY created_at`, ownerUUID)
	if err != nil {
		return nil, fmt.Errorf("teams: by owner: %w", err)
	}
	defer rows.Close()
	return scanTeams(rows)
}

func scanTeam(row pgx.Row) (*Team, error) {
	var t Team
	err := row.Scan(&t.UUID, &t.Name, &t.Description, &t.OwnerUUID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("teams: scan: %w", err)
	}
	return &t, nil
}

func scanTeams(rows pgx.Rows) ([]Team, error) {
	var out []Team
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.UUID, &t.Name, &t.Description, &t.OwnerUUID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("teams: scan: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
