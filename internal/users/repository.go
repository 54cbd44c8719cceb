package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AleksGin/business-manager/internal/platform/db"
	"github.com/AleksGin/business-manager/internal/rbac"
	"github.com/AleksGin/business-manager/internal/shared"
)

// SearchRequest narrows a user search.
type SearchRequest struct {
	Query       string
	TeamUUID    *uuid.UUID
	ExcludeTeam bool
	Limit       int
}

// Repository defines persistence operations for users.
type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByUUID(ctx context.Context, userUUID uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, userUUID uuid.UUID) (bool, error)
	List(ctx context.Context, page shared.Page, teamUUID *uuid.UUID) ([]User, error)
	Search(ctx context.Context, req SearchRequest) ([]User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	GetByRole(ctx context.Context, role rbac.Role, teamUUID *uuid.UUID) ([]User, error)
	GetTeamMembers(ctx context.Context, teamUUID uuid.UUID) ([]User, error)
	GetWithoutTeam(ctx context.Context, page shared.Page) ([]User, error)
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

const userColumns = `uuid, email, password_hash, name, surname, gender, birth_date, role, team_uuid, is_active, is_verified, created_at, updated_at`

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

// Create inserts a new user. A duplicate email maps to shared.ErrValidation.
func (r *PGRepository) Create(ctx context.Context, user *User) error {
	_, err := r.q(ctx).Exec(ctx, `
		INSERT INTO users (uuid, email, password_hash, name, surname, gender, birth_date, role, team_uuid, is_active, is_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`,
		user.UUID, user.Email, user.PasswordHash, user.Name, user.Surname,
		string(user.Gender), user.BirthDate, string(user.Role), user.TeamUUID,
		user.IsActive, user.IsVerified,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: email %s already in use", shared.ErrValidation, user.Email)
		}
		return fmt.Errorf("users: create: %w", err)
	}
	return nil
}

// GetByUUID fetches a user by id.
func (r *PGRepository) GetByUUID(ctx context.Context, userUUID uuid.UUID) (*User, error) {
	row := r.q(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE uuid = $1`, userUUID)
	return r.scanOne(row)
}

// GetByEmail fetches a user by email.
func (r *PGRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	row := r.q(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return r.scanOne(row)
}

// Update persists every mutable field of the user.
func (r *PGRepository) Update(ctx context.Context, user *User) error {
	tag, err := r.q(ctx).Exec(ctx, `
		UPDATE users SET email = $2, password_hash = $3, name = $4, surname = $5, gender = $6,
			birth_date = $7, role = $8, team_uuid = $9, is_active = $10, is_verified = $11, updated_at = NOW()
		WHERE uuid = $1`,
		user.UUID, user.Email, user.PasswordHash, user.Name, user.Surname,
		string(user.Gender), user.BirthDate, string(user.Role), user.TeamUUID,
		user.IsActive, user.IsVerified,
	)
	if err != nil {
		return fmt.Errorf("users: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a user row. Returns false when nothing was deleted.
func (r *PGRepository) Delete(ctx context.Context, userUUID uuid.UUID) (bool, error) {
	tag, err := r.q(ctx).Exec(ctx, `DELETE FROM users WHERE uuid = $1`, userUUID)
	if err != nil {
		return false, fmt.Errorf("users: delete: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// List returns users with pagination, optionally filtered by team.
func (r *PGRepository) List(ctx context.Context, page shared.Page, teamUUID *uuid.UUID) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	args := []any{}
	if teamUUID != nil {
		query += ` WHERE team_uuid = $1`
		args = append(args, *teamUUID)
	}
	query += fmt.Sprintf(` ORDER BY created_at LIMIT %d OFFSET %d`, page.Limit, page.Offset)
	return r.scanMany(ctx, query, args...)
}

// Search matches name, surname or email against the query string.
func (r *PGRepository) Search(ctx context.Context, req SearchRequest) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE (name ILIKE $1 OR surname ILIKE $1 OR email ILIKE $1)`
	args := []any{"%" + req.Query + "%"}
	if req.TeamUUID != nil {
		if req.ExcludeTeam {
			query += ` AND (team_uuid IS DISTINCT FROM $2)`
		} else {
			query += ` AND team_uuid = $2`
		}
		args = append(args, *req.TeamUUID)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(` ORDER BY surname, name LIMIT %d`, limit)
	return r.scanMany(ctx, query, args...)
}

// ExistsByEmail reports whether any user holds the given email.
func (r *PGRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	if err := r.q(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("users: exists by email: %w", err)
	}
	return exists, nil
}

// GetByRole returns users holding a role, optionally within one team.
func (r *PGRepository) GetByRole(ctx context.Context, role rbac.Role, teamUUID *uuid.UUID) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1`
	args := []any{string(role)}
	if teamUUID != nil {
		query += ` AND team_uuid = $2`
		args = append(args, *teamUUID)
	}
	query += ` ORDER BY surname, name`
	return r.scanMany(ctx, query, args...)
}

// GetTeamMembers returns every user whose team reference points at the team.
func (r *PGRepository) GetTeamMembers(ctx context.Context, teamUUID uuid.UUID) ([]User, error) {
	return r.scanMany(ctx, `SELECT `+userColumns+` FROM users WHERE team_uuid = $1 ORDER BY surname, name`, teamUUID)
}

// GetWithoutTeam returns users not assigned to any team.
func (r *PGRepository) GetWithoutTeam(ctx context.Context, page shared.Page) ([]User, error) {
	query := fmt.Sprintf(`SELECT `+userColumns+` FROM users WHERE team_uuid IS NULL ORDER BY created_at LIMIT %d OFFSET %d`,
		page.Limit, page.Offset)
	return r.scanMany(ctx, query)
}

func (r *PGRepository) scanOne(row pgx.Row) (*User, error) {
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("users: scan: %w", err)
	}
	return user, nil
}

func (r *PGRepository) scanMany(ctx context.Context, query string, args ...any) ([]User, error) {
	rows, err := r.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("users: query: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("users: scan row: %w", err)
		}
		out = append(out, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users: rows: %w", err)
	}
	return out, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		user     User
		gender   string
		role     string
		teamUUID pgtype.UUID
	)
	if err := row.Scan(&user.UUID, &user.Email, &user.PasswordHash, &user.Name, &user.Surname,
		&gender, &user.BirthDate, &role, &teamUUID, &user.IsActive, &user.IsVerified,
		&user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	user.Gender = Gender(gender)
	user.Role = rbac.Role(role)
	if teamUUID.Valid {
		id := uuid.UUID(teamUUID.Bytes)
		user.TeamUUID = &id
	}
	return &user, nil
}
