package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AleksGin/business-manager/internal/platform/db"
	"github.com/AleksGin/business-manager/internal/shared"
)

// Filter narrows a task listing. Nil fields are ignored.
type Filter struct {
	TeamUUID     *uuid.UUID
	CreatorUUID  *uuid.UUID
	AssigneeUUID *uuid.UUID
	Status       *Status
}

// Repository defines persistence operations for tasks.
type Repository interface {
	Create(ctx context.Context, task *Task) error
	GetByUUID(ctx context.Context, taskUUID uuid.UUID) (*Task, error)
	Update(ctx context.Context, task *Task) error
	Delete(ctx context.Context, taskUUID uuid.UUID) (bool, error)
	List(ctx context.Context, page shared.Page, filter Filter) ([]Task, error)
	GetUserTasks(ctx context.Context, userUUID uuid.UUID, page shared.Page) ([]Task, error)
	GetOverdue(ctx context.Context, teamUUID *uuid.UUID, limit int) ([]Task, error)
	CountByStatus(ctx context.Context, teamUUID uuid.UUID) (map[Status]int, error)
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

const taskColumns = `uuid, title, description, status, team_uuid, creator_uuid, assignee_uuid, due_date, created_at, updated_at`

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

// Create inserts a new task.
func (r *PGRepository) Create(ctx context.Context, task *Task) error {
	_, err := r.q(ctx).Exec(ctx, `
		INSERT INTO tasks (uuid, title, description, status, team_uuid, creator_uuid, assignee_uuid, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`,
		task.UUID, task.Title, task.Description, string(task.Status),
		task.TeamUUID, task.CreatorUUID, task.AssigneeUUID, task.DueDate,
	)
	if err != nil {
		return fmt.Errorf("tasks: create: %w", err)
	}
	return nil
}

// GetByUUID fetches a task by id.
func (r *PGRepository) GetByUUID(ctx context.Context, taskUUID uuid.UUID) (*Task, error) {
	row := r.q(ctx).QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE uuid = $1`, taskUUID)
	return scanTask(row)
}

// Update persists task changes.
func (r *PGRepository) Update(ctx context.Context, task *Task) error {
	tag, err := r.q(ctx).Exec(ctx, `
		UPDATE tasks SET title = $2, description = $3, status = $4, assignee_uuid = $5, due_date = $6, updated_at = NOW()
		WHERE uuid = $1`,
		task.UUID, task.Title, task.Description, string(task.Status), task.AssigneeUUID, task.DueDate,
	)
	if err != nil {
		return fmt.Errorf("tasks: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a task.
func (r *PGRepository) Delete(ctx context.Context, taskUUID uuid.UUID) (bool, error) {
	tag, err := r.q(ctx).Exec(ctx, `DELETE FROM tasks WHERE uuid = $1`, taskUUID)
	if err != nil {
		return false, fmt.Errorf("tasks: delete: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// List returns tasks matching the filter, newest first.
func (r *PGRepository) List(ctx context.Context, page shared.Page, filter Filter) ([]Task, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, val any) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.TeamUUID != nil {
		add("team_uuid = $%d", *filter.TeamUUID)
	}
	if filter.CreatorUUID != nil {
		add("creator_uuid = $%d", *filter.CreatorUUID)
	}
	if filter.AssigneeUUID != nil {
		add("assignee_uuid = $%d", *filter.AssigneeUUID)
	}
	if filter.Status != nil {
		add("status = $%d", string(*filter.Status))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, page.Limit, page.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tasks: list: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// GetUserTasks returns tasks the user created or is assigned to.
func (r *PGRepository) GetUserTasks(ctx context.Context, userUUID uuid.UUID, page shared.Page) ([]Task, error) {
	rows, err := r.q(ctx).Query(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE creator_uuid = $1 OR assignee_uuid = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userUUID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("tasks: user tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// GetOverdue returns tasks past their due date that are not completed.
func (r *PGRepository) GetOverdue(ctx context.Context, teamUUID *uuid.UUID, limit int) ([]Task, error) {
	query := `
		SELECT ` + taskColumns + ` FROM tasks
		WHERE due_date < NOW() AND status <> 'COMPLETED'`
	args := []any{limit}
	if teamUUID != nil {
		query += ` AND team_uuid = $2`
		args = append(args, *teamUUID)
	}
	query += ` ORDER BY due_date LIMIT $1`

	rows, err := r.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tasks: overdue: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// CountByStatus returns the per-status task counts for a team.
func (r *PGRepository) CountByStatus(ctx context.Context, teamUUID uuid.UUID) (map[Status]int, error) {
	rows, err := r.q(ctx).Query(ctx, `
		SELECT status, COUNT(*) FROM tasks WHERE team_uuid = $1 GROUP BY status`, teamUUID)
	if err != nil {
		return nil, fmt.Errorf("tasks: count by status: %w", err)
	}
	defer rows.Close()

	out := map[Status]int{}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("tasks: scan count: %w", err)
		}
		out[Status(status)] = count
	}
	return out, rows.Err()
}

func scanTask(row pgx.Row) (*Task, error) {
	var (
		t        Task
		status   string
		assignee pgtype.UUID
	)
	err := row.Scan(&t.UUID, &t.Title, &t.Description, &status, &t.TeamUUID,
		&t.CreatorUUID, &assignee, &t.DueDate, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("tasks: scan: %w", err)
	}
	t.Status = Status(status)
	if assignee.Valid {
		id := uuid.UUID(assignee.Bytes)
		t.AssigneeUUID = &id
	}
	return &t, nil
}

func scanTasks(rows pgx.Rows) ([]Task, error) {
	var out []Task
	for rows.Next() {
		var (
			t        Task
			status   string
			assignee pgtype.UUID
		)
		if err := rows.Scan(&t.UUID, &t.Title, &t.Description, &status, &t.TeamUUID,
			&t.CreatorUUID, &assignee, &t.DueDate, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("tasks: scan: %w", err)
		}
		t.Status = Status(status)
		if assignee.Valid {
			id := uuid.UUID(assignee.Bytes)
			t.AssigneeUUID = &id
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
