package evaluations

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

// Repository defines persistence operations for evaluations.
type Repository interface {
	Create(ctx context.Context, eval *Evaluation) error
	GetByUUID(ctx context.Context, evalUUID uuid.UUID) (*Evaluation, error)
	GetByTask(ctx context.Context, taskUUID uuid.UUID) (*Evaluation, error)
	Update(ctx context.Context, eval *Evaluation) error
	Delete(ctx context.Context, evalUUID uuid.UUID) (bool, error)
	GetReceived(ctx context.Context, userUUID uuid.UUID, page shared.Page) ([]Evaluation, error)
	GetGiven(ctx context.Context, evaluatorUUID uuid.UUID, page shared.Page) ([]Evaluation, error)
	AverageScore(ctx context.Context, userUUID uuid.UUID) (float64, bool, error)
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

const evalColumns = `uuid, task_uuid, team_uuid, evaluator_uuid, evaluated_uuid, score, comment, created_at, updated_at`

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

// Create inserts a new evaluation. A second evaluation for the same task
// maps to shared.ErrValidation via the unique constraint.
func (r *PGRepository) Create(ctx context.Context, eval *Evaluation) error {
	_, err := r.q(ctx).Exec(ctx, `
		INSERT INTO evaluations (uuid, task_uuid, team_uuid, evaluator_uuid, evaluated_uuid, score, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`,
		eval.UUID, eval.TaskUUID, eval.TeamUUID, eval.EvaluatorUUID,
		eval.EvaluatedUUID, int(eval.Score), eval.Comment,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: task already has an evaluation", shared.ErrValidation)
		}
		return fmt.Errorf("evaluations: create: %w", err)
	}
	return nil
}

// GetByUUID fetches an evaluation by id.
func (r *PGRepository) GetByUUID(ctx context.Context, evalUUID uuid.UUID) (*Evaluation, error) {
	row := r.q(ctx).QueryRow(ctx, `SELECT `+evalColumns+` FROM evaluations WHERE uuid = $1`, evalUUID)
	return scanEvaluation(row)
}

// GetByTask fetches the evaluation attached to a task.
func (r *PGRepository) GetByTask(ctx context.Context, taskUUID uuid.UUID) (*Evaluation, error) {
	row := r.q(ctx).QueryRow(ctx, `SELECT `+evalColumns+` FROM evaluations WHERE task_uuid = $1`, taskUUID)
	return scanEvaluation(row)
}

// Update persists score and comment changes.
func (r *PGRepository) Update(ctx context.Context, eval *Evaluation) error {
	tag, err := r.q(ctx).Exec(ctx, `
		UPDATE evaluations SET score = $2, comment = $3, updated_at = NOW()
		WHERE uuid = $1`,
		eval.UUID, int(eval.Score), eval.Comment,
	)
	if err != nil {
		return fmt.Errorf("evaluations: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes an evaluation.
func (r *PGRepository) Delete(ctx context.Context, evalUUID uuid.UUID) (bool, error) {
	tag, err := r.q(ctx).Exec(ctx, `DELETE FROM evaluations WHERE uuid = $1`, evalUUID)
	if err != nil {
		return false, fmt.Errorf("evaluations: delete: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetReceived returns evaluations given to a user, newest first.
func (r *PGRepository) GetReceived(ctx context.Context, userUUID uuid.UUID, page shared.Page) ([]Evaluation, error) {
	rows, err := r.q(ctx).Query(ctx, `
		SELECT `+evalColumns+` FROM evaluations
		WHERE evaluated_uuid = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userUUID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("evaluations: received: %w", err)
	}
	defer rows.Close()
	return scanEvaluations(rows)
}

// GetGiven returns evaluations handed out by an evaluator, newest first.
func (r *PGRepository) GetGiven(ctx context.Context, evaluatorUUID uuid.UUID, page shared.Page) ([]Evaluation, error) {
	rows, err := r.q(ctx).Query(ctx, `
		SELECT `+evalColumns+` FROM evaluations
		WHERE evaluator_uuid = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, evaluatorUUID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("evaluations: given: %w", err)
	}
	defer rows.Close()
	return scanEvaluations(rows)
}

// AverageScore returns the user's mean received score. The bool is false
// when the user has no evaluations yet.
func (r *PGRepository) AverageScore(ctx context.Context, userUUID uuid.UUID) (float64, bool, error) {
	var avg *float64
	err := r.q(ctx).QueryRow(ctx, `
		SELECT AVG(score) FROM evaluations WHERE evaluated_uuid = $1`, userUUID).Scan(&avg)
	if err != nil {
		return 0, false, fmt.Errorf("evaluations: average: %w", err)
	}
	if avg == nil {
		return 0, false, nil
	}
	return *avg, true, nil
}

func scanEvaluation(row pgx.Row) (*Evaluation, error) {
	var (
		e     Evaluation
		score int
	)
	err := row.Scan(&e.UUID, &e.TaskUUID, &e.TeamUUID, &e.EvaluatorUUID,
		&e.EvaluatedUUID, &score, &e.Comment, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("evaluations: scan: %w", err)
	}
	e.Score = Score(score)
	return &e, nil
}

func scanEvaluations(rows pgx.Rows) ([]Evaluation, error) {
	var out []Evaluation
	for rows.Next() {
		var (
			e     Evaluation
			score int
		)
		if err := rows.Scan(&e.UUID, &e.TaskUUID, &e.TeamUUID, &e.EvaluatorUUID,
			&e.EvaluatedUUID, &score, &e.Comment, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("evaluations: scan: %w", err)
		}
		e.Score = Score(score)
		out = append(out, e)
	}
	return out, rows.Err()
}
