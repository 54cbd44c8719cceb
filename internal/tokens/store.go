package tokens

// The store persists token records in the user_tokens table:
//
//	CREATE TABLE user_tokens (
//	    uuid        UUID PRIMARY KEY,
//	    user_uuid   UUID NOT NULL REFERENCES users (uuid) ON DELETE CASCADE,
//	    token_hash  TEXT NOT NULL,
//	    token_type  TEXT NOT NULL,
//	    issued_at   TIMESTAMPTZ NOT NULL,
//	    expires_at  TIMESTAMPTZ NOT NULL,
//	    is_active   BOOLEAN NOT NULL DEFAULT TRUE,
//	    ip_address  TEXT,
//	    user_agent  TEXT
//	);
//	CREATE UNIQUE INDEX uq_user_tokens_active_hash
//	    ON user_tokens (token_hash, token_type) WHERE is_active;

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AleksGin/business-manager/internal/platform/db"
	"github.com/AleksGin/business-manager/internal/shared"
)

// Store is the persistence contract for token records. Mutating operations
// never commit on their own: they run against the ambient transaction the
// owning interactor opened, and that transaction commits or rolls back as
// one unit.
type Store interface {
	Create(ctx context.Context, token UserToken) error
	GetByHash(ctx context.Context, hash string, tokenType TokenType) (*UserToken, error)
	Deactivate(ctx context.Context, tokenUUID uuid.UUID) error
	DeactivateForUser(ctx context.Context, userUUID uuid.UUID, tokenType TokenType) (int64, error)
	Rotate(ctx context.Context, userUUID uuid.UUID, oldHash, newHash string, newExpiresAt time.Time) error
	RevokeAllForUser(ctx context.Context, userUUID uuid.UUID) (int64, error)
	CleanupExpired(ctx context.Context) (int64, error)
	ActiveTokens(ctx context.Context, userUUID uuid.UUID, tokenType *TokenType) ([]UserToken, error)
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PostgreSQL-backed token store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

var _ Store = (*PGStore)(nil)

// q resolves the querier: the ambient transaction when one is open,
// otherwise the pool.
func (s *PGStore) q(ctx context.Context) dbtx {
	if tx, ok := db.TxFromContext(ctx); ok {
		return tx
	}
	return s.pool
}

// Create inserts a token record.
func (s *PGStore) Create(ctx context.Context, token UserToken) error {
	_, err := s.q(ctx).Exec(ctx, `
		INSERT INTO user_tokens (uuid, user_uuid, token_hash, token_type, issued_at, expires_at, is_active, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		token.UUID, token.UserUUID, token.TokenHash, string(token.TokenType),
		token.IssuedAt.UTC(), token.ExpiresAt.UTC(), token.IsActive,
		nullText(token.IPAddress), nullText(token.UserAgent),
	)
	if err != nil {
		return fmt.Errorf("tokens: create: %w", err)
	}
	return nil
}

// GetByHash fetches a token record by hash and type. Callers decide validity
// via UserToken.Valid; an unknown hash maps to shared.ErrNotFound.
func (s *PGStore) GetByHash(ctx context.Context, hash string, tokenType TokenType) (*UserToken, error) {
	row := s.q(ctx).QueryRow(ctx, `
		SELECT uuid, user_uuid, token_hash, token_type, issued_at, expires_at, is_active, ip_address, user_agent
		FROM user_tokens
		WHERE token_hash = $1 AND token_type = $2
		ORDER BY issued_at DESC
		LIMIT 1`,
		hash, string(tokenType),
	)
	token, err := scanToken(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("tokens: get by hash: %w", err)
	}
	return token, nil
}

// Deactivate marks one token record inactive (logout of a single session).
func (s *PGStore) Deactivate(ctx context.Context, tokenUUID uuid.UUID) error {
	tag, err := s.q(ctx).Exec(ctx, `UPDATE user_tokens SET is_active = FALSE WHERE uuid = $1 AND is_active`, tokenUUID)
	if err != nil {
		return fmt.Errorf("tokens: deactivate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeactivateForUser marks every active token of one type inactive and
// returns how many were affected.
func (s *PGStore) DeactivateForUser(ctx context.Context, userUUID uuid.UUID, tokenType TokenType) (int64, error) {
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE user_tokens SET is_active = FALSE
		WHERE user_uuid = $1 AND token_type = $2 AND is_active`,
		userUUID, string(tokenType),
	)
	if err != nil {
		return 0, fmt.Errorf("tokens: deactivate for user: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Rotate atomically replaces one active, unexpired refresh token with a new
// one. The conditional update on the old hash is the compare-and-swap that
// serializes concurrent refresh attempts: exactly one caller wins, every
// other observes zero affected rows and fails closed.
func (s *PGStore) Rotate(ctx context.Context, userUUID uuid.UUID, oldHash, newHash string, newExpiresAt time.Time) error {
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE user_tokens SET is_active = FALSE
		WHERE token_hash = $1 AND token_type = $2 AND user_uuid = $3 AND is_active AND expires_at > NOW()`,
		oldHash, string(TypeRefresh), userUUID,
	)
	if err != nil {
		return fmt.Errorf("tokens: rotate deactivate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrInvalidRefreshToken
	}
	return s.Create(ctx, UserToken{
		UUID:      uuid.New(),
		UserUUID:  userUUID,
		TokenHash: newHash,
		TokenType: TypeRefresh,
		IssuedAt:  time.Now().UTC(),
		ExpiresAt: newExpiresAt,
		IsActive:  true,
	})
}

// RevokeAllForUser deactivates every active token of every type (logout
// everywhere / compromise response) and returns the count.
func (s *PGStore) RevokeAllForUser(ctx context.Context, userUUID uuid.UUID) (int64, error) {
	tag, err := s.q(ctx).Exec(ctx, `UPDATE user_tokens SET is_active = FALSE WHERE user_uuid = $1 AND is_active`, userUUID)
	if err != nil {
		return 0, fmt.Errorf("tokens: revoke all: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CleanupExpired deletes every record past its expiry, active or not, and
// returns the count. Idempotent: a second sweep removes nothing.
func (s *PGStore) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := s.q(ctx).Exec(ctx, `DELETE FROM user_tokens WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("tokens: cleanup expired: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ActiveTokens lists a user's active, unexpired tokens, optionally narrowed
// to one type.
func (s *PGStore) ActiveTokens(ctx context.Context, userUUID uuid.UUID, tokenType *TokenType) ([]UserToken, error) {
	query := `
		SELECT uuid, user_uuid, token_hash, token_type, issued_at, expires_at, is_active, ip_address, user_agent
		FROM user_tokens
		WHERE user_uuid = $1 AND is_active AND expires_at > NOW()`
	args := []any{userUUID}
	if tokenType != nil {
		query += ` AND token_type = $2`
		args = append(args, string(*tokenType))
	}
	query += ` ORDER BY issued_at DESC`

	rows, err := s.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tokens: active tokens: %w", err)
	}
	defer rows.Close()

	var out []UserToken
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("tokens: active tokens scan: %w", err)
		}
		out = append(out, *token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tokens: active tokens rows: %w", err)
	}
	return out, nil
}

func scanToken(row pgx.Row) (*UserToken, error) {
	var (
		token    UserToken
		ip, ua   pgtype.Text
		tokenTyp string
	)
	if err := row.Scan(&token.UUID, &token.UserUUID, &token.TokenHash, &tokenTyp,
		&token.IssuedAt, &token.ExpiresAt, &token.IsActive, &ip, &ua); err != nil {
		return nil, err
	}
	token.TokenType = TokenType(tokenTyp)
	token.IPAddress = ip.String
	token.UserAgent = ua.String
	return &token, nil
}

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
