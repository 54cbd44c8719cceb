package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/AleksGin/business-manager/internal/jobs"
	"github.com/AleksGin/business-manager/internal/tokens"
)

type recordingMailer struct {
	sent []string
	err  error
}

func (m *recordingMailer) Send(_ context.Context, to, _, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	return nil
}

// cleanupStore satisfies tokens.Store with an in-memory table. CleanupExpired
// mirrors the SQL sweep: expired rows go regardless of the active flag.
type cleanupStore struct {
	records map[uuid.UUID]tokens.UserToken
	err     error
}

func newCleanupStore() *cleanupStore {
	return &cleanupStore{records: map[uuid.UUID]tokens.UserToken{}}
}

func (s *cleanupStore) Create(_ context.Context, token tokens.UserToken) error {
	s.records[token.UUID] = token
	return nil
}
func (s *cleanupStore) GetByHash(context.Context, string, tokens.TokenType) (*tokens.UserToken, error) {
	return nil, errors.New("not implemented")
}
func (s *cleanupStore) Deactivate(context.Context, uuid.UUID) error { return nil }
func (s *cleanupStore) DeactivateForUser(context.Context, uuid.UUID, tokens.TokenType) (int64, error) {
	return 0, nil
}
func (s *cleanupStore) Rotate(context.Context, uuid.UUID, string, string, time.Time) error {
	return nil
}
func (s *cleanupStore) RevokeAllForUser(context.Context, uuid.UUID) (int64, error) { return 0, nil }
func (s *cleanupStore) CleanupExpired(context.Context) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	var n int64
	now := time.Now()
	for id, rec := range s.records {
		if rec.ExpiresAt.Before(now) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}
func (s *cleanupStore) ActiveTokens(context.Context, uuid.UUID, *tokens.TokenType) ([]tokens.UserToken, error) {
	return nil, nil
}

func storedToken(expiresAt time.Time, active bool) tokens.UserToken {
	return tokens.UserToken{
		UUID:      uuid.New(),
		UserUUID:  uuid.New(),
		TokenHash: uuid.NewString(),
		TokenType: tokens.TypeRefresh,
		ExpiresAt: expiresAt,
		IsActive:  active,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMetrics() *jobmetrics.Metrics {
	return jobmetrics.NewMetrics(prometheus.NewRegistry())
}

func TestSendEmailHandler(t *testing.T) {
	mailer := &recordingMailer{}
	handler := NewSendEmailHandler(mailer, testMetrics())

	task, err := NewSendEmailTask(SendEmailPayload{To: "ann@example.com", Subject: "hi", Body: "hello"})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), task))
	assert.Equal(t, []string{"ann@example.com"}, mailer.sent)
}

func TestSendEmailHandlerMalformedPayloadSkipsRetry(t *testing.T) {
	mailer := &recordingMailer{}
	handler := NewSendEmailHandler(mailer, testMetrics())

	err := handler(context.Background(), asynq.NewTask(TaskTypeSendEmail, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, mailer.sent)
}

func TestSendEmailHandlerDeliveryErrorIsRetried(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("smtp down")}
	handler := NewSendEmailHandler(mailer, testMetrics())

	task, err := NewSendEmailTask(SendEmailPayload{To: "ann@example.com"})
	require.NoError(t, err)

	err = handler(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestTokenCleanupHandler(t *testing.T) {
	store := newCleanupStore()
	require.NoError(t, store.Create(context.Background(), storedToken(time.Now().Add(-time.Hour), true)))
	handler := NewTokenCleanupHandler(store, testLogger(), testMetrics())

	require.NoError(t, handler(context.Background(), NewTokenCleanupTask()))
	assert.Empty(t, store.records)
}

func TestTokenCleanupSweepsOnlyExpired(t *testing.T) {
	ctx := context.Background()
	store := newCleanupStore()

	// Two expired rows, one of them already revoked, and one live session.
	require.NoError(t, store.Create(ctx, storedToken(time.Now().Add(-time.Hour), true)))
	require.NoError(t, store.Create(ctx, storedToken(time.Now().Add(-time.Minute), false)))
	live := storedToken(time.Now().Add(time.Hour), true)
	require.NoError(t, store.Create(ctx, live))

	removed, err := store.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed, "expired rows go regardless of the active flag")
	assert.Len(t, store.records, 1)
	assert.Contains(t, store.records, live.UUID)

	removed, err = store.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed, "second sweep finds nothing")
	assert.Contains(t, store.records, live.UUID)
}

func TestTokenCleanupHandlerPropagatesError(t *testing.T) {
	store := newCleanupStore()
	store.err = errors.New("db down")
	handler := NewTokenCleanupHandler(store, testLogger(), testMetrics())

	assert.Error(t, handler(context.Background(), NewTokenCleanupTask()))
}
