package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleksGin/business-manager/internal/rbac"
	"github.com/AleksGin/business-manager/internal/shared"
	"github.com/AleksGin/business-manager/internal/tokens"
	"github.com/AleksGin/business-manager/internal/users"
)

type mockUserRepo struct {
	users map[uuid.UUID]*users.User
	err   error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*users.User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *users.User) error {
	if m.err != nil {
		return m.err
	}
	cp := *u
	m.users[u.UUID] = &cp
	return nil
}

func (m *mockUserRepo) GetByUUID(_ context.Context, userUUID uuid.UUID) (*users.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[userUUID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*users.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockUserRepo) Update(_ context.Context, u *users.User) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.users[u.UUID]; !ok {
		return shared.ErrNotFound
	}
	cp := *u
	m.users[u.UUID] = &cp
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, userUUID uuid.UUID) (bool, error) {
	_, ok := m.users[userUUID]
	delete(m.users, userUUID)
	return ok, nil
}

func (m *mockUserRepo) List(_ context.Context, _ shared.Page, _ *uuid.UUID) ([]users.User, error) {
	return nil, nil
}

func (m *mockUserRepo) Search(_ context.Context, _ users.SearchRequest) ([]users.User, error) {
	return nil, nil
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	if err != nil {
		if err == shared.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (m *mockUserRepo) GetByRole(_ context.Context, _ rbac.Role, _ *uuid.UUID) ([]users.User, error) {
	return nil, nil
}

func (m *mockUserRepo) GetTeamMembers(_ context.Context, _ uuid.UUID) ([]users.User, error) {
	return nil, nil
}

func (m *mockUserRepo) GetWithoutTeam(_ context.Context, _ shared.Page) ([]users.User, error) {
	return nil, nil
}

// mockStore keeps token records in memory and mirrors the store's
// compare-and-swap rotation semantics.
type mockStore struct {
	records map[uuid.UUID]*tokens.UserToken
	err     error
}

func newMockStore() *mockStore {
	return &mockStore{records: make(map[uuid.UUID]*tokens.UserToken)}
}

func (m *mockStore) Create(_ context.Context, token tokens.UserToken) error {
	if m.err != nil {
		return m.err
	}
	cp := token
	m.records[token.UUID] = &cp
	return nil
}

func (m *mockStore) GetByHash(_ context.Context, hash string, tokenType tokens.TokenType) (*tokens.UserToken, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, rec := range m.records {
		if rec.TokenHash == hash && rec.TokenType == tokenType {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockStore) Deactivate(_ context.Context, tokenUUID uuid.UUID) error {
	rec, ok := m.records[tokenUUID]
	if !ok {
		return shared.ErrNotFound
	}
	rec.IsActive = false
	return nil
}

func (m *mockStore) DeactivateForUser(_ context.Context, userUUID uuid.UUID, tokenType tokens.TokenType) (int64, error) {
	var n int64
	for _, rec := range m.records {
		if rec.UserUUID == userUUID && rec.TokenType == tokenType && rec.IsActive {
			rec.IsActive = false
			n++
		}
	}
	return n, nil
}

func (m *mockStore) Rotate(_ context.Context, userUUID uuid.UUID, oldHash, newHash string, newExpiresAt time.Time) error {
	if m.err != nil {
		return m.err
	}
	now := time.Now()
	for _, rec := range m.records {
		if rec.UserUUID == userUUID && rec.TokenHash == oldHash &&
			rec.TokenType == tokens.TypeRefresh && rec.IsActive && rec.ExpiresAt.After(now) {
			rec.IsActive = false
			fresh := tokens.UserToken{
				UUID:      uuid.New(),
				UserUUID:  userUUID,
				TokenHash: newHash,
				TokenType: tokens.TypeRefresh,
				IssuedAt:  now,
				ExpiresAt: newExpiresAt,
				IsActive:  true,
			}
			m.records[fresh.UUID] = &fresh
			return nil
		}
	}
	return shared.ErrInvalidRefreshToken
}

func (m *mockStore) RevokeAllForUser(_ context.Context, userUUID uuid.UUID) (int64, error) {
	var n int64
	for _, rec := range m.records {
		if rec.UserUUID == userUUID && rec.IsActive {
			rec.IsActive = false
			n++
		}
	}
	return n, nil
}

func (m *mockStore) CleanupExpired(_ context.Context) (int64, error) {
	var n int64
	now := time.Now()
	for id, rec := range m.records {
		if rec.ExpiresAt.Before(now) {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

func (m *mockStore) ActiveTokens(_ context.Context, userUUID uuid.UUID, tokenType *tokens.TokenType) ([]tokens.UserToken, error) {
	var out []tokens.UserToken
	for _, rec := range m.records {
		if rec.UserUUID == userUUID && rec.IsActive && (tokenType == nil || rec.TokenType == *tokenType) {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (m *mockStore) activeCount(userUUID uuid.UUID, tokenType tokens.TokenType) int {
	n := 0
	for _, rec := range m.records {
		if rec.UserUUID == userUUID && rec.TokenType == tokenType && rec.IsActive {
			n++
		}
	}
	return n
}

type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) { return "hash:" + password, nil }
func (fakeHasher) Verify(password, hash string) bool    { return "hash:"+password == hash }

type mockMailer struct {
	verification []string
	reset        []string
	err          error
}

func (m *mockMailer) EnqueueVerificationMail(_ context.Context, email, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.verification = append(m.verification, email)
	return nil
}

func (m *mockMailer) EnqueuePasswordResetMail(_ context.Context, email, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.reset = append(m.reset, email)
	return nil
}

type noopTx struct{}

func (noopTx) WithTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type authFixture struct {
	repo    *mockUserRepo
	store   *mockStore
	mail    *mockMailer
	tokens  *tokens.Service
	service *Service
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	svc, err := tokens.NewService(tokens.ServiceConfig{
		SigningSecret:   []byte("test-signing-secret"),
		HashSecret:      []byte("test-hash-secret"),
		Issuer:          "business-manager-test",
		AccessTTL:       15 * time.Minute,
		RefreshTTL:      7 * 24 * time.Hour,
		VerificationTTL: 24 * time.Hour,
	})
	require.NoError(t, err)

	repo := newMockUserRepo()
	store := newMockStore()
	mail := &mockMailer{}
	return &authFixture{
		repo:   repo,
		store:  store,
		mail:   mail,
		tokens: svc,
		service: NewService(ServiceParams{
			Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
			Users:     repo,
			Validator: users.NewValidator(repo),
			Hasher:    fakeHasher{},
			Tokens:    svc,
			Store:     store,
			Mail:      mail,
			Tx:        noopTx{},
		}),
	}
}

func (f *authFixture) seedUser(email, password string, active bool) *users.User {
	u := &users.User{
		UUID:         uuid.New(),
		Email:        email,
		Name:         "Test",
		Surname:      "User",
		PasswordHash: "hash:" + password,
		Role:         rbac.RoleEmployee,
		IsActive:     active,
		IsVerified:   true,
	}
	f.repo.users[u.UUID] = u
	return u
}

func TestLoginIssuesPairAndStoresRefreshHash(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser("ann@example.com", "Str0ngPass", true)

	pair, err := f.service.Login(context.Background(), "ann@example.com", "Str0ngPass", "10.0.0.1", "go-test")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "bearer", pair.TokenType)

	hash := f.tokens.HashRefreshToken(pair.RefreshToken)
	rec, err := f.store.GetByHash(context.Background(), hash, tokens.TypeRefresh)
	require.NoError(t, err)
	assert.Equal(t, user.UUID, rec.UserUUID)
	assert.Equal(t, "10.0.0.1", rec.IPAddress)
	assert.Equal(t, "go-test", rec.UserAgent)
	assert.True(t, rec.IsActive)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser("ann@example.com", "Str0ngPass", true)

	_, err := f.service.Login(context.Background(), "ann@example.com", "wrong", "", "")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestLoginUnknownEmailLooksLikeWrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser("ann@example.com", "Str0ngPass", true)

	_, wrongPass := f.service.Login(context.Background(), "ann@example.com", "nope", "", "")
	_, unknown := f.service.Login(context.Background(), "ghost@example.com", "nope", "", "")
	assert.ErrorIs(t, wrongPass, shared.ErrInvalidCredentials)
	assert.ErrorIs(t, unknown, shared.ErrInvalidCredentials)
	assert.Equal(t, wrongPass.Error(), unknown.Error())
}

func TestLoginDeactivatedAccount(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser("ann@example.com", "Str0ngPass", false)

	_, err := f.service.Login(context.Background(), "ann@example.com", "Str0ngPass", "", "")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestRefreshRotatesExactlyOnce(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser("ann@example.com", "Str0ngPass", true)

	pair, err := f.service.Login(context.Background(), "ann@example.com", "Str0ngPass", "", "")
	require.NoError(t, err)

	fresh, err := f.service.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, fresh.RefreshToken)

	// Replaying the consumed token must fail; only one active session remains.
	_, err = f.service.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, shared.ErrInvalidRefreshToken)
	assert.Equal(t, 1, f.store.activeCount(user.UUID, tokens.TypeRefresh))
}

func TestRefreshUnknownToken(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser("ann@example.com", "Str0ngPass", true)

	_, err := f.service.Refresh(context.Background(), "never-issued")
	assert.ErrorIs(t, err, shared.ErrInvalidRefreshToken)
}

func TestRefreshDeactivatedUser(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser("ann@example.com", "Str0ngPass", true)

	pair, err := f.service.Login(context.Background(), "ann@example.com", "Str0ngPass", "", "")
	require.NoError(t, err)

	user.IsActive = false
	f.repo.users[user.UUID] = user

	_, err = f.service.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, shared.ErrInvalidRefreshToken)
}

func TestLogoutRevokesAllSessions(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser("ann@example.com", "Str0ngPass", true)

	for range 3 {
		_, err := f.service.Login(context.Background(), "ann@example.com", "Str0ngPass", "", "")
		require.NoError(t, err)
	}

	revoked, err := f.service.Logout(context.Background(), user.UUID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), revoked)
	assert.Equal(t, 0, f.store.activeCount(user.UUID, tokens.TypeRefresh))
}

func TestChangePassword(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser("ann@example.com", "Str0ngPass", true)

	_, err := f.service.Login(context.Background(), "ann@example.com", "Str0ngPass", "", "")
	require.NoError(t, err)

	err = f.service.ChangePassword(context.Background(), user.UUID, "Str0ngPass", "N3wStrongPass")
	require.NoError(t, err)

	stored := f.repo.users[user.UUID]
	assert.Equal(t, "hash:N3wStrongPass", stored.PasswordHash)
	assert.Equal(t, 0, f.store.activeCount(user.UUID, tokens.TypeRefresh))
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser("ann@example.com", "Str0ngPass", true)

	err := f.service.ChangePassword(context.Background(), user.UUID, "wrong", "N3wStrongPass")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestChangePasswordWeakNew(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser("ann@example.com", "Str0ngPass", true)

	err := f.service.ChangePassword(context.Background(), user.UUID, "Str0ngPass", "weak")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestRequestPasswordResetKnownEmail(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser("ann@example.com", "Str0ngPass", true)

	err := f.service.RequestPasswordReset(context.Background(), "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"ann@example.com"}, f.mail.reset)
	assert.Equal(t, 1, f.store.activeCount(user.UUID, tokens.TypePasswordReset))
}

func TestRequestPasswordResetUnknownEmailSucceedsSilently(t *testing.T) {
	f := newAuthFixture(t)

	err := f.service.RequestPasswordReset(context.Background(), "ghost@example.com")
	require.NoError(t, err)
	assert.Empty(t, f.mail.reset)
}

func TestConfirmPasswordResetIsSingleUse(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser("ann@example.com", "Str0ngPass", true)

	secret, err := f.tokens.CreateVerificationToken(tokens.TypePasswordReset)
	require.NoError(t, err)
	require.NoError(t, f.store.Create(context.Background(), tokens.UserToken{
		UUID:      uuid.New(),
		UserUUID:  user.UUID,
		TokenHash: f.tokens.HashRefreshToken(secret),
		TokenType: tokens.TypePasswordReset,
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
		IsActive:  true,
	}))

	require.NoError(t, f.service.ConfirmPasswordReset(context.Background(), secret, "N3wStrongPass"))
	assert.Equal(t, "hash:N3wStrongPass", f.repo.users[user.UUID].PasswordHash)

	err = f.service.ConfirmPasswordReset(context.Background(), secret, "An0therStrong")
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestConfirmPasswordResetExpiredToken(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser("ann@example.com", "Str0ngPass", true)

	secret, err := f.tokens.CreateVerificationToken(tokens.TypePasswordReset)
	require.NoError(t, err)
	require.NoError(t, f.store.Create(context.Background(), tokens.UserToken{
		UUID:      uuid.New(),
		UserUUID:  user.UUID,
		TokenHash: f.tokens.HashRefreshToken(secret),
		TokenType: tokens.TypePasswordReset,
		IssuedAt:  time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
		IsActive:  true,
	}))

	err = f.service.ConfirmPasswordReset(context.Background(), secret, "N3wStrongPass")
	assert.ErrorIs(t, err, shared.ErrExpiredToken)
}

func TestVerifyEmail(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser("ann@example.com", "Str0ngPass", true)
	user.IsVerified = false
	f.repo.users[user.UUID] = user

	manager := NewActivationManager(f.repo, f.tokens, f.store, f.mail)
	secret, err := manager.IssueEmailVerification(context.Background(), user.UUID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ann@example.com"}, f.mail.verification)

	require.NoError(t, f.service.VerifyEmail(context.Background(), secret))
	assert.True(t, f.repo.users[user.UUID].IsVerified)

	// Single use.
	err = f.service.VerifyEmail(context.Background(), secret)
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestVerifyEmailWrongTokenType(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser("ann@example.com", "Str0ngPass", true)

	secret, err := f.tokens.CreateVerificationToken(tokens.TypePasswordReset)
	require.NoError(t, err)
	require.NoError(t, f.store.Create(context.Background(), tokens.UserToken{
		UUID:      uuid.New(),
		UserUUID:  user.UUID,
		TokenHash: f.tokens.HashRefreshToken(secret),
		TokenType: tokens.TypePasswordReset,
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
		IsActive:  true,
	}))

	err = f.service.VerifyEmail(context.Background(), secret)
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
}
