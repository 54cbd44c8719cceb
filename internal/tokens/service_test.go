package tokens

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleksGin/business-manager/internal/rbac"
	"github.com/AleksGin/business-manager/internal/shared"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(ServiceConfig{
		SigningSecret:   []byte("test-signing-secret"),
		HashSecret:      []byte("test-hash-secret"),
		Issuer:          "business-manager",
		AccessTTL:       15 * time.Minute,
		RefreshTTL:      7 * 24 * time.Hour,
		VerificationTTL: 24 * time.Hour,
	})
	require.NoError(t, err)
	return svc
}

func TestNewServiceRejectsMissingSecrets(t *testing.T) {
	_, err := NewService(ServiceConfig{HashSecret: []byte("x"), AccessTTL: time.Minute, RefreshTTL: time.Minute, VerificationTTL: time.Minute})
	assert.Error(t, err)
	_, err = NewService(ServiceConfig{SigningSecret: []byte("x"), AccessTTL: time.Minute, RefreshTTL: time.Minute, VerificationTTL: time.Minute})
	assert.Error(t, err)
	_, err = NewService(ServiceConfig{SigningSecret: []byte("x"), HashSecret: []byte("y")})
	assert.Error(t, err)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := newTestService(t)
	userUUID := uuid.New()

	token, err := svc.CreateAccessToken(userUUID, rbac.RoleManager, map[string]any{"team": "t-1"})
	require.NoError(t, err)

	claims, err := svc.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userUUID.String(), claims.Subject)
	assert.Equal(t, string(rbac.RoleManager), claims.Role)

	gotUser, err := svc.UserFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, userUUID, gotUser)

	gotRole, err := svc.RoleFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleManager, gotRole)
}

func TestExtraClaimsCannotShadowReserved(t *testing.T) {
	svc := newTestService(t)
	userUUID := uuid.New()

	token, err := svc.CreateAccessToken(userUUID, rbac.RoleEmployee, map[string]any{
		"sub":  "someone-else",
		"role": "ADMIN",
	})
	require.NoError(t, err)

	claims, err := svc.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userUUID.String(), claims.Subject)
	assert.Equal(t, string(rbac.RoleEmployee), claims.Role)
}

func TestVerifyExpiredToken(t *testing.T) {
	svc := newTestService(t)
	token, err := svc.CreateAccessToken(uuid.New(), rbac.RoleEmployee, nil)
	require.NoError(t, err)

	// Move the verifier's clock past the access TTL. Signature is still
	// valid, expiry alone must fail it.
	svc.now = func() time.Time { return time.Now().Add(16 * time.Minute) }

	_, err = svc.VerifyAccessToken(token)
	assert.ErrorIs(t, err, shared.ErrExpiredToken)

	_, err = svc.UserFromToken(token)
	assert.ErrorIs(t, err, shared.ErrExpiredToken)
}

func TestVerifyTamperedToken(t *testing.T) {
	svc := newTestService(t)
	token, err := svc.CreateAccessToken(uuid.New(), rbac.RoleEmployee, nil)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	_, err = svc.VerifyAccessToken(tampered)
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestVerifyForeignSignature(t *testing.T) {
	svc := newTestService(t)
	other, err := NewService(ServiceConfig{
		SigningSecret:   []byte("some-other-secret"),
		HashSecret:      []byte("test-hash-secret"),
		Issuer:          "business-manager",
		AccessTTL:       15 * time.Minute,
		RefreshTTL:      time.Hour,
		VerificationTTL: time.Hour,
	})
	require.NoError(t, err)

	token, err := other.CreateAccessToken(uuid.New(), rbac.RoleAdmin, nil)
	require.NoError(t, err)

	_, err = svc.VerifyAccessToken(token)
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestVerifyGarbage(t *testing.T) {
	svc := newTestService(t)
	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := svc.VerifyAccessToken(token)
		assert.ErrorIs(t, err, shared.ErrInvalidToken)
	}
}

func TestIsTokenExpiredProbe(t *testing.T) {
	svc := newTestService(t)
	token, err := svc.CreateAccessToken(uuid.New(), rbac.RoleEmployee, nil)
	require.NoError(t, err)

	assert.False(t, svc.IsTokenExpired(token))

	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	assert.True(t, svc.IsTokenExpired(token))

	assert.True(t, svc.IsTokenExpired("garbage"), "unreadable tokens count as expired")
}

func TestRefreshTokenIsOpaqueAndUnique(t *testing.T) {
	svc := newTestService(t)

	first, err := svc.CreateRefreshToken()
	require.NoError(t, err)
	second, err := svc.CreateRefreshToken()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.NotContains(t, first, ".", "refresh secrets carry no claims")
	assert.GreaterOrEqual(t, len(first), 40)
}

func TestHashRefreshTokenDeterministic(t *testing.T) {
	svc := newTestService(t)
	secret, err := svc.CreateRefreshToken()
	require.NoError(t, err)

	assert.Equal(t, svc.HashRefreshToken(secret), svc.HashRefreshToken(secret))
	assert.NotEqual(t, svc.HashRefreshToken(secret), svc.HashRefreshToken(secret+"x"))
	assert.NotEqual(t, secret, svc.HashRefreshToken(secret))
}

func TestHashDependsOnKey(t *testing.T) {
	svc := newTestService(t)
	other, err := NewService(ServiceConfig{
		SigningSecret:   []byte("test-signing-secret"),
		HashSecret:      []byte("different-hash-key"),
		Issuer:          "business-manager",
		AccessTTL:       time.Minute,
		RefreshTTL:      time.Minute,
		VerificationTTL: time.Minute,
	})
	require.NoError(t, err)

	assert.NotEqual(t, svc.HashRefreshToken("s"), other.HashRefreshToken("s"))
}

func TestCreateTokenPair(t *testing.T) {
	svc := newTestService(t)
	userUUID := uuid.New()

	pair, err := svc.CreateTokenPair(userUUID, rbac.RoleAdmin, nil)
	require.NoError(t, err)

	assert.Equal(t, "bearer", pair.TokenType)

	claims, err := svc.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, userUUID.String(), claims.Subject)

	_, err = svc.VerifyAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, shared.ErrInvalidToken, "refresh secret is not a JWT")
}

func TestCreateVerificationToken(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.CreateVerificationToken(TypeEmailVerification)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = svc.CreateVerificationToken(TypeRefresh)
	assert.Error(t, err, "refresh tokens are not minted through the verification path")
}

func TestExpiryHelpers(t *testing.T) {
	svc := newTestService(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	assert.Equal(t, now.Add(7*24*time.Hour), svc.RefreshTokenExpiresAt())
	assert.Equal(t, now.Add(24*time.Hour), svc.VerificationTokenExpiresAt())
}

func TestUserTokenValid(t *testing.T) {
	now := time.Now()
	token := UserToken{IsActive: true, ExpiresAt: now.Add(time.Hour)}

	assert.True(t, token.Valid(now))
	assert.False(t, token.Valid(now.Add(2*time.Hour)), "expired")

	token.IsActive = false
	assert.False(t, token.Valid(now), "inactive")
}
