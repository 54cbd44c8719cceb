package tokens

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/AleksGin/business-manager/internal/rbac"
	"github.com/AleksGin/business-manager/internal/shared"
)

const refreshSecretBytes = 32

// ServiceConfig carries the signing material and lifetimes for the token
// service. Both secrets come from configuration; key rotation is a
// deployment concern and is not modelled here.
type ServiceConfig struct {
	SigningSecret   []byte
	HashSecret      []byte
	Issuer          string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	VerificationTTL time.Duration
}

// Service mints and verifies access tokens and produces opaque refresh and
// verification secrets together with their storage hashes.
type Service struct {
	cfg ServiceConfig
	now func() time.Time
}

// NewService constructs a Service. Secrets must be non-empty.
func NewService(cfg ServiceConfig) (*Service, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, errors.New("tokens: signing secret required")
	}
	if len(cfg.HashSecret) == 0 {
		return nil, errors.New("tokens: hash secret required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.VerificationTTL <= 0 {
		return nil, errors.New("tokens: ttls must be positive")
	}
	return &Service{cfg: cfg, now: time.Now}, nil
}

// Claims is the verified payload of an access token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// CreateAccessToken signs a short-lived HS256 token carrying the user id and
// role. Extra claims are merged in but can never shadow the reserved ones.
func (s *Service) CreateAccessToken(userUUID uuid.UUID, role rbac.Role, extra map[string]any) (string, error) {
	now := s.now().UTC()
	claims := jwt.MapClaims{}
	for k, v := range extra {
		claims[k] = v
	}
	claims["iss"] = s.cfg.Issuer
	claims["sub"] = userUUID.String()
	claims["role"] = string(role)
	claims["iat"] = jwt.NewNumericDate(now)
	claims["exp"] = jwt.NewNumericDate(now.Add(s.cfg.AccessTTL))
	claims["jti"] = uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.cfg.SigningSecret)
	if err != nil {
		return "", fmt.Errorf("tokens: sign access token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken checks signature, issuer and lifetime, failing closed.
// Expiry is reported as shared.ErrExpiredToken; every other defect as
// shared.ErrInvalidToken.
func (s *Service) VerifyAccessToken(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.cfg.SigningSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, shared.ErrExpiredToken
		}
		return nil, shared.ErrInvalidToken
	}
	if !parsed.Valid {
		return nil, shared.ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, shared.ErrInvalidToken
	}
	if !rbac.Role(claims.Role).Valid() {
		return nil, shared.ErrInvalidToken
	}
	return claims, nil
}

// UserFromToken extracts the user id from a verified token.
func (s *Service) UserFromToken(token string) (uuid.UUID, error) {
	claims, err := s.VerifyAccessToken(token)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(claims.Subject)
}

// RoleFromToken extracts the role from a verified token.
func (s *Service) RoleFromToken(token string) (rbac.Role, error) {
	claims, err := s.VerifyAccessToken(token)
	if err != nil {
		return "", err
	}
	return rbac.Role(claims.Role), nil
}

// IsTokenExpired is a non-authoritative expiry probe for UX purposes. It
// reads the expiry claim without verifying the signature and reports true on
// anything unreadable. Security decisions must go through VerifyAccessToken.
func (s *Service) IsTokenExpired(token string) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return true
	}
	return !s.now().Before(claims.ExpiresAt.Time)
}

// CreateRefreshToken returns a new opaque refresh secret. The secret is a
// bearer capability with no embedded claims; validity is determined solely
// by the store lookup of its hash.
func (s *Service) CreateRefreshToken() (string, error) {
	return opaqueSecret()
}

// CreateVerificationToken returns a single-use opaque secret for email
// verification or password reset flows.
func (s *Service) CreateVerificationToken(purpose TokenType) (string, error) {
	if purpose != TypeEmailVerification && purpose != TypePasswordReset {
		return "", fmt.Errorf("tokens: %q is not a verification purpose", purpose)
	}
	return opaqueSecret()
}

// HashRefreshToken computes the keyed one-way digest under which an opaque
// secret is persisted. Deterministic: the same secret always maps to the
// same hash, which is what the store lookup relies on.
func (s *Service) HashRefreshToken(secret string) string {
	mac := hmac.New(sha256.New, s.cfg.HashSecret)
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}

// CreateTokenPair issues a fresh access/refresh pair. Persisting the refresh
// hash is the caller's job, inside its own transaction.
func (s *Service) CreateTokenPair(userUUID uuid.UUID, role rbac.Role, extra map[string]any) (Pair, error) {
	access, err := s.CreateAccessToken(userUUID, role, extra)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := s.CreateRefreshToken()
	if err != nil {
		return Pair{}, err
	}
	return Pair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}

// RefreshTokenExpiresAt returns the expiry for a refresh token issued now.
func (s *Service) RefreshTokenExpiresAt() time.Time {
	return s.now().UTC().Add(s.cfg.RefreshTTL)
}

// VerificationTokenExpiresAt returns the expiry for a verification token
// issued now.
func (s *Service) VerificationTokenExpiresAt() time.Time {
	return s.now().UTC().Add(s.cfg.VerificationTTL)
}

func opaqueSecret() (string, error) {
	buf := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("tokens: generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
