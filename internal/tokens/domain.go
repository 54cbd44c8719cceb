package tokens

import (
	"time"

	"github.com/google/uuid"
)

// TokenType discriminates persisted token records.
type TokenType string

const (
	TypeRefresh           TokenType = "REFRESH"
	TypeEmailVerification TokenType = "EMAIL_VERIFICATION"
	TypePasswordReset     TokenType = "PASSWORD_RESET"
)

// Valid reports whether the type is one of the known kinds.
func (t TokenType) Valid() bool {
	switch t {
	case TypeRefresh, TypeEmailVerification, TypePasswordReset:
		return true
	}
	return false
}

// UserToken is a persisted credential record. Only the one-way hash of the
// opaque secret is stored; the secret itself is returned to the client once
// and never written anywhere.
type UserToken struct {
	UUID      uuid.UUID
	UserUUID  uuid.UUID
	TokenHash string
	TokenType TokenType
	IssuedAt  time.Time
	ExpiresAt time.Time
	IsActive  bool
	IPAddress string
	UserAgent string
}

// Valid reports whether the record is usable at the given instant.
func (t UserToken) Valid(now time.Time) bool {
	return t.IsActive && now.Before(t.ExpiresAt)
}

// Pair is the client-visible result of an issuance.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}
