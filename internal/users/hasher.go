package users

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher is the injected hashing capability. The algorithm choice
// lives behind this interface.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// BcryptHasher hashes passwords with bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher constructs a hasher; cost <= 0 selects the default of 12.
func NewBcryptHasher(cost int) BcryptHasher {
	if cost <= 0 {
		cost = 12
	}
	return BcryptHasher{cost: cost}
}

var _ PasswordHasher = BcryptHasher{}

// Hash returns the bcrypt digest of the password.
func (h BcryptHasher) Hash(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("users: hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether password matches the stored digest.
func (BcryptHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
