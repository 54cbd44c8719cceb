package users

import (
	"context"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const (
	// MinAge is the minimum age in years for a registered user.
	MinAge = 16
	// MinPasswordLength is the minimum password length.
	MinPasswordLength = 8
)

// Validator applies the business rules for user data. Transport-level shape
// validation happens in handlers; this covers the rules that hold no matter
// where a request came from.
type Validator struct {
	repo Repository
}

// NewValidator constructs a Validator over the repository.
func NewValidator(repo Repository) *Validator {
	return &Validator{repo: repo}
}

// ValidateAge reports whether a birth date corresponds to at least MinAge
// full years at the given reference time.
func (v *Validator) ValidateAge(birthDate, now time.Time) bool {
	cutoff := now.AddDate(-MinAge, 0, 0)
	return !birthDate.After(cutoff)
}

// ValidatePasswordStrength requires MinPasswordLength characters with at
// least one upper-case letter, one lower-case letter and one digit.
func (v *Validator) ValidatePasswordStrength(password string) bool {
	if len(password) < MinPasswordLength {
		return false
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// ValidateEmailUnique reports whether the email is free. excludeUUID skips
// one user, so a profile update does not collide with itself.
func (v *Validator) ValidateEmailUnique(ctx context.Context, email string, excludeUUID *uuid.UUID) (bool, error) {
	existing, err := v.repo.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return true, nil
		}
		return false, err
	}
	if excludeUUID != nil && existing.UUID == *excludeUUID {
		return true, nil
	}
	return false, nil
}
