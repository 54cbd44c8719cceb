package shared

import "errors"

var (
	// ErrPermissionDenied indicates the actor is not allowed to perform the
	// operation. Handlers map it to 403 without leaking which rule failed.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotFound indicates actor or target does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates a business-rule violation (age, password
	// strength, duplicate email).
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials indicates login failure. Deliberately covers both
	// unknown email and wrong password to avoid user enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken indicates an access token with a bad signature or shape.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indicates an access token past its expiry.
	ErrExpiredToken = errors.New("token expired")
	// ErrInvalidRefreshToken indicates a refresh secret whose hash is unknown,
	// inactive or expired. Forces re-login.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)
