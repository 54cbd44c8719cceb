package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AleksGin/business-manager/internal/shared"
	"github.com/AleksGin/business-manager/internal/tokens"
	"github.com/AleksGin/business-manager/internal/users"
)

// MailEnqueuer hands outbound mails to the background worker. Implemented
// by the jobs enqueuer; tests swap in a recorder.
type MailEnqueuer interface {
	EnqueueVerificationMail(ctx context.Context, email, token string) error
	EnqueuePasswordResetMail(ctx context.Context, email, token string) error
}

// ServiceParams groups dependencies for the auth service.
type ServiceParams struct {
	Logger    *slog.Logger
	Users     users.Repository
	Validator *users.Validator
	Hasher    users.PasswordHasher
	Tokens    *tokens.Service
	Store     tokens.Store
	Mail      MailEnqueuer
	Tx        shared.TxRunner
}

// Service implements the credential and session lifecycle: login, refresh
// rotation, logout, password changes and the mailed token flows.
type Service struct {
	logger    *slog.Logger
	users     users.Repository
	validator *users.Validator
	hasher    users.PasswordHasher
	tokens    *tokens.Service
	store     tokens.Store
	mail      MailEnqueuer
	tx        shared.TxRunner
	now       func() time.Time
}

// NewService constructs the auth service.
func NewService(p ServiceParams) *Service {
	return &Service{
		logger:    p.Logger,
		users:     p.Users,
		validator: p.Validator,
		hasher:    p.Hasher,
		tokens:    p.Tokens,
		store:     p.Store,
		mail:      p.Mail,
		tx:        p.Tx,
		now:       time.Now,
	}
}

// Authenticate checks email and password. Unknown email, wrong password
// and deactivated account all collapse into ErrInvalidCredentials so
// callers cannot enumerate users.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*users.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and issues a token pair, persisting the refresh
// credential's hash with request audit fields.
func (s *Service) Login(ctx context.Context, email, password, ip, userAgent string) (tokens.Pair, error) {
	var pair tokens.Pair
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		user, err := s.Authenticate(ctx, email, password)
		if err != nil {
			return err
		}
		pair, err = s.tokens.CreateTokenPair(user.UUID, user.Role, nil)
		if err != nil {
			return err
		}
		return s.store.Create(ctx, tokens.UserToken{
			UUID:      uuid.New(),
			UserUUID:  user.UUID,
			TokenHash: s.tokens.HashRefreshToken(pair.RefreshToken),
			TokenType: tokens.TypeRefresh,
			IssuedAt:  s.now().UTC(),
			ExpiresAt: s.tokens.RefreshTokenExpiresAt(),
			IsActive:  true,
			IPAddress: ip,
			UserAgent: userAgent,
		})
	})
	if err != nil {
		return tokens.Pair{}, err
	}
	s.logger.Info("login", slog.String("email", email))
	return pair, nil
}

// Refresh exchanges a refresh token for a fresh pair. The whole protocol
// runs in one transaction and ends in a compare-and-swap rotation, so a
// replayed or raced token fails with ErrInvalidRefreshToken.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (tokens.Pair, error) {
	var pair tokens.Pair
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		hash := s.tokens.HashRefreshToken(refreshToken)
		record, err := s.store.GetByHash(ctx, hash, tokens.TypeRefresh)
		if err != nil {
			if isNotFound(err) {
				return shared.ErrInvalidRefreshToken
			}
			return err
		}
		if !record.Valid(s.now()) {
			return shared.ErrInvalidRefreshToken
		}
		user, err := s.users.GetByUUID(ctx, record.UserUUID)
		if err != nil {
			if isNotFound(err) {
				return shared.ErrInvalidRefreshToken
			}
			return err
		}
		if !user.IsActive {
			return shared.ErrInvalidRefreshToken
		}
		pair, err = s.tokens.CreateTokenPair(user.UUID, user.Role, nil)
		if err != nil {
			return err
		}
		return s.store.Rotate(ctx, user.UUID,
			hash,
			s.tokens.HashRefreshToken(pair.RefreshToken),
			s.tokens.RefreshTokenExpiresAt(),
		)
	})
	if err != nil {
		return tokens.Pair{}, err
	}
	return pair, nil
}

// Logout revokes every stored credential of the user and returns how many
// were active.
func (s *Service) Logout(ctx context.Context, userUUID uuid.UUID) (int64, error) {
	revoked, err := s.store.RevokeAllForUser(ctx, userUUID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("logout", slog.String("user", userUUID.String()), slog.Int64("revoked", revoked))
	return revoked, nil
}

// ChangePassword swaps the password after re-checking the current one,
// then revokes every refresh credential so stolen sessions die with the
// old password.
func (s *Service) ChangePassword(ctx context.Context, userUUID uuid.UUID, current, newPassword string) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		user, err := s.users.GetByUUID(ctx, userUUID)
		if err != nil {
			return err
		}
		if !s.hasher.Verify(current, user.PasswordHash) {
			return shared.ErrInvalidCredentials
		}
		if !s.validator.ValidatePasswordStrength(newPassword) {
			return fmt.Errorf("%w: password does not meet strength requirements", shared.ErrValidation)
		}
		hash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return err
		}
		user.PasswordHash = hash
		if err := s.users.Update(ctx, user); err != nil {
			return err
		}
		_, err = s.store.DeactivateForUser(ctx, userUUID, tokens.TypeRefresh)
		return err
	})
}

// RequestPasswordReset mints a reset token and mails it. The caller always
// gets success, whether or not the email exists; anything else would leak
// which addresses have accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		user, err := s.users.GetByEmail(ctx, email)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		secret, err := s.tokens.CreateVerificationToken(tokens.TypePasswordReset)
		if err != nil {
			return err
		}
		if err := s.store.Create(ctx, tokens.UserToken{
			UUID:      uuid.New(),
			UserUUID:  user.UUID,
			TokenHash: s.tokens.HashRefreshToken(secret),
			TokenType: tokens.TypePasswordReset,
			IssuedAt:  s.now().UTC(),
			ExpiresAt: s.tokens.VerificationTokenExpiresAt(),
			IsActive:  true,
		}); err != nil {
			return err
		}
		return s.mail.EnqueuePasswordResetMail(ctx, user.Email, secret)
	})
	if err != nil {
		s.logger.Error("password reset request failed", slog.String("error", err.Error()))
	}
	return err
}

// ConfirmPasswordReset consumes a mailed reset token and installs the new
// password. The token is single-use; every refresh credential is revoked.
func (s *Service) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		record, err := s.consumeToken(ctx, token, tokens.TypePasswordReset)
		if err != nil {
			return err
		}
		user, err := s.users.GetByUUID(ctx, record.UserUUID)
		if err != nil {
			return err
		}
		if !s.validator.ValidatePasswordStrength(newPassword) {
			return fmt.Errorf("%w: password does not meet strength requirements", shared.ErrValidation)
		}
		hash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return err
		}
		user.PasswordHash = hash
		if err := s.users.Update(ctx, user); err != nil {
			return err
		}
		_, err = s.store.DeactivateForUser(ctx, user.UUID, tokens.TypeRefresh)
		return err
	})
}

// VerifyEmail consumes a mailed verification token and marks the account
// verified.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		record, err := s.consumeToken(ctx, token, tokens.TypeEmailVerification)
		if err != nil {
			return err
		}
		user, err := s.users.GetByUUID(ctx, record.UserUUID)
		if err != nil {
			return err
		}
		user.IsVerified = true
		return s.users.Update(ctx, user)
	})
}

// consumeToken looks up and deactivates a single-use token record.
func (s *Service) consumeToken(ctx context.Context, token string, tokenType tokens.TokenType) (*tokens.UserToken, error) {
	hash := s.tokens.HashRefreshToken(token)
	record, err := s.store.GetByHash(ctx, hash, tokenType)
	if err != nil {
		if isNotFound(err) {
			return nil, shared.ErrInvalidToken
		}
		return nil, err
	}
	if !record.IsActive {
		return nil, shared.ErrInvalidToken
	}
	if !record.Valid(s.now()) {
		return nil, shared.ErrExpiredToken
	}
	if err := s.store.Deactivate(ctx, record.UUID); err != nil {
		return nil, err
	}
	return record, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}
