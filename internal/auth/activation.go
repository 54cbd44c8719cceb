package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AleksGin/business-manager/internal/tokens"
	"github.com/AleksGin/business-manager/internal/users"
)

// ActivationManager issues email-verification credentials for newly
// registered users and hands the mail off to the worker queue.
type ActivationManager struct {
	users  users.Repository
	tokens *tokens.Service
	store  tokens.Store
	mail   MailEnqueuer
	now    func() time.Time
}

// NewActivationManager constructs an ActivationManager.
func NewActivationManager(repo users.Repository, svc *tokens.Service, store tokens.Store, mail MailEnqueuer) *ActivationManager {
	return &ActivationManager{
		users:  repo,
		tokens: svc,
		store:  store,
		mail:   mail,
		now:    time.Now,
	}
}

var _ users.ActivationTokenIssuer = (*ActivationManager)(nil)

// IssueEmailVerification mints a verification token for the user, stores
// its hash and enqueues the verification mail. Returns the plaintext secret.
func (m *ActivationManager) IssueEmailVerification(ctx context.Context, userUUID uuid.UUID) (string, error) {
	user, err := m.users.GetByUUID(ctx, userUUID)
	if err != nil {
		return "", fmt.Errorf("auth: load user for verification: %w", err)
	}
	secret, err := m.tokens.CreateVerificationToken(tokens.TypeEmailVerification)
	if err != nil {
		return "", err
	}
	if err := m.store.Create(ctx, tokens.UserToken{
		UUID:      uuid.New(),
		UserUUID:  user.UUID,
		TokenHash: m.tokens.HashRefreshToken(secret),
		TokenType: tokens.TypeEmailVerification,
		IssuedAt:  m.now().UTC(),
		ExpiresAt: m.tokens.VerificationTokenExpiresAt(),
		IsActive:  true,
	}); err != nil {
		return "", err
	}
	if err := m.mail.EnqueueVerificationMail(ctx, user.Email, secret); err != nil {
		return "", err
	}
	return secret, nil
}
