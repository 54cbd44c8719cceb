package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/AleksGin/business-manager/internal/jobs"
	"github.com/AleksGin/business-manager/internal/tokens"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeTokenCleanup is the task type for purging expired credentials.
	TaskTypeTokenCleanup = "tokens:cleanup"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewTokenCleanupTask constructs the periodic cleanup task. It carries no
// payload; the handler sweeps the whole user_tokens table.
func NewTokenCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeTokenCleanup, nil)
}

// Mailer delivers a single email. The SMTP integration lives behind this
// seam; LogMailer stands in until a relay is configured.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer writes outbound mail to the log instead of a relay.
type LogMailer struct {
	Logger *slog.Logger
}

// Send logs the mail that would have been delivered.
func (m LogMailer) Send(_ context.Context, to, subject, _ string) error {
	m.Logger.Info("mail delivered",
		slog.String("to", to),
		slog.String("subject", subject),
	)
	return nil
}

// NewSendEmailHandler returns the asynq handler for TaskTypeSendEmail.
// A malformed payload skips retry; delivery errors are retried by asynq.
func NewSendEmailHandler(mailer Mailer, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		track := metrics.Track(TaskTypeSendEmail)
		var payload SendEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return track.End(fmt.Errorf("mail payload: %v: %w", err, asynq.SkipRetry))
		}
		return track.End(mailer.Send(ctx, payload.To, payload.Subject, payload.Body))
	}
}

// NewTokenCleanupHandler returns the asynq handler for TaskTypeTokenCleanup.
func NewTokenCleanupHandler(store tokens.Store, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		track := metrics.Track(TaskTypeTokenCleanup)
		removed, err := store.CleanupExpired(ctx)
		if err != nil {
			return track.End(err)
		}
		metrics.AddTokensPurged(int(removed))
		logger.Info("expired tokens purged", slog.Int64("removed", removed))
		return track.End(nil)
	}
}
