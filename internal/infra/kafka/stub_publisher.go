package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/student-platform-auth/internal/core/domain"
	"github.com/arklim/student-platform-auth/internal/core/port"
	"github.com/arklim/student-platform-auth/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishLockoutTriggered logs auth.lockout.triggered events.
func (p *StubPublisher) PublishLockoutTriggered(_ context.Context, event domain.LockoutTriggeredEvent) error {
	payload := map[string]any{
		"ip":          logger.MaskIP(event.IP),
		"identifier":  logger.MaskEmail(event.Identifier),
		"attempts":    event.Attempts,
		"reason":      event.Reason,
		"block_until": event.BlockUntil,
	}
	p.logEvent("auth.lockout.triggered", "", event.At, payload)
	return nil
}

// PublishUserLoggedIn logs auth.user.logged_in events.
func (p *StubPublisher) PublishUserLoggedIn(_ context.Context, event domain.UserLoggedInEvent) error {
	payload := map[string]any{
		"user_id":      event.UserID,
		"session_id":   event.SessionID,
		"ip":           logger.MaskIP(event.IP),
		"device_type":  event.DeviceType,
		"login_method": event.LoginMethod,
	}
	p.logEvent("auth.user.logged_in", event.UserID, event.At, payload)
	return nil
}

// PublishSessionRevoked logs auth.session.revoked events.
func (p *StubPublisher) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	payload := map[string]any{
		"session_id":     event.SessionID,
		"user_id":        event.UserID,
		"reason":         event.Reason,
		"tokens_revoked": event.TokensRevoked,
	}
	p.logEvent("auth.session.revoked", event.UserID, event.At, payload)
	return nil
}

// PublishPasswordBreachDetected logs auth.password.breach_detected events.
func (p *StubPublisher) PublishPasswordBreachDetected(_ context.Context, event domain.PasswordBreachDetectedEvent) error {
	payload := map[string]any{
		"identifier": logger.MaskEmail(event.Identifier),
	}
	p.logEvent("auth.password.breach_detected", "", event.At, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
