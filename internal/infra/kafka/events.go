package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/student-platform-auth/internal/core/domain"
	"github.com/arklim/student-platform-auth/internal/core/port"
	"github.com/arklim/student-platform-auth/internal/infra/config"
	"github.com/arklim/student-platform-auth/internal/infra/logger"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, log *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: log}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishLockoutTriggered publishes auth.lockout.triggered events. The IP and
// identifier are masked so raw PII never reaches the bus.
func (p *EventPublisher) PublishLockoutTriggered(ctx context.Context, event domain.LockoutTriggeredEvent) error {
	identifier := event.Identifier
	if identifier != domain.UnknownIdentifier {
		identifier = logger.MaskEmail(identifier)
	}

	payload := struct {
		IP         string    `json:"ip"`
		Identifier string    `json:"identifier"`
		Attempts   int       `json:"attempts"`
		Reason     string    `json:"reason"`
		BlockUntil time.Time `json:"block_until"`
	}{
		IP:         logger.MaskIP(event.IP),
		Identifier: identifier,
		Attempts:   event.Attempts,
		Reason:     event.Reason,
		BlockUntil: event.BlockUntil.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.lockout.triggered", "", event.At, payload)
}

// PublishUserLoggedIn publishes auth.user.logged_in events.
func (p *EventPublisher) PublishUserLoggedIn(ctx context.Context, event domain.UserLoggedInEvent) error {
	payload := struct {
		UserID      string    `json:"user_id"`
		SessionID   string    `json:"session_id"`
		IP          string    `json:"ip"`
		DeviceType  string    `json:"device_type"`
		LoginMethod string    `json:"login_method"`
		LoggedInAt  time.Time `json:"logged_in_at"`
	}{
		UserID:      event.UserID,
		SessionID:   event.SessionID,
		IP:          logger.MaskIP(event.IP),
		DeviceType:  event.DeviceType,
		LoginMethod: event.LoginMethod,
		LoggedInAt:  event.At.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.user.logged_in", event.UserID, event.At, payload)
}

// PublishSessionRevoked publishes auth.session.revoked events.
func (p *EventPublisher) PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error {
	payload := struct {
		SessionID     string    `json:"session_id"`
		UserID        string    `json:"user_id"`
		Reason        string    `json:"reason"`
		TokensRevoked int       `json:"tokens_revoked"`
		RevokedAt     time.Time `json:"revoked_at"`
	}{
		SessionID:     event.SessionID,
		UserID:        event.UserID,
		Reason:        event.Reason,
		TokensRevoked: event.TokensRevoked,
		RevokedAt:     event.At.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.session.revoked", event.UserID, event.At, payload)
}

// PublishPasswordBreachDetected publishes auth.password.breach_detected events.
// The payload carries only a masked identifier, never password material.
func (p *EventPublisher) PublishPasswordBreachDetected(ctx context.Context, event domain.PasswordBreachDetectedEvent) error {
	payload := struct {
		Identifier string    `json:"identifier"`
		DetectedAt time.Time `json:"detected_at"`
	}{
		Identifier: logger.MaskEmail(event.Identifier),
		DetectedAt: event.At.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.password.breach_detected", "", event.At, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
