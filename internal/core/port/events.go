package port

import (
	"context"

	"github.com/arklim/student-platform-auth/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishLockoutTriggered(ctx context.Context, event domain.LockoutTriggeredEvent) error
	PublishUserLoggedIn(ctx context.Context, event domain.UserLoggedInEvent) error
	PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error
	PublishPasswordBreachDetected(ctx context.Context, event domain.PasswordBreachDetectedEvent) error
}

// LockoutMetrics captures telemetry hooks for the progressive lockout engine.
type LockoutMetrics interface {
	IncLock(reason string)
	IncFailOpen()
}
