package port

import (
	"context"
	"time"

	"github.com/arklim/student-platform-auth/internal/core/domain"
)

// SessionRepository deals with session storage.
type SessionRepository interface {
	Create(ctx context.Context, session domain.Session) error
	GetByID(ctx context.Context, sessionID string) (*domain.Session, error)
	// ListActiveByUser returns live sessions ordered newest-activity-first.
	ListActiveByUser(ctx context.Context, userID string, reference time.Time) ([]domain.Session, error)
	Touch(ctx context.Context, sessionID string, at time.Time) error
	Deactivate(ctx context.Context, sessionID string) error
	DeactivateAllForUser(ctx context.Context, userID string, except string) (int, error)
	// DeleteIdleBefore removes sessions whose last activity predates the
	// horizon. Stands in for the document store's TTL index.
	DeleteIdleBefore(ctx context.Context, horizon time.Time) (int, error)
}
