package port

import (
	"context"
	"time"

	"github.com/arklim/student-platform-auth/internal/core/domain"
)

// AttemptStore persists per-identity attempt records with automatic expiry.
// A nil record from Get means no attempts are on file for the key.
type AttemptStore interface {
	Get(ctx context.Context, key string) (*domain.AttemptRecord, error)
	Save(ctx context.Context, key string, record domain.AttemptRecord, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
