package port

import (
	"context"
	"time"

	"github.com/arklim/student-platform-auth/internal/core/domain"
)

// TokenBlacklistStore records revoked token identifiers. Entries carry a TTL
// equal to the token's remaining validity so the denylist self-prunes.
type TokenBlacklistStore interface {
	Blacklist(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// SessionTokenIndex tracks outstanding refresh token identifiers per session,
// enabling revocation of every token tied to a session on logout.
type SessionTokenIndex interface {
	Track(ctx context.Context, token domain.IssuedToken) error
	List(ctx context.Context, sessionID string) ([]domain.IssuedToken, error)
	Clear(ctx context.Context, sessionID string) error
}
