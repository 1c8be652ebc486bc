package domain

import "time"

// TokenType discriminates access tokens from refresh tokens. A token presented
// in the wrong role is rejected regardless of its signature.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// TokenPair bundles a short-lived access token with its long-lived, revocable
// refresh token. Both reference the same session.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// IssuedToken captures the identifier and expiry of one minted token, used to
// index outstanding refresh tokens per session for bulk revocation.
type IssuedToken struct {
	JTI       string
	SessionID string
	ExpiresAt time.Time
}

// Remaining returns the validity left at the supplied moment, zero when expired.
func (t IssuedToken) Remaining(at time.Time) time.Duration {
	if !t.ExpiresAt.After(at) {
		return 0
	}
	return t.ExpiresAt.Sub(at)
}
