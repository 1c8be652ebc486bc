package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/student-platform-auth/internal/core/domain"
	"github.com/arklim/student-platform-auth/internal/core/port"
	"github.com/arklim/student-platform-auth/internal/infra/security"
)

var (
	// ErrTokenBlacklisted indicates the presented token's JTI was revoked.
	ErrTokenBlacklisted = errors.New("token revoked")
	// ErrInvalidRefreshToken indicates the refresh token is malformed, expired,
	// of the wrong type, or already used.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrInvalidAccessToken indicates the access token failed validation.
	ErrInvalidAccessToken = errors.New("invalid access token")
)

// TokenService issues, validates, rotates, and revokes token pairs. Refresh
// tokens are single use: rotation blacklists the presented token before the
// replacement pair is minted.
type TokenService struct {
	issuer    *security.TokenIssuer
	blacklist port.TokenBlacklistStore
	index     port.SessionTokenIndex
	logger    *zap.Logger
	now       func() time.Time
}

// NewTokenService constructs a TokenService.
func NewTokenService(issuer *security.TokenIssuer, blacklist port.TokenBlacklistStore, index port.SessionTokenIndex, log *zap.Logger) *TokenService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TokenService{
		issuer:    issuer,
		blacklist: blacklist,
		index:     index,
		logger:    log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock for deterministic tests.
func (s *TokenService) WithClock(clock func() time.Time) *TokenService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// GeneratePair mints an access/refresh pair for the session and records the
// refresh JTI in the per-session index so the session can later be revoked
// wholesale.
func (s *TokenService) GeneratePair(ctx context.Context, userID, sessionID string) (domain.TokenPair, error) {
	pair, err := s.issuer.IssuePair(userID, sessionID)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue token pair: %w", err)
	}

	claims, err := s.issuer.Parse(pair.RefreshToken, domain.TokenTypeRefresh)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("extract refresh claims: %w", err)
	}

	issued := domain.IssuedToken{
		JTI:       claims.ID,
		SessionID: sessionID,
		ExpiresAt: pair.RefreshExpiresAt,
	}
	if err := s.index.Track(ctx, issued); err != nil {
		// The pair is already minted. Losing the index entry only weakens
		// bulk revocation, so log instead of failing the login.
		s.logger.Warn("failed to index refresh token",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}

	return pair, nil
}

// ValidateAccessToken verifies signature, expiry, the type discriminator, and
// the revocation list.
func (s *TokenService) ValidateAccessToken(ctx context.Context, token string) (*security.TokenClaims, error) {
	claims, err := s.issuer.Parse(token, domain.TokenTypeAccess)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, security.ErrTokenExpired
		}
		return nil, ErrInvalidAccessToken
	}

	if s.isBlacklistedFailOpen(ctx, claims.ID) {
		return nil, ErrTokenBlacklisted
	}

	return claims, nil
}

// ValidateRefreshToken verifies a refresh token, including single-use
// enforcement via the blacklist.
func (s *TokenService) ValidateRefreshToken(ctx context.Context, token string) (*security.TokenClaims, error) {
	claims, err := s.issuer.Parse(token, domain.TokenTypeRefresh)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	if s.isBlacklistedFailOpen(ctx, claims.ID) {
		return nil, ErrTokenBlacklisted
	}

	return claims, nil
}

// isBlacklistedFailOpen consults the revocation list, treating a store outage
// as "not revoked". A signed, unexpired token keeps working while the store is
// down rather than locking every caller out.
func (s *TokenService) isBlacklistedFailOpen(ctx context.Context, jti string) bool {
	blacklisted, err := s.blacklist.IsBlacklisted(ctx, jti)
	if err != nil {
		s.logger.Error("blacklist unavailable, allowing token",
			zap.String("jti", jti),
			zap.Error(err),
		)
		return false
	}
	return blacklisted
}

// Rotate exchanges a valid refresh token for a fresh pair bound to the same
// user and session. The presented token is blacklisted first so a replayed
// copy loses the race.
func (s *TokenService) Rotate(ctx context.Context, refreshToken string) (domain.TokenPair, *security.TokenClaims, error) {
	claims, err := s.ValidateRefreshToken(ctx, refreshToken)
	if err != nil {
		return domain.TokenPair{}, nil, err
	}

	if err := s.blacklistClaims(ctx, claims); err != nil {
		return domain.TokenPair{}, nil, fmt.Errorf("blacklist rotated token: %w", err)
	}

	pair, err := s.GeneratePair(ctx, claims.UserID, claims.SessionID)
	if err != nil {
		return domain.TokenPair{}, nil, err
	}

	return pair, claims, nil
}

// BlacklistToken revokes a presented token of either type for the remainder
// of its validity.
func (s *TokenService) BlacklistToken(ctx context.Context, token string) error {
	claims, err := s.issuer.ParseAny(token)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			// Nothing to revoke, the token already lapsed.
			return nil
		}
		return ErrInvalidAccessToken
	}

	return s.blacklistClaims(ctx, claims)
}

// IsTokenBlacklisted reports whether a JTI has been revoked.
func (s *TokenService) IsTokenBlacklisted(ctx context.Context, jti string) (bool, error) {
	return s.blacklist.IsBlacklisted(ctx, jti)
}

// RevokeAllForSession blacklists every outstanding refresh token recorded for
// the session and clears the index. Outstanding access tokens ride out their
// short TTL. Returns the number of tokens revoked.
func (s *TokenService) RevokeAllForSession(ctx context.Context, sessionID string) (int, error) {
	tokens, err := s.index.List(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("list session tokens: %w", err)
	}

	now := s.now()
	revoked := 0
	for _, token := range tokens {
		remaining := token.Remaining(now)
		if remaining <= 0 {
			continue
		}
		if err := s.blacklist.Blacklist(ctx, token.JTI, remaining); err != nil {
			return revoked, fmt.Errorf("blacklist token %s: %w", token.JTI, err)
		}
		revoked++
	}

	if err := s.index.Clear(ctx, sessionID); err != nil {
		return revoked, fmt.Errorf("clear session token index: %w", err)
	}

	return revoked, nil
}

// ShouldRefresh reports whether the access token is inside the proactive
// refresh window.
func (s *TokenService) ShouldRefresh(claims *security.TokenClaims) bool {
	return s.issuer.ShouldRefresh(claims)
}

func (s *TokenService) blacklistClaims(ctx context.Context, claims *security.TokenClaims) error {
	remaining := s.issuer.Remaining(claims)
	if remaining <= 0 {
		return nil
	}
	return s.blacklist.Blacklist(ctx, claims.ID, remaining)
}
