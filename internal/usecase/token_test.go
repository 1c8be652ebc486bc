package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arklim/student-platform-auth/internal/core/domain"
	"github.com/arklim/student-platform-auth/internal/infra/security"
)

func newTestTokenService(t *testing.T, clock *manualClock) (*TokenService, *memoryBlacklist, *memoryTokenIndex) {
	t.Helper()

	issuer, err := security.NewTokenIssuer(security.TokenIssuerOptions{
		Secret:     "test-secret-please-rotate",
		Issuer:     "student-platform-auth",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	issuer.WithClock(clock.Now)

	blacklist := newMemoryBlacklist()
	index := newMemoryTokenIndex()
	service := NewTokenService(issuer, blacklist, index, nil).WithClock(clock.Now)
	return service, blacklist, index
}

func TestTokenGeneratePairIndexesRefresh(t *testing.T) {
	clock := newManualClock(time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC))
	service, _, index := newTestTokenService(t, clock)
	ctx := context.Background()

	pair, err := service.GeneratePair(ctx, "user-1", "session-1")
	if err != nil {
		t.Fatalf("GeneratePair returned error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens to be minted")
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Fatal("expected distinct access and refresh tokens")
	}

	tracked, err := index.List(ctx, "session-1")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(tracked) != 1 {
		t.Fatalf("expected one indexed refresh token, got %d", len(tracked))
	}
	if !tracked[0].ExpiresAt.Equal(pair.RefreshExpiresAt) {
		t.Fatalf("expected indexed expiry %v, got %v", pair.RefreshExpiresAt, tracked[0].ExpiresAt)
	}
}

func TestTokenTypeDiscriminator(t *testing.T) {
	clock := newManualClock(time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC))
	service, _, _ := newTestTokenService(t, clock)
	ctx := context.Background()

	pair, err := service.GeneratePair(ctx, "user-1", "session-1")
	if err != nil {
		t.Fatalf("GeneratePair returned error: %v", err)
	}

	if _, err := service.ValidateAccessToken(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected refresh-as-access to fail, got %v", err)
	}
	if _, err := service.ValidateRefreshToken(ctx, pair.AccessToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected access-as-refresh to fail, got %v", err)
	}

	claims, err := service.ValidateAccessToken(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken returned error: %v", err)
	}
	if claims.UserID != "user-1" || claims.SessionID != "session-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenRotationIsSingleUse(t *testing.T) {
	clock := newManualClock(time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC))
	service, _, _ := newTestTokenService(t, clock)
	ctx := context.Background()

	pair, err := service.GeneratePair(ctx, "user-1", "session-1")
	if err != nil {
		t.Fatalf("GeneratePair returned error: %v", err)
	}

	clock.Advance(time.Minute)

	rotated, claims, err := service.Rotate(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Rotate returned error: %v", err)
	}
	if claims.SessionID != "session-1" {
		t.Fatalf("expected rotation to keep the session, got %s", claims.SessionID)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatal("expected a fresh refresh token")
	}

	// Replaying the consumed token must fail.
	if _, _, err := service.Rotate(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenBlacklisted) {
		t.Fatalf("expected replay to hit the blacklist, got %v", err)
	}

	// The replacement still works.
	if _, err := service.ValidateRefreshToken(ctx, rotated.RefreshToken); err != nil {
		t.Fatalf("expected rotated token to validate, got %v", err)
	}
}

func TestTokenBlacklistTTLIsRemainingValidity(t *testing.T) {
	clock := newManualClock(time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC))
	service, blacklist, _ := newTestTokenService(t, clock)
	ctx := context.Background()

	pair, err := service.GeneratePair(ctx, "user-1", "session-1")
	if err != nil {
		t.Fatalf("GeneratePair returned error: %v", err)
	}

	clock.Advance(5 * time.Minute)

	if err := service.BlacklistToken(ctx, pair.AccessToken); err != nil {
		t.Fatalf("BlacklistToken returned error: %v", err)
	}

	blacklist.mu.Lock()
	defer blacklist.mu.Unlock()
	if len(blacklist.entries) != 1 {
		t.Fatalf("expected one blacklist entry, got %d", len(blacklist.entries))
	}
	for _, ttl := range blacklist.entries {
		if ttl != 10*time.Minute {
			t.Fatalf("expected TTL equal to remaining validity (10m), got %v", ttl)
		}
	}
}

func TestTokenBlacklistExpiredIsNoop(t *testing.T) {
	clock := newManualClock(time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC))
	service, blacklist, _ := newTestTokenService(t, clock)
	ctx := context.Background()

	pair, err := service.GeneratePair(ctx, "user-1", "session-1")
	if err != nil {
		t.Fatalf("GeneratePair returned error: %v", err)
	}

	clock.Advance(16 * time.Minute)

	if err := service.BlacklistToken(ctx, pair.AccessToken); err != nil {
		t.Fatalf("expected expired token blacklist to be a no-op, got %v", err)
	}

	blacklist.mu.Lock()
	defer blacklist.mu.Unlock()
	if len(blacklist.entries) != 0 {
		t.Fatalf("expected no blacklist entries, got %d", len(blacklist.entries))
	}
}

func TestTokenRevokeAllForSession(t *testing.T) {
	clock := newManualClock(time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC))
	service, _, index := newTestTokenService(t, clock)
	ctx := context.Background()

	first, err := service.GeneratePair(ctx, "user-1", "session-1")
	if err != nil {
		t.Fatalf("GeneratePair returned error: %v", err)
	}
	second, err := service.GeneratePair(ctx, "user-1", "session-1")
	if err != nil {
		t.Fatalf("GeneratePair returned error: %v", err)
	}

	count, err := service.RevokeAllForSession(ctx, "session-1")
	if err != nil {
		t.Fatalf("RevokeAllForSession returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 tokens revoked, got %d", count)
	}

	if _, err := service.ValidateRefreshToken(ctx, first.RefreshToken); !errors.Is(err, ErrTokenBlacklisted) {
		t.Fatalf("expected first refresh token to be revoked, got %v", err)
	}
	if _, err := service.ValidateRefreshToken(ctx, second.RefreshToken); !errors.Is(err, ErrTokenBlacklisted) {
		t.Fatalf("expected second refresh token to be revoked, got %v", err)
	}

	remaining, err := index.List(ctx, "session-1")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected cleared index, got %d entries", len(remaining))
	}
}

func TestTokenShouldRefreshNearExpiry(t *testing.T) {
	clock := newManualClock(time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC))
	service, _, _ := newTestTokenService(t, clock)
	ctx := context.Background()

	pair, err := service.GeneratePair(ctx, "user-1", "session-1")
	if err != nil {
		t.Fatalf("GeneratePair returned error: %v", err)
	}

	claims, err := service.ValidateAccessToken(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken returned error: %v", err)
	}
	if service.ShouldRefresh(claims) {
		t.Fatal("fresh token should not need refresh")
	}

	// 13 of 15 minutes elapsed leaves under 20% validity.
	clock.Advance(13 * time.Minute)
	if !service.ShouldRefresh(claims) {
		t.Fatal("expected refresh recommendation under the threshold")
	}

	refreshClaims := &security.TokenClaims{TokenType: domain.TokenTypeRefresh}
	if service.ShouldRefresh(refreshClaims) {
		t.Fatal("refresh tokens never trigger proactive refresh")
	}
}

func TestTokenExpiredAccessToken(t *testing.T) {
	clock := newManualClock(time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC))
	service, _, _ := newTestTokenService(t, clock)
	ctx := context.Background()

	pair, err := service.GeneratePair(ctx, "user-1", "session-1")
	if err != nil {
		t.Fatalf("GeneratePair returned error: %v", err)
	}

	clock.Advance(16 * time.Minute)

	if _, err := service.ValidateAccessToken(ctx, pair.AccessToken); !errors.Is(err, security.ErrTokenExpired) {
		t.Fatalf("expected expired error, got %v", err)
	}
}

func TestTokenValidationAllowsOnBlacklistOutage(t *testing.T) {
	clock := newManualClock(time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC))
	service, blacklist, _ := newTestTokenService(t, clock)
	ctx := context.Background()

	pair, err := service.GeneratePair(ctx, "user-1", "session-1")
	if err != nil {
		t.Fatalf("GeneratePair returned error: %v", err)
	}

	blacklist.failCheck = errors.New("redis unavailable")

	claims, err := service.ValidateAccessToken(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("expected access validation to succeed with the store down, got %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("expected claims for user-1, got %q", claims.UserID)
	}

	if _, err := service.ValidateRefreshToken(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("expected refresh validation to succeed with the store down, got %v", err)
	}

	// Forged and expired tokens are still rejected while failing open.
	if _, err := service.ValidateAccessToken(ctx, "not-a-token"); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected invalid access error, got %v", err)
	}
	clock.Advance(16 * time.Minute)
	if _, err := service.ValidateAccessToken(ctx, pair.AccessToken); !errors.Is(err, security.ErrTokenExpired) {
		t.Fatalf("expected expired error, got %v", err)
	}
}
