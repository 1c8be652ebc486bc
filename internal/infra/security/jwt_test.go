package security

import (
	"errors"
	"testing"
	"time"

	"github.com/arklim/student-platform-auth/internal/core/domain"
)

func newTestIssuer(t *testing.T, clock func() time.Time) *TokenIssuer {
	t.Helper()

	issuer, err := NewTokenIssuer(TokenIssuerOptions{
		Secret:     "test-secret-please-rotate",
		Issuer:     "student-platform-auth",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	if clock != nil {
		issuer.WithClock(clock)
	}
	return issuer
}

func TestIssuePairRoundTrip(t *testing.T) {
	base := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, func() time.Time { return base })

	pair, err := issuer.IssuePair("user-1", "session-1")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens to be minted")
	}
	if !pair.AccessExpiresAt.Equal(base.Add(15 * time.Minute)) {
		t.Fatalf("access expiry = %v, want %v", pair.AccessExpiresAt, base.Add(15*time.Minute))
	}
	if !pair.RefreshExpiresAt.Equal(base.Add(7 * 24 * time.Hour)) {
		t.Fatalf("refresh expiry = %v, want %v", pair.RefreshExpiresAt, base.Add(7*24*time.Hour))
	}

	claims, err := issuer.Parse(pair.AccessToken, domain.TokenTypeAccess)
	if err != nil {
		t.Fatalf("Parse access: %v", err)
	}
	if claims.UserID != "user-1" || claims.SessionID != "session-1" {
		t.Fatalf("claims = %q/%q, want user-1/session-1", claims.UserID, claims.SessionID)
	}
	if claims.TokenType != domain.TokenTypeAccess {
		t.Fatalf("token type = %q, want access", claims.TokenType)
	}
	if claims.ID == "" {
		t.Fatal("expected a JTI on the access token")
	}

	refreshClaims, err := issuer.Parse(pair.RefreshToken, domain.TokenTypeRefresh)
	if err != nil {
		t.Fatalf("Parse refresh: %v", err)
	}
	if refreshClaims.ID == claims.ID {
		t.Fatal("access and refresh tokens must carry distinct JTIs")
	}
}

func TestIssuePairRequiresIdentifiers(t *testing.T) {
	issuer := newTestIssuer(t, nil)

	if _, err := issuer.IssuePair("", "session-1"); err == nil {
		t.Fatal("expected error for empty user id")
	}
	if _, err := issuer.IssuePair("user-1", "  "); err == nil {
		t.Fatal("expected error for blank session id")
	}
}

func TestParseRejectsTypeMismatch(t *testing.T) {
	issuer := newTestIssuer(t, nil)

	pair, err := issuer.IssuePair("user-1", "session-1")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	if _, err := issuer.Parse(pair.RefreshToken, domain.TokenTypeAccess); !errors.Is(err, ErrTokenTypeMismatch) {
		t.Fatalf("refresh as access: err = %v, want ErrTokenTypeMismatch", err)
	}
	if _, err := issuer.Parse(pair.AccessToken, domain.TokenTypeRefresh); !errors.Is(err, ErrTokenTypeMismatch) {
		t.Fatalf("access as refresh: err = %v, want ErrTokenTypeMismatch", err)
	}
}

func TestParseExpiredToken(t *testing.T) {
	current := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, func() time.Time { return current })

	pair, err := issuer.IssuePair("user-1", "session-1")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	current = current.Add(16 * time.Minute)

	if _, err := issuer.Parse(pair.AccessToken, domain.TokenTypeAccess); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
	if _, err := issuer.Parse(pair.RefreshToken, domain.TokenTypeRefresh); err != nil {
		t.Fatalf("refresh token should outlive the access token: %v", err)
	}
}

func TestParseRejectsForeignSignature(t *testing.T) {
	issuer := newTestIssuer(t, nil)
	other, err := NewTokenIssuer(TokenIssuerOptions{
		Secret: "a-different-secret",
		Issuer: "student-platform-auth",
	})
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	pair, err := other.IssuePair("user-1", "session-1")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	if _, err := issuer.ParseAny(pair.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
	if _, err := issuer.ParseAny("not-a-jwt"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("garbage token: err = %v, want ErrTokenInvalid", err)
	}
	if _, err := issuer.ParseAny(""); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("empty token: err = %v, want ErrTokenInvalid", err)
	}
}

func TestRemainingAndShouldRefresh(t *testing.T) {
	current := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, func() time.Time { return current })

	pair, err := issuer.IssuePair("user-1", "session-1")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	claims, err := issuer.Parse(pair.AccessToken, domain.TokenTypeAccess)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got := issuer.Remaining(claims); got != 15*time.Minute {
		t.Fatalf("Remaining = %v, want 15m", got)
	}
	if issuer.ShouldRefresh(claims) {
		t.Fatal("fresh token should not require refresh")
	}

	// 13 minutes in, 2 of 15 minutes remain, under the 20% threshold.
	current = current.Add(13 * time.Minute)
	if !issuer.ShouldRefresh(claims) {
		t.Fatal("token near expiry should be flagged for refresh")
	}
	if got := issuer.Remaining(claims); got != 2*time.Minute {
		t.Fatalf("Remaining = %v, want 2m", got)
	}

	refreshClaims, err := issuer.Parse(pair.RefreshToken, domain.TokenTypeRefresh)
	if err != nil {
		t.Fatalf("Parse refresh: %v", err)
	}
	if issuer.ShouldRefresh(refreshClaims) {
		t.Fatal("refresh tokens are never proactively rotated")
	}

	current = current.Add(time.Hour)
	if got := issuer.Remaining(claims); got != 0 {
		t.Fatalf("Remaining after expiry = %v, want 0", got)
	}
}
