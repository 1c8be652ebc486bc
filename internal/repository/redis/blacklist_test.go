package redis

import (
	"context"
	"testing"
	"time"

	"github.com/arklim/student-platform-auth/internal/core/domain"
)

func TestBlacklistRepository_BlacklistAndCheck(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewBlacklistRepository(client, "token_blacklist")

	ctx := context.Background()
	ttl := 2 * time.Minute

	if err := repo.Blacklist(ctx, "jti-123", ttl); err != nil {
		t.Fatalf("Blacklist returned error: %v", err)
	}

	blacklisted, err := repo.IsBlacklisted(ctx, "jti-123")
	if err != nil {
		t.Fatalf("IsBlacklisted returned error: %v", err)
	}
	if !blacklisted {
		t.Fatalf("expected jti to be blacklisted")
	}

	remaining := server.TTL("token_blacklist:jti-123")
	if remaining <= 0 || remaining > ttl {
		t.Fatalf("expected ttl within (0, %v], got %v", ttl, remaining)
	}
}

func TestBlacklistRepository_SelfPrunes(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewBlacklistRepository(client, "token_blacklist")

	ctx := context.Background()
	if err := repo.Blacklist(ctx, "jti-expiring", time.Minute); err != nil {
		t.Fatalf("Blacklist returned error: %v", err)
	}

	server.FastForward(time.Minute + time.Second)

	blacklisted, err := repo.IsBlacklisted(ctx, "jti-expiring")
	if err != nil {
		t.Fatalf("IsBlacklisted returned error: %v", err)
	}
	if blacklisted {
		t.Fatalf("expected entry to expire with the token")
	}
}

func TestBlacklistRepository_InvalidInput(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewBlacklistRepository(client, "")

	ctx := context.Background()
	if err := repo.Blacklist(ctx, "", time.Minute); err == nil {
		t.Fatalf("expected error for empty jti")
	}
	if err := repo.Blacklist(ctx, "jti", 0); err == nil {
		t.Fatalf("expected error for non-positive ttl")
	}
	if _, err := repo.IsBlacklisted(ctx, "  "); err == nil {
		t.Fatalf("expected error for blank jti")
	}
}

func TestSessionTokenRepository_TrackListClear(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewSessionTokenRepository(client, "session_tokens")

	ctx := context.Background()
	expires := time.Now().UTC().Add(time.Hour).Truncate(time.Second)

	for _, jti := range []string{"jti-a", "jti-b"} {
		err := repo.Track(ctx, domain.IssuedToken{JTI: jti, SessionID: "sess-1", ExpiresAt: expires})
		if err != nil {
			t.Fatalf("Track returned error: %v", err)
		}
	}

	tokens, err := repo.List(ctx, "sess-1")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("expected 2 tracked tokens, got %d", len(tokens))
	}
	for _, token := range tokens {
		if !token.ExpiresAt.Equal(expires) {
			t.Fatalf("expected expiry %v, got %v", expires, token.ExpiresAt)
		}
	}

	if err := repo.Clear(ctx, "sess-1"); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}

	tokens, err = repo.List(ctx, "sess-1")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(tokens) != 0 {
		t.Fatalf("expected empty index after clear, got %d entries", len(tokens))
	}
}

func TestSessionTokenRepository_SkipsExpiredToken(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewSessionTokenRepository(client, "session_tokens")

	ctx := context.Background()
	err := repo.Track(ctx, domain.IssuedToken{
		JTI:       "jti-old",
		SessionID: "sess-2",
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("Track returned error: %v", err)
	}

	tokens, err := repo.List(ctx, "sess-2")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(tokens) != 0 {
		t.Fatalf("expected expired token to be skipped, got %d entries", len(tokens))
	}
}
