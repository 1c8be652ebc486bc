package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/student-platform-auth/internal/core/domain"
	"github.com/arklim/student-platform-auth/internal/core/port"
)

const (
	defaultBlacklistPrefix    = "token_blacklist"
	defaultSessionTokenPrefix = "session_tokens"
)

// BlacklistRepository manages revoked token identifiers backed by Redis.
// Entries expire with the token they shadow, so the denylist never grows
// unbounded.
type BlacklistRepository struct {
	client *red.Client
	prefix string
}

// NewBlacklistRepository wires a Redis client into a blacklist store.
func NewBlacklistRepository(client *red.Client, keyPrefix string) *BlacklistRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultBlacklistPrefix
	}

	return &BlacklistRepository{client: client, prefix: prefix}
}

// Blacklist stores the JTI with TTL matching the token's remaining validity.
func (r *BlacklistRepository) Blacklist(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	key := r.key(jti)
	if key == "" {
		return errors.New("jti must not be empty")
	}

	if err := r.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis set blacklisted jti: %w", err)
	}

	return nil
}

// IsBlacklisted reports whether the JTI has been revoked.
func (r *BlacklistRepository) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	key := r.key(jti)
	if key == "" {
		return false, errors.New("jti must not be empty")
	}

	count, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists blacklisted jti: %w", err)
	}

	return count > 0, nil
}

func (r *BlacklistRepository) key(jti string) string {
	trimmed := strings.TrimSpace(jti)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.prefix, trimmed)
}

var _ port.TokenBlacklistStore = (*BlacklistRepository)(nil)

// SessionTokenRepository indexes outstanding refresh token JTIs per session in
// a Redis hash (field = JTI, value = unix expiry). The hash expires with the
// longest-lived token it references.
type SessionTokenRepository struct {
	client *red.Client
	prefix string
}

// NewSessionTokenRepository wires a Redis client into a session token index.
func NewSessionTokenRepository(client *red.Client, keyPrefix string) *SessionTokenRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultSessionTokenPrefix
	}

	return &SessionTokenRepository{client: client, prefix: prefix}
}

// Track records an issued refresh token against its session.
func (r *SessionTokenRepository) Track(ctx context.Context, token domain.IssuedToken) error {
	if strings.TrimSpace(token.JTI) == "" {
		return errors.New("jti must not be empty")
	}
	key := r.key(token.SessionID)
	if key == "" {
		return errors.New("session id must not be empty")
	}

	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	if err := r.client.HSet(ctx, key, token.JTI, strconv.FormatInt(token.ExpiresAt.UTC().Unix(), 10)).Err(); err != nil {
		return fmt.Errorf("redis hset session token: %w", err)
	}

	// Extend the hash lifetime to cover the newest token.
	if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("redis expire session tokens: %w", err)
	}

	return nil
}

// List returns the outstanding tokens recorded for the session.
func (r *SessionTokenRepository) List(ctx context.Context, sessionID string) ([]domain.IssuedToken, error) {
	key := r.key(sessionID)
	if key == "" {
		return nil, errors.New("session id must not be empty")
	}

	entries, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall session tokens: %w", err)
	}

	tokens := make([]domain.IssuedToken, 0, len(entries))
	for jti, raw := range entries {
		unix, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		tokens = append(tokens, domain.IssuedToken{
			JTI:       jti,
			SessionID: sessionID,
			ExpiresAt: time.Unix(unix, 0).UTC(),
		})
	}

	return tokens, nil
}

// Clear drops the session's token index after bulk revocation.
func (r *SessionTokenRepository) Clear(ctx context.Context, sessionID string) error {
	key := r.key(sessionID)
	if key == "" {
		return errors.New("session id must not be empty")
	}

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del session tokens: %w", err)
	}

	return nil
}

func (r *SessionTokenRepository) key(sessionID string) string {
	trimmed := strings.TrimSpace(sessionID)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.prefix, trimmed)
}

var _ port.SessionTokenIndex = (*SessionTokenRepository)(nil)
