package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/student-platform-auth/internal/core/port"
)

const defaultRateLimitPrefix = "rate_limit"

// FixedWindowConfig defines configuration for the fixed window counter.
type FixedWindowConfig struct {
	KeyPrefix string
}

// RateLimitRepository maintains fixed-window counters in Redis. INCR and
// EXPIRE NX keep the update atomic per key, so concurrent requests cannot
// under-count the window.
type RateLimitRepository struct {
	client *red.Client
	cfg    FixedWindowConfig
}

// NewRateLimitRepository constructs a repository using the provided Redis client and config.
func NewRateLimitRepository(client *red.Client, cfg FixedWindowConfig) *RateLimitRepository {
	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		cfg.KeyPrefix = defaultRateLimitPrefix
	}
	return &RateLimitRepository{client: client, cfg: cfg}
}

// Increment bumps the counter, starting a fresh window when the key is new,
// and returns the updated count.
func (r *RateLimitRepository) Increment(ctx context.Context, key string, window time.Duration) (int, error) {
	if strings.TrimSpace(key) == "" {
		return 0, errors.New("key must not be empty")
	}
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}

	storageKey := fmt.Sprintf("%s:%s", r.cfg.KeyPrefix, key)

	count, err := r.client.Incr(ctx, storageKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}

	// NX leaves the window boundary untouched for subsequent hits.
	if err := r.client.ExpireNX(ctx, storageKey, window).Err(); err != nil {
		return 0, fmt.Errorf("redis expire nx: %w", err)
	}

	return int(count), nil
}

var _ port.RateLimitStore = (*RateLimitRepository)(nil)
