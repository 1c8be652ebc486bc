package port

import (
	"context"
	"time"
)

// RateLimitStore maintains fixed-window request counters. Increment must be
// atomic with respect to concurrent callers on the same key.
type RateLimitStore interface {
	// Increment bumps the counter for the key, starting a new window with the
	// given TTL when none exists, and returns the updated count.
	Increment(ctx context.Context, key string, window time.Duration) (int, error)
}
