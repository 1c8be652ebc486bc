package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/student-platform-auth/internal/core/domain"
	"github.com/arklim/student-platform-auth/internal/core/port"
)

// AttemptRepository persists JSON-encoded attempt records in Redis. Keys are
// produced by domain.LockoutIdentity and expire with the record's TTL, so
// stale lockout state never needs explicit cleanup.
type AttemptRepository struct {
	client *red.Client
}

// NewAttemptRepository wires a Redis client into an attempt store.
func NewAttemptRepository(client *red.Client) *AttemptRepository {
	return &AttemptRepository{client: client}
}

// Get loads the attempt record for the key, nil when none exists.
func (r *AttemptRepository) Get(ctx context.Context, key string) (*domain.AttemptRecord, error) {
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("key must not be empty")
	}

	payload, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get attempt record: %w", err)
	}

	var record domain.AttemptRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return nil, fmt.Errorf("decode attempt record: %w", err)
	}

	return &record, nil
}

// Save stores the record with the supplied TTL.
func (r *AttemptRepository) Save(ctx context.Context, key string, record domain.AttemptRecord, ttl time.Duration) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("key must not be empty")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode attempt record: %w", err)
	}

	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set attempt record: %w", err)
	}

	return nil
}

// Delete removes the record immediately, resetting the identity's standing.
func (r *AttemptRepository) Delete(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("key must not be empty")
	}

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del attempt record: %w", err)
	}

	return nil
}

var _ port.AttemptStore = (*AttemptRepository)(nil)
