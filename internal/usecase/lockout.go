package usecase

import (
	"context"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/student-platform-auth/internal/core/domain"
	"github.com/arklim/student-platform-auth/internal/core/port"
	"github.com/arklim/student-platform-auth/internal/infra/logger"
)

// Decision is the outcome of a lockout evaluation. When the store is
// unreachable the engine fails open: Allowed is true and FailedOpen records
// that the decision was degraded.
type Decision struct {
	Allowed    bool
	Reason     string
	RetryAfter time.Duration
	Attempts   int
	FailedOpen bool
	Record     *domain.AttemptRecord
}

// LockoutService implements progressive lockout over an attempt store.
// Availability wins over strictness: storage errors never deny a login.
type LockoutService struct {
	store   port.AttemptStore
	events  port.EventPublisher
	metrics port.LockoutMetrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewLockoutService constructs a LockoutService. Events and metrics are
// optional; a nil logger falls back to a no-op logger.
func NewLockoutService(store port.AttemptStore, events port.EventPublisher, metrics port.LockoutMetrics, log *zap.Logger) *LockoutService {
	if log == nil {
		log = zap.NewNop()
	}
	return &LockoutService{
		store:   store,
		events:  events,
		metrics: metrics,
		logger:  log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock for deterministic tests.
func (s *LockoutService) WithClock(clock func() time.Time) *LockoutService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Check evaluates whether the identity may attempt authentication right now.
// It never mutates state.
func (s *LockoutService) Check(ctx context.Context, identity domain.LockoutIdentity) Decision {
	record, err := s.store.Get(ctx, identity.Key())
	if err != nil {
		return s.failOpen(identity, "check", err)
	}
	if record == nil {
		return Decision{Allowed: true}
	}

	now := s.now()
	if record.IsBlocked(now) {
		return Decision{
			Allowed:    false,
			Reason:     domain.LockReasonAccountLocked,
			RetryAfter: record.RetryAfter(now),
			Attempts:   record.Attempts,
			Record:     record,
		}
	}

	if record.WindowExpired(now) {
		return Decision{Allowed: true}
	}

	return Decision{Allowed: true, Attempts: record.Attempts, Record: record}
}

// RecordFailure registers a failed authentication attempt and returns the
// resulting decision. Counts reset after an hour of inactivity; crossing a
// step threshold blocks the identity and re-arms the record TTL to the block
// duration so the lock outlives the rolling window.
func (s *LockoutService) RecordFailure(ctx context.Context, identity domain.LockoutIdentity) Decision {
	key := identity.Key()

	record, err := s.store.Get(ctx, key)
	if err != nil {
		return s.failOpen(identity, "record failure", err)
	}
	if record == nil {
		record = &domain.AttemptRecord{}
	}

	now := s.now()
	if record.IsBlocked(now) {
		return Decision{
			Allowed:    false,
			Reason:     domain.LockReasonAccountLocked,
			RetryAfter: record.RetryAfter(now),
			Attempts:   record.Attempts,
			Record:     record,
		}
	}

	if record.WindowExpired(now) {
		record.Attempts = 0
	}

	record.Attempts++
	record.LastAttempt = now
	record.Blocked = false
	record.BlockUntil = nil

	ttl := domain.AttemptWindow
	decision := Decision{Allowed: true, Attempts: record.Attempts, Record: record}

	if duration := domain.BlockDuration(record.Attempts); duration > 0 {
		until := now.Add(duration)
		record.Blocked = true
		record.BlockUntil = &until
		ttl = duration

		decision = Decision{
			Allowed:    false,
			Reason:     domain.LockReasonProgressiveLock,
			RetryAfter: duration,
			Attempts:   record.Attempts,
			Record:     record,
		}

		s.logger.Warn("progressive lockout triggered",
			zap.String("ip", logger.MaskIP(identity.IP)),
			zap.String("identifier", logger.MaskEmail(identity.Identifier)),
			zap.Int("attempts", record.Attempts),
			zap.Duration("block_duration", duration),
		)

		if s.metrics != nil {
			s.metrics.IncLock(decision.Reason)
		}
		s.publishLockout(ctx, identity, decision, until, now)
	}

	if err := s.store.Save(ctx, key, *record, ttl); err != nil {
		s.logger.Error("failed to persist attempt record",
			zap.String("ip", logger.MaskIP(identity.IP)),
			zap.Error(err),
		)
		if s.metrics != nil {
			s.metrics.IncFailOpen()
		}
		decision.FailedOpen = true
	}

	return decision
}

// Clear drops the attempt record after a successful authentication.
func (s *LockoutService) Clear(ctx context.Context, identity domain.LockoutIdentity) error {
	if err := s.store.Delete(ctx, identity.Key()); err != nil {
		return fmt.Errorf("clear attempt record: %w", err)
	}
	return nil
}

func (s *LockoutService) failOpen(identity domain.LockoutIdentity, op string, err error) Decision {
	s.logger.Error("lockout store unavailable, failing open",
		zap.String("operation", op),
		zap.String("ip", logger.MaskIP(identity.IP)),
		zap.Error(err),
	)
	if s.metrics != nil {
		s.metrics.IncFailOpen()
	}
	return Decision{Allowed: true, FailedOpen: true}
}

func (s *LockoutService) publishLockout(ctx context.Context, identity domain.LockoutIdentity, decision Decision, until, at time.Time) {
	if s.events == nil {
		return
	}

	event := domain.LockoutTriggeredEvent{
		EventID:    uuid.NewString(),
		IP:         identity.IP,
		Identifier: identity.Identifier,
		Attempts:   decision.Attempts,
		Reason:     decision.Reason,
		BlockUntil: until,
		At:         at,
	}
	if event.Identifier == "" {
		event.Identifier = domain.UnknownIdentifier
	}

	if err := s.events.PublishLockoutTriggered(ctx, event); err != nil {
		s.logger.Warn("failed to publish lockout event", zap.Error(err))
	}
}
