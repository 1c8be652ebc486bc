package domain

import (
	"fmt"
	"strings"
	"time"
)

// UnknownIdentifier is substituted when a login attempt carries no account
// identifier. All anonymous attempts from one IP share a single bucket.
const UnknownIdentifier = "unknown"

// AttemptWindow is the rolling inactivity window after which a non-blocked
// identity's failure count resets to zero.
const AttemptWindow = time.Hour

// Lock reason codes surfaced in 429 responses.
const (
	LockReasonAccountLocked   = "ACCOUNT_LOCKED"
	LockReasonProgressiveLock = "PROGRESSIVE_LOCK"
)

// LockoutIdentity buckets throttling state by client IP and account identifier.
type LockoutIdentity struct {
	IP         string
	Identifier string
}

// Key renders the storage key for this identity. A missing identifier maps to
// the shared "unknown" bucket, merging all anonymous attempts from the same
// IP into one counter.
func (i LockoutIdentity) Key() string {
	identifier := strings.ToLower(strings.TrimSpace(i.Identifier))
	if identifier == "" {
		identifier = UnknownIdentifier
	}
	return fmt.Sprintf("auth_attempts:%s:%s", strings.TrimSpace(i.IP), identifier)
}

// AttemptRecord tracks failed authentication attempts for one identity.
type AttemptRecord struct {
	Attempts    int        `json:"attempts"`
	LastAttempt time.Time  `json:"last_attempt"`
	Blocked     bool       `json:"blocked"`
	BlockUntil  *time.Time `json:"block_until,omitempty"`
}

// IsBlocked reports whether the record denies attempts at the supplied moment.
func (r AttemptRecord) IsBlocked(at time.Time) bool {
	return r.Blocked && r.BlockUntil != nil && r.BlockUntil.After(at)
}

// RetryAfter returns the remaining block duration, zero when not blocked.
func (r AttemptRecord) RetryAfter(at time.Time) time.Duration {
	if !r.IsBlocked(at) {
		return 0
	}
	return r.BlockUntil.Sub(at)
}

// WindowExpired reports whether the inactivity window has elapsed, meaning
// the failure count should reset before the next increment.
func (r AttemptRecord) WindowExpired(at time.Time) bool {
	if r.Blocked {
		return false
	}
	return !r.LastAttempt.IsZero() && at.Sub(r.LastAttempt) > AttemptWindow
}

// BlockDuration maps an attempt count to the progressive block duration.
// The step function is monotonically non-decreasing: the first three failures
// never block, then 15m, 1h, 4h, and finally a full day.
func BlockDuration(attempts int) time.Duration {
	switch {
	case attempts <= 3:
		return 0
	case attempts <= 5:
		return 15 * time.Minute
	case attempts <= 8:
		return 60 * time.Minute
	case attempts <= 12:
		return 240 * time.Minute
	default:
		return 1440 * time.Minute
	}
}
