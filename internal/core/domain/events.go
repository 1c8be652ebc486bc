package domain

import "time"

// LockoutTriggeredEvent is published when the progressive engine blocks an
// identity. Email and IP are masked before publication.
type LockoutTriggeredEvent struct {
	EventID    string
	IP         string
	Identifier string
	Attempts   int
	Reason     string
	BlockUntil time.Time
	At         time.Time
}

// UserLoggedInEvent is published after a successful authentication.
type UserLoggedInEvent struct {
	EventID     string
	UserID      string
	SessionID   string
	IP          string
	DeviceType  string
	LoginMethod string
	At          time.Time
}

// SessionRevokedEvent is published when a session is deactivated, whether by
// logout, cap eviction, or forced termination.
type SessionRevokedEvent struct {
	EventID       string
	SessionID     string
	UserID        string
	Reason        string
	TokensRevoked int
	At            time.Time
}

// PasswordBreachDetectedEvent is published when a submitted password matches
// the compromised-password corpus. The password itself never appears.
type PasswordBreachDetectedEvent struct {
	EventID    string
	Identifier string
	At         time.Time
}
