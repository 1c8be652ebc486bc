package domain

import (
	"strings"
	"time"
)

// DeviceType classifies the client device inferred from the user agent.
type DeviceType string

const (
	DeviceTypeMobile  DeviceType = "mobile"
	DeviceTypeTablet  DeviceType = "tablet"
	DeviceTypeDesktop DeviceType = "desktop"
	DeviceTypeUnknown DeviceType = "unknown"
)

// LoginMethod records how the session was established.
type LoginMethod string

const (
	LoginMethodPassword LoginMethod = "password"
	LoginMethodOAuth    LoginMethod = "oauth"
)

// SessionIdleHorizon is the fixed inactivity horizon after which sessions are
// no longer considered active and become eligible for deletion.
const SessionIdleHorizon = 30 * 24 * time.Hour

// Session represents one authenticated device for a user.
type Session struct {
	ID           string
	UserID       string
	IPAddress    string
	UserAgent    string
	DeviceType   DeviceType
	LoginMethod  LoginMethod
	IsActive     bool
	CreatedAt    time.Time
	LastActivity time.Time
	Location     *string
}

// IsLive reports whether the session is active and inside the idle horizon.
func (s Session) IsLive(at time.Time) bool {
	if !s.IsActive {
		return false
	}
	return at.Sub(s.LastActivity) < SessionIdleHorizon
}

// Touch bumps the last-activity timestamp.
func (s *Session) Touch(at time.Time) {
	s.LastActivity = at
}

// Deactivate marks the session inactive. Returns true when the state changed.
func (s *Session) Deactivate() bool {
	if !s.IsActive {
		return false
	}
	s.IsActive = false
	return true
}

// DeviceTypeFromUserAgent infers a coarse device class from the UA string.
// Tablets are matched before mobiles because tablet UAs also advertise "Mobile".
func DeviceTypeFromUserAgent(userAgent string) DeviceType {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return DeviceTypeUnknown
	}

	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return DeviceTypeTablet
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone"):
		return DeviceTypeMobile
	case strings.Contains(ua, "windows") || strings.Contains(ua, "macintosh") || strings.Contains(ua, "linux") || strings.Contains(ua, "x11"):
		return DeviceTypeDesktop
	default:
		return DeviceTypeUnknown
	}
}
