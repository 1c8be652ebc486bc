package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/student-platform-auth/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// LockedResponse is the 429 payload emitted when the progressive lockout
// engine denies an attempt. Type distinguishes an already standing block from
// one triggered by this attempt.
type LockedResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"`
	Type       string `json:"type"`
}

// RegisterRequest defines the payload for the registration endpoint.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest defines the payload for the token refresh endpoint.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LogoutRequest optionally carries the refresh token so it can be revoked
// together with the presented access token.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UserSummary describes a minimal view of a user returned by the API.
type UserSummary struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// TokenPairResponse carries an issued access/refresh pair.
type TokenPairResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// SessionSummary provides a compact view of one authenticated device.
type SessionSummary struct {
	ID           string            `json:"id"`
	DeviceType   domain.DeviceType `json:"device_type"`
	IPAddress    string            `json:"ip_address"`
	Location     *string           `json:"location,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	LastActivity time.Time         `json:"last_activity"`
	Current      bool              `json:"current"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	User    UserSummary       `json:"user"`
	Session SessionSummary    `json:"session"`
	Tokens  TokenPairResponse `json:"tokens"`
}

// RegisterResponse is returned by a successful registration.
type RegisterResponse struct {
	User UserSummary `json:"user"`
}

// SessionListResponse wraps the active session listing.
type SessionListResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

// RevokedResponse reports how many sessions were closed.
type RevokedResponse struct {
	Revoked int `json:"revoked"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports dependency health.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func newUserSummary(user domain.User) UserSummary {
	return UserSummary{ID: user.ID, Email: user.Email, Username: user.Username}
}

func newSessionSummary(session domain.Session, currentID string) SessionSummary {
	return SessionSummary{
		ID:           session.ID,
		DeviceType:   session.DeviceType,
		IPAddress:    session.IPAddress,
		Location:     session.Location,
		CreatedAt:    session.CreatedAt,
		LastActivity: session.LastActivity,
		Current:      session.ID == currentID,
	}
}

func newTokenPairResponse(pair domain.TokenPair) TokenPairResponse {
	return TokenPairResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}
}
