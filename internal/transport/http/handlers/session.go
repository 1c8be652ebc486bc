package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/student-platform-auth/internal/transport/http/middleware"
	"github.com/arklim/student-platform-auth/internal/usecase"
)

// SessionHandler exposes endpoints for managing the caller's sessions.
type SessionHandler struct {
	sessions *usecase.SessionService
	tokens   *usecase.TokenService
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(sessions *usecase.SessionService, tokens *usecase.TokenService) *SessionHandler {
	return &SessionHandler{sessions: sessions, tokens: tokens}
}

// RegisterRoutes binds session management routes. All routes require auth.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	auth := middleware.RequireAuth(h.tokens)
	r.GET("", auth, h.ListSessions)
	r.DELETE("", auth, h.RevokeOtherSessions)
	r.DELETE("/:session_id", auth, h.RevokeSession)
}

// ListSessions returns the caller's live sessions, newest activity first.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	sessions, err := h.sessions.ListActive(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list sessions"))
		return
	}

	currentID := middleware.GetSessionID(c)
	summaries := make([]SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		summaries = append(summaries, newSessionSummary(session, currentID))
	}

	c.JSON(http.StatusOK, SessionListResponse{Sessions: summaries})
}

// RevokeSession terminates one of the caller's sessions by ID.
func (h *SessionHandler) RevokeSession(c *gin.Context) {
	userID := middleware.GetUserID(c)
	sessionID := c.Param("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "session_id is required"))
		return
	}

	session, err := h.sessions.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, usecase.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse(c, "session not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to revoke session"))
		return
	}

	// Callers can only touch their own sessions.
	if session.UserID != userID {
		c.JSON(http.StatusNotFound, NewErrorResponse(c, "session not found"))
		return
	}

	if err := h.sessions.Deactivate(c.Request.Context(), sessionID, usecase.RevokeReasonUserRequest); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to revoke session"))
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "session revoked"})
}

// RevokeOtherSessions terminates every session of the caller except the
// current one.
func (h *SessionHandler) RevokeOtherSessions(c *gin.Context) {
	userID := middleware.GetUserID(c)
	currentID := middleware.GetSessionID(c)
	if userID == "" || currentID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	revoked, err := h.sessions.DeactivateOthers(c.Request.Context(), userID, currentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to revoke sessions"))
		return
	}

	c.JSON(http.StatusOK, RevokedResponse{Revoked: revoked})
}
