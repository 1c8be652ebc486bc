package handlers

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/student-platform-auth/internal/infra/security"
	"github.com/arklim/student-platform-auth/internal/transport/http/middleware"
	"github.com/arklim/student-platform-auth/internal/usecase"
)

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	auth   *usecase.AuthService
	tokens *usecase.TokenService
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService, tokens *usecase.TokenService) *AuthHandler {
	return &AuthHandler{auth: auth, tokens: tokens}
}

// RegisterRoutes binds authentication routes, applying optional middleware ahead of specific handlers.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, registerLimiter, refreshLimiter gin.HandlerFunc) {
	register := []gin.HandlerFunc{}
	if registerLimiter != nil {
		register = append(register, registerLimiter)
	}
	register = append(register, h.register)
	r.POST("/register", register...)

	r.POST("/login", h.login)

	refresh := []gin.HandlerFunc{}
	if refreshLimiter != nil {
		refresh = append(refresh, refreshLimiter)
	}
	refresh = append(refresh, h.refresh)
	r.POST("/refresh", refresh...)

	r.POST("/logout", middleware.RequireAuth(h.tokens), h.logout)
}

func (h *AuthHandler) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	user, err := h.auth.Register(c.Request.Context(), usecase.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		var validation *security.PasswordValidationError
		if errors.As(err, &validation) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, validation.Error()))
			return
		}

		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPasswordBreached, Status: http.StatusBadRequest, Message: "password found in a known data breach, choose a different one"},
			{Err: usecase.ErrEmailTaken, Status: http.StatusConflict, Message: "email already registered"},
		}, http.StatusInternalServerError, "registration failed")
		return
	}

	c.JSON(http.StatusCreated, RegisterResponse{User: newUserSummary(*user)})
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), usecase.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		var locked *usecase.LockedError
		if errors.As(err, &locked) {
			respondLocked(c, locked)
			return
		}

		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid email or password"},
			{Err: usecase.ErrInactiveAccount, Status: http.StatusForbidden, Message: "account is not active"},
		}, http.StatusInternalServerError, "login failed")
		return
	}

	if result.PriorFailures > 0 {
		c.Set(middleware.PriorFailuresKey, result.PriorFailures)
	}

	c.JSON(http.StatusOK, LoginResponse{
		User:    newUserSummary(result.User),
		Session: newSessionSummary(result.Session, result.Session.ID),
		Tokens:  newTokenPairResponse(result.Tokens),
	})
}

func (h *AuthHandler) refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "refresh_token is required"))
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrTokenBlacklisted, Status: http.StatusUnauthorized, Message: "refresh token revoked"},
			{Err: usecase.ErrInvalidRefreshToken, Status: http.StatusUnauthorized, Message: "invalid refresh token"},
		}, http.StatusInternalServerError, "token refresh failed")
		return
	}

	c.JSON(http.StatusOK, newTokenPairResponse(pair))
}

func (h *AuthHandler) logout(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)
	if sessionID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	presented := []string{bearerToken(c)}

	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
		presented = append(presented, req.RefreshToken)
	}

	if err := h.auth.Logout(c.Request.Context(), sessionID, presented...); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "logout failed"))
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}

func respondLocked(c *gin.Context, locked *usecase.LockedError) {
	retrySeconds := int(math.Ceil(locked.RetryAfter.Seconds()))
	if retrySeconds < 0 {
		retrySeconds = 0
	}

	c.Header("Retry-After", strconv.Itoa(retrySeconds))
	c.JSON(http.StatusTooManyRequests, LockedResponse{
		Success:    false,
		Message:    fmt.Sprintf("Too many failed attempts. Try again in %d seconds.", retrySeconds),
		RetryAfter: retrySeconds,
		Type:       locked.Reason,
	})
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
