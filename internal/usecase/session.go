package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/student-platform-auth/internal/core/domain"
	"github.com/arklim/student-platform-auth/internal/core/port"
	"github.com/arklim/student-platform-auth/internal/repository"
)

// Session revocation reasons carried on events.
const (
	RevokeReasonLogout      = "logout"
	RevokeReasonEvicted     = "concurrent_limit"
	RevokeReasonUserRequest = "user_request"
)

// ErrSessionNotFound indicates the session does not exist.
var ErrSessionNotFound = errors.New("session not found")

// tokenRevoker lets the registry cancel outstanding refresh tokens when a
// session dies without depending on the full token service.
type tokenRevoker interface {
	RevokeAllForSession(ctx context.Context, sessionID string) (int, error)
}

// CreateSessionInput carries the request context of a new login.
type CreateSessionInput struct {
	UserID      string
	IPAddress   string
	UserAgent   string
	LoginMethod domain.LoginMethod
	Location    *string
}

// SessionService maintains the registry of authenticated devices per user.
type SessionService struct {
	sessions      port.SessionRepository
	revoker       tokenRevoker
	events        port.EventPublisher
	maxConcurrent int
	logger        *zap.Logger
	now           func() time.Time
}

// NewSessionService constructs a SessionService. maxConcurrent caps live
// sessions per user; values below one disable the cap.
func NewSessionService(sessions port.SessionRepository, revoker tokenRevoker, events port.EventPublisher, maxConcurrent int, log *zap.Logger) *SessionService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionService{
		sessions:      sessions,
		revoker:       revoker,
		events:        events,
		maxConcurrent: maxConcurrent,
		logger:        log,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock for deterministic tests.
func (s *SessionService) WithClock(clock func() time.Time) *SessionService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Create registers a new session, inferring the device type from the user
// agent. When the user is at the concurrent cap, the session with the oldest
// activity is evicted first.
func (s *SessionService) Create(ctx context.Context, input CreateSessionInput) (*domain.Session, error) {
	if input.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	now := s.now()

	if s.maxConcurrent > 0 {
		if err := s.evictAtCap(ctx, input.UserID, now); err != nil {
			return nil, err
		}
	}

	method := input.LoginMethod
	if method == "" {
		method = domain.LoginMethodPassword
	}

	session := domain.Session{
		ID:           uuid.NewString(),
		UserID:       input.UserID,
		IPAddress:    input.IPAddress,
		UserAgent:    input.UserAgent,
		DeviceType:   domain.DeviceTypeFromUserAgent(input.UserAgent),
		LoginMethod:  method,
		IsActive:     true,
		CreatedAt:    now,
		LastActivity: now,
		Location:     input.Location,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &session, nil
}

// evictAtCap deactivates the oldest-by-activity session when the user already
// holds the maximum number of live sessions.
func (s *SessionService) evictAtCap(ctx context.Context, userID string, now time.Time) error {
	active, err := s.sessions.ListActiveByUser(ctx, userID, now)
	if err != nil {
		return fmt.Errorf("list active sessions: %w", err)
	}
	if len(active) < s.maxConcurrent {
		return nil
	}

	// ListActiveByUser orders newest first, so victims sit at the tail.
	// Evict enough to leave room for the incoming session.
	evict := len(active) - s.maxConcurrent + 1
	for i := 0; i < evict; i++ {
		victim := active[len(active)-1-i]
		if err := s.revoke(ctx, victim, RevokeReasonEvicted); err != nil {
			return err
		}
		s.logger.Info("evicted session at concurrent cap",
			zap.String("user_id", userID),
			zap.String("session_id", victim.ID),
			zap.Time("last_activity", victim.LastActivity),
		)
	}

	return nil
}

// ListActive returns the user's live sessions, newest activity first.
func (s *SessionService) ListActive(ctx context.Context, userID string) ([]domain.Session, error) {
	sessions, err := s.sessions.ListActiveByUser(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return sessions, nil
}

// GetByID returns a session by identifier.
func (s *SessionService) GetByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// Touch bumps the session's last-activity timestamp.
func (s *SessionService) Touch(ctx context.Context, sessionID string) error {
	if err := s.sessions.Touch(ctx, sessionID, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// Deactivate terminates one session, revoking its outstanding refresh tokens.
func (s *SessionService) Deactivate(ctx context.Context, sessionID, reason string) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("get session: %w", err)
	}

	return s.revoke(ctx, *session, reason)
}

// DeactivateOthers terminates every live session of the user except the one
// given, returning the number of sessions closed.
func (s *SessionService) DeactivateOthers(ctx context.Context, userID, keepSessionID string) (int, error) {
	active, err := s.sessions.ListActiveByUser(ctx, userID, s.now())
	if err != nil {
		return 0, fmt.Errorf("list active sessions: %w", err)
	}

	victims := make([]domain.Session, 0, len(active))
	for _, session := range active {
		if session.ID != keepSessionID {
			victims = append(victims, session)
		}
	}
	if len(victims) == 0 {
		return 0, nil
	}

	// One bulk flip instead of a round trip per session. Token revocation and
	// events still run per session afterwards.
	if _, err := s.sessions.DeactivateAllForUser(ctx, userID, keepSessionID); err != nil {
		return 0, fmt.Errorf("deactivate sessions: %w", err)
	}

	for _, session := range victims {
		s.revokeTokensAndNotify(ctx, session, RevokeReasonUserRequest)
	}

	return len(victims), nil
}

// DeleteIdle removes sessions whose last activity predates the idle horizon.
// Intended to run periodically as a sweep.
func (s *SessionService) DeleteIdle(ctx context.Context) (int, error) {
	horizon := s.now().Add(-domain.SessionIdleHorizon)
	count, err := s.sessions.DeleteIdleBefore(ctx, horizon)
	if err != nil {
		return 0, fmt.Errorf("delete idle sessions: %w", err)
	}
	if count > 0 {
		s.logger.Info("removed idle sessions", zap.Int("count", count))
	}
	return count, nil
}

func (s *SessionService) revoke(ctx context.Context, session domain.Session, reason string) error {
	if err := s.sessions.Deactivate(ctx, session.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("deactivate session: %w", err)
	}

	s.revokeTokensAndNotify(ctx, session, reason)
	return nil
}

func (s *SessionService) revokeTokensAndNotify(ctx context.Context, session domain.Session, reason string) {
	revoked := 0
	if s.revoker != nil {
		count, err := s.revoker.RevokeAllForSession(ctx, session.ID)
		if err != nil {
			s.logger.Warn("failed to revoke session tokens",
				zap.String("session_id", session.ID),
				zap.Error(err),
			)
		} else {
			revoked = count
		}
	}

	if s.events != nil {
		event := domain.SessionRevokedEvent{
			EventID:       uuid.NewString(),
			SessionID:     session.ID,
			UserID:        session.UserID,
			Reason:        reason,
			TokensRevoked: revoked,
			At:            s.now(),
		}
		if err := s.events.PublishSessionRevoked(ctx, event); err != nil {
			s.logger.Warn("failed to publish session revoked event", zap.Error(err))
		}
	}
}
