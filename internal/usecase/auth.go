package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/student-platform-auth/internal/core/domain"
	"github.com/arklim/student-platform-auth/internal/core/port"
	"github.com/arklim/student-platform-auth/internal/infra/logger"
	"github.com/arklim/student-platform-auth/internal/infra/security"
	"github.com/arklim/student-platform-auth/internal/repository"
)

var (
	// ErrInvalidCredentials indicates the email or password is incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInactiveAccount indicates the account is disabled.
	ErrInactiveAccount = errors.New("account is not active")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrPasswordBreached indicates the password appears in a known breach corpus.
	ErrPasswordBreached = errors.New("password found in breach corpus")
)

// LockedError is returned when the lockout engine denies an attempt. It
// carries what the 429 response needs.
type LockedError struct {
	Reason     string
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("authentication locked (%s), retry in %s", e.Reason, e.RetryAfter)
}

// RegisterInput carries a registration request.
type RegisterInput struct {
	Email    string
	Username string
	Password string
}

// LoginInput carries a login request with its client context.
type LoginInput struct {
	Email     string
	Password  string
	IP        string
	UserAgent string
	Location  *string
}

// LoginResult bundles everything a successful login produces.
type LoginResult struct {
	User    domain.User
	Session domain.Session
	Tokens  domain.TokenPair
	// PriorFailures is the number of failed attempts recorded for this
	// IP/account bucket before the successful login cleared it.
	PriorFailures int
}

// AuthService orchestrates registration, login, refresh, and logout across
// the lockout engine, breach screener, token service, and session registry.
type AuthService struct {
	users     port.UserRepository
	lockout   *LockoutService
	tokens    *TokenService
	sessions  *SessionService
	breach    port.BreachChecker
	validator *security.PasswordValidator
	events    port.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(
	users port.UserRepository,
	lockout *LockoutService,
	tokens *TokenService,
	sessions *SessionService,
	breach port.BreachChecker,
	validator *security.PasswordValidator,
	events port.EventPublisher,
	log *zap.Logger,
) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	return &AuthService{
		users:     users,
		lockout:   lockout,
		tokens:    tokens,
		sessions:  sessions,
		breach:    breach,
		validator: validator,
		events:    events,
		logger:    log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock for deterministic tests.
func (s *AuthService) WithClock(clock func() time.Time) *AuthService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Register validates the password against policy and the breach corpus, then
// creates the account.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}

	if err := s.validator.Validate(input.Password); err != nil {
		return nil, err
	}

	if s.breach != nil && s.breach.IsBreached(ctx, input.Password) {
		s.logger.Warn("registration rejected, password found in breach corpus",
			zap.String("email", logger.MaskEmail(email)),
		)
		s.publishBreachDetected(ctx, email)
		return nil, ErrPasswordBreached
	}

	if existing, err := s.users.GetByEmail(ctx, email); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("lookup user: %w", err)
		}
	} else if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    s.now(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	user.PasswordHash = ""
	return &user, nil
}

// Login authenticates credentials behind the lockout gate and establishes a
// session with a fresh token pair.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, ErrInvalidCredentials
	}

	identity := domain.LockoutIdentity{IP: input.IP, Identifier: email}

	decision := s.lockout.Check(ctx, identity)
	if !decision.Allowed {
		return nil, &LockedError{Reason: decision.Reason, RetryAfter: decision.RetryAfter}
	}
	if decision.Attempts > 0 {
		s.logger.Info("login attempt with prior failures",
			zap.String("email", logger.MaskEmail(email)),
			zap.String("ip", logger.MaskIP(input.IP)),
			zap.Int("prior_failures", decision.Attempts),
		)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, s.failAttempt(ctx, identity)
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, s.failAttempt(ctx, identity)
	}

	if !user.IsActive {
		return nil, ErrInactiveAccount
	}

	if err := s.lockout.Clear(ctx, identity); err != nil {
		s.logger.Warn("failed to clear attempt record",
			zap.String("email", logger.MaskEmail(email)),
			zap.Error(err),
		)
	}

	session, err := s.sessions.Create(ctx, CreateSessionInput{
		UserID:      user.ID,
		IPAddress:   input.IP,
		UserAgent:   input.UserAgent,
		LoginMethod: domain.LoginMethodPassword,
		Location:    input.Location,
	})
	if err != nil {
		return nil, err
	}

	pair, err := s.tokens.GeneratePair(ctx, user.ID, session.ID)
	if err != nil {
		return nil, err
	}

	s.publishLoggedIn(ctx, *user, *session)

	sanitized := *user
	sanitized.PasswordHash = ""
	return &LoginResult{
		User:          sanitized,
		Session:       *session,
		Tokens:        pair,
		PriorFailures: decision.Attempts,
	}, nil
}

// Refresh rotates a refresh token and bumps the session's activity. The
// session must still be live.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	claims, err := s.tokens.ValidateRefreshToken(ctx, refreshToken)
	if err != nil {
		return domain.TokenPair{}, err
	}

	session, err := s.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return domain.TokenPair{}, ErrInvalidRefreshToken
		}
		return domain.TokenPair{}, err
	}
	if !session.IsLive(s.now()) {
		return domain.TokenPair{}, ErrInvalidRefreshToken
	}

	pair, _, err := s.tokens.Rotate(ctx, refreshToken)
	if err != nil {
		return domain.TokenPair{}, err
	}

	if err := s.sessions.Touch(ctx, session.ID); err != nil {
		s.logger.Warn("failed to touch session on refresh",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
	}

	return pair, nil
}

// Logout revokes the presented tokens and terminates the session.
func (s *AuthService) Logout(ctx context.Context, sessionID string, presentedTokens ...string) error {
	for _, token := range presentedTokens {
		if strings.TrimSpace(token) == "" {
			continue
		}
		if err := s.tokens.BlacklistToken(ctx, token); err != nil {
			s.logger.Warn("failed to blacklist token on logout",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
	}

	if err := s.sessions.Deactivate(ctx, sessionID, RevokeReasonLogout); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			// Already gone, logout is idempotent.
			return nil
		}
		return err
	}

	return nil
}

// failAttempt records the failure and maps the outcome to the caller-facing
// error: a lock decision surfaces as LockedError, otherwise the generic
// invalid-credentials error keeps account existence private.
func (s *AuthService) failAttempt(ctx context.Context, identity domain.LockoutIdentity) error {
	decision := s.lockout.RecordFailure(ctx, identity)
	if !decision.Allowed {
		return &LockedError{Reason: decision.Reason, RetryAfter: decision.RetryAfter}
	}
	return ErrInvalidCredentials
}

func (s *AuthService) publishLoggedIn(ctx context.Context, user domain.User, session domain.Session) {
	if s.events == nil {
		return
	}
	event := domain.UserLoggedInEvent{
		EventID:     uuid.NewString(),
		UserID:      user.ID,
		SessionID:   session.ID,
		IP:          session.IPAddress,
		DeviceType:  string(session.DeviceType),
		LoginMethod: string(session.LoginMethod),
		At:          s.now(),
	}
	if err := s.events.PublishUserLoggedIn(ctx, event); err != nil {
		s.logger.Warn("failed to publish login event", zap.Error(err))
	}
}

func (s *AuthService) publishBreachDetected(ctx context.Context, identifier string) {
	if s.events == nil {
		return
	}
	event := domain.PasswordBreachDetectedEvent{
		EventID:    uuid.NewString(),
		Identifier: identifier,
		At:         s.now(),
	}
	if err := s.events.PublishPasswordBreachDetected(ctx, event); err != nil {
		s.logger.Warn("failed to publish breach event", zap.Error(err))
	}
}
