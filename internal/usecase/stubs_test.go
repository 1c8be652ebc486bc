package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/arklim/student-platform-auth/internal/core/domain"
	"github.com/arklim/student-platform-auth/internal/repository"
)

type storedAttempt struct {
	record domain.AttemptRecord
	ttl    time.Duration
}

// memoryAttemptStore is an in-memory port.AttemptStore. TTLs are recorded but
// not enforced; tests drive expiry through the service clock.
type memoryAttemptStore struct {
	mu      sync.Mutex
	records map[string]storedAttempt
	failGet error
	failSet error
}

func newMemoryAttemptStore() *memoryAttemptStore {
	return &memoryAttemptStore{records: make(map[string]storedAttempt)}
}

func (s *memoryAttemptStore) Get(_ context.Context, key string) (*domain.AttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet != nil {
		return nil, s.failGet
	}
	stored, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	record := stored.record
	return &record, nil
}

func (s *memoryAttemptStore) Save(_ context.Context, key string, record domain.AttemptRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSet != nil {
		return s.failSet
	}
	s.records[key] = storedAttempt{record: record, ttl: ttl}
	return nil
}

func (s *memoryAttemptStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func (s *memoryAttemptStore) savedTTL(key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[key].ttl
}

// memoryBlacklist is an in-memory port.TokenBlacklistStore.
type memoryBlacklist struct {
	mu        sync.Mutex
	entries   map[string]time.Duration
	failCheck error
}

func newMemoryBlacklist() *memoryBlacklist {
	return &memoryBlacklist{entries: make(map[string]time.Duration)}
}

func (s *memoryBlacklist) Blacklist(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return errors.New("invalid blacklist entry")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[jti] = ttl
	return nil
}

func (s *memoryBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCheck != nil {
		return false, s.failCheck
	}
	_, ok := s.entries[jti]
	return ok, nil
}

// memoryTokenIndex is an in-memory port.SessionTokenIndex.
type memoryTokenIndex struct {
	mu     sync.Mutex
	tokens map[string][]domain.IssuedToken
}

func newMemoryTokenIndex() *memoryTokenIndex {
	return &memoryTokenIndex{tokens: make(map[string][]domain.IssuedToken)}
}

func (s *memoryTokenIndex) Track(_ context.Context, token domain.IssuedToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.SessionID] = append(s.tokens[token.SessionID], token)
	return nil
}

func (s *memoryTokenIndex) List(_ context.Context, sessionID string) ([]domain.IssuedToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.IssuedToken(nil), s.tokens[sessionID]...), nil
}

func (s *memoryTokenIndex) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, sessionID)
	return nil
}

// memorySessionRepo is an in-memory port.SessionRepository.
type memorySessionRepo struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

func newMemorySessionRepo() *memorySessionRepo {
	return &memorySessionRepo{sessions: make(map[string]domain.Session)}
}

func (r *memorySessionRepo) Create(_ context.Context, session domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
	return nil
}

func (r *memorySessionRepo) GetByID(_ context.Context, sessionID string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &session, nil
}

func (r *memorySessionRepo) ListActiveByUser(_ context.Context, userID string, reference time.Time) ([]domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var active []domain.Session
	for _, session := range r.sessions {
		if session.UserID != userID || !session.IsLive(reference) {
			continue
		}
		active = append(active, session)
	}

	// Newest activity first, insertion order is irrelevant.
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			if active[j].LastActivity.After(active[i].LastActivity) {
				active[i], active[j] = active[j], active[i]
			}
		}
	}

	return active, nil
}

func (r *memorySessionRepo) Touch(_ context.Context, sessionID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok || !session.IsActive {
		return repository.ErrNotFound
	}
	session.LastActivity = at
	r.sessions[sessionID] = session
	return nil
}

func (r *memorySessionRepo) Deactivate(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	session.IsActive = false
	r.sessions[sessionID] = session
	return nil
}

func (r *memorySessionRepo) DeactivateAllForUser(_ context.Context, userID string, except string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for id, session := range r.sessions {
		if session.UserID != userID || !session.IsActive || id == except {
			continue
		}
		session.IsActive = false
		r.sessions[id] = session
		count++
	}
	return count, nil
}

func (r *memorySessionRepo) DeleteIdleBefore(_ context.Context, horizon time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for id, session := range r.sessions {
		if session.LastActivity.Before(horizon) {
			delete(r.sessions, id)
			count++
		}
	}
	return count, nil
}

// memoryUserRepo is an in-memory port.UserRepository keyed by lowercase email.
type memoryUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]domain.User)}
}

func (r *memoryUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == strings.ToLower(email) {
			found := user
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memoryUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (r *memoryUserRepo) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu       sync.Mutex
	lockouts []domain.LockoutTriggeredEvent
	logins   []domain.UserLoggedInEvent
	revoked  []domain.SessionRevokedEvent
	breaches []domain.PasswordBreachDetectedEvent
}

func (p *recordingPublisher) PublishLockoutTriggered(_ context.Context, event domain.LockoutTriggeredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lockouts = append(p.lockouts, event)
	return nil
}

func (p *recordingPublisher) PublishUserLoggedIn(_ context.Context, event domain.UserLoggedInEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logins = append(p.logins, event)
	return nil
}

func (p *recordingPublisher) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revoked = append(p.revoked, event)
	return nil
}

func (p *recordingPublisher) PublishPasswordBreachDetected(_ context.Context, event domain.PasswordBreachDetectedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breaches = append(p.breaches, event)
	return nil
}

// stubBreachChecker reports a fixed answer.
type stubBreachChecker struct {
	breached bool
}

func (s *stubBreachChecker) IsBreached(context.Context, string) bool {
	return s.breached
}

// manualClock advances under test control.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock(start time.Time) *manualClock {
	return &manualClock{now: start}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
