package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/arklim/student-platform-auth/internal/core/domain"
)

var (
	// ErrTokenInvalid indicates the token is malformed or its signature failed.
	ErrTokenInvalid = errors.New("jwt: token invalid")
	// ErrTokenExpired indicates the token elapsed its validity window.
	ErrTokenExpired = errors.New("jwt: token expired")
	// ErrTokenTypeMismatch indicates an access token was presented where a
	// refresh token was expected, or vice versa.
	ErrTokenTypeMismatch = errors.New("jwt: token type mismatch")
)

// TokenClaims carries subject and session context plus the type discriminator
// that prevents cross-use of access and refresh tokens.
type TokenClaims struct {
	UserID    string           `json:"uid"`
	SessionID string           `json:"sid"`
	TokenType domain.TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenIssuerOptions configures a TokenIssuer.
type TokenIssuerOptions struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// RefreshThreshold is the fraction of access TTL under which proactive
	// refresh is recommended. Defaults to 0.2.
	RefreshThreshold float64
}

const (
	defaultAccessTTL        = 15 * time.Minute
	defaultRefreshTTL       = 7 * 24 * time.Hour
	defaultRefreshThreshold = 0.2
)

// TokenIssuer mints and validates HMAC-signed access/refresh token pairs.
type TokenIssuer struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
	refreshTTL time.Duration
	threshold float64
	now       func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer from the supplied options.
func NewTokenIssuer(opts TokenIssuerOptions) (*TokenIssuer, error) {
	secret := strings.TrimSpace(opts.Secret)
	if secret == "" {
		return nil, fmt.Errorf("jwt: signing secret is required")
	}

	accessTTL := opts.AccessTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	refreshTTL := opts.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	threshold := opts.RefreshThreshold
	if threshold <= 0 || threshold >= 1 {
		threshold = defaultRefreshThreshold
	}

	issuer := &TokenIssuer{
		secret:     []byte(secret),
		issuer:     strings.TrimSpace(opts.Issuer),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		threshold:  threshold,
	}
	issuer.now = func() time.Time { return time.Now().UTC() }
	return issuer, nil
}

// WithClock overrides the issuer clock for deterministic tests.
func (t *TokenIssuer) WithClock(clock func() time.Time) *TokenIssuer {
	if clock != nil {
		t.now = clock
	}
	return t
}

// AccessTTL returns the configured access token lifetime.
func (t *TokenIssuer) AccessTTL() time.Duration {
	return t.accessTTL
}

// RefreshTTL returns the configured refresh token lifetime.
func (t *TokenIssuer) RefreshTTL() time.Duration {
	return t.refreshTTL
}

// IssuePair mints an access/refresh token pair bound to the supplied user and
// session. Each half carries its own JTI and the type discriminator claim.
func (t *TokenIssuer) IssuePair(userID, sessionID string) (domain.TokenPair, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.TokenPair{}, fmt.Errorf("jwt: user id is required")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.TokenPair{}, fmt.Errorf("jwt: session id is required")
	}

	now := t.now()

	access, accessExpiry, err := t.sign(userID, sessionID, domain.TokenTypeAccess, now, t.accessTTL)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("jwt: sign access token: %w", err)
	}

	refresh, refreshExpiry, err := t.sign(userID, sessionID, domain.TokenTypeRefresh, now, t.refreshTTL)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("jwt: sign refresh token: %w", err)
	}

	return domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExpiry,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

func (t *TokenIssuer) sign(userID, sessionID string, tokenType domain.TokenType, now time.Time, ttl time.Duration) (string, time.Time, error) {
	expiresAt := now.Add(ttl)
	claims := &TokenClaims{
		UserID:    userID,
		SessionID: sessionID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// Parse validates signature and expiry, then enforces the type discriminator.
func (t *TokenIssuer) Parse(token string, want domain.TokenType) (*TokenClaims, error) {
	claims, err := t.ParseAny(token)
	if err != nil {
		return nil, err
	}

	if claims.TokenType != want {
		return nil, ErrTokenTypeMismatch
	}

	return claims, nil
}

// ParseAny validates signature and expiry without checking the token type.
// Used when revoking a presented token of either kind.
func (t *TokenIssuer) ParseAny(token string) (*TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenInvalid
	}

	claims := &TokenClaims{}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(t.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, parserOptions...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	if strings.TrimSpace(claims.UserID) == "" || strings.TrimSpace(claims.SessionID) == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// Remaining returns the validity left on the supplied claims.
func (t *TokenIssuer) Remaining(claims *TokenClaims) time.Duration {
	if claims == nil || claims.ExpiresAt == nil {
		return 0
	}
	remaining := claims.ExpiresAt.Time.Sub(t.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ShouldRefresh reports whether the access token's remaining validity has
// dropped under the proactive-refresh threshold, enabling silent renewal
// before hard expiry.
func (t *TokenIssuer) ShouldRefresh(claims *TokenClaims) bool {
	if claims == nil || claims.TokenType != domain.TokenTypeAccess {
		return false
	}
	return t.Remaining(claims) < time.Duration(float64(t.accessTTL)*t.threshold)
}
