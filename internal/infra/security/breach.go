package security

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/student-platform-auth/internal/core/port"
)

const (
	defaultBreachTimeout   = 5 * time.Second
	defaultBreachUserAgent = "student-platform-auth-breach-check"
	hashPrefixLength       = 5
)

// BreachClientOptions configures the range-query client.
type BreachClientOptions struct {
	Endpoint  string
	Timeout   time.Duration
	UserAgent string
}

// BreachClient screens passwords against a remote compromised-password corpus
// using k-anonymity: only the first five characters of the SHA-1 digest leave
// the process. Every failure mode resolves to "not breached" so an upstream
// outage never blocks authentication.
type BreachClient struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewBreachClient constructs a BreachClient with sane timeouts.
func NewBreachClient(opts BreachClientOptions, logger *zap.Logger) (*BreachClient, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/")
	if endpoint == "" {
		return nil, fmt.Errorf("breach: endpoint is required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultBreachTimeout
	}

	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultBreachUserAgent
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &BreachClient{
		endpoint:   endpoint,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// IsBreached reports whether the password appears in the corpus. Transport
// errors, timeouts, and non-2xx responses all yield false.
func (c *BreachClient) IsBreached(ctx context.Context, password string) bool {
	if password == "" {
		return false
	}

	sum := sha1.Sum([]byte(password))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix := digest[:hashPrefixLength]
	suffix := digest[hashPrefixLength:]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", c.endpoint, prefix), nil)
	if err != nil {
		c.logger.Warn("breach check request build failed", zap.Error(err))
		return false
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("breach check unavailable, failing open", zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("breach check returned non-2xx, failing open", zap.Int("status", resp.StatusCode))
		return false
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		// Lines are "SUFFIX:COUNT"; only the suffix matters here.
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, suffix) {
			return true
		}
	}
	if err := scanner.Err(); err != nil {
		c.logger.Warn("breach check response read failed, failing open", zap.Error(err))
	}

	return false
}

var _ port.BreachChecker = (*BreachClient)(nil)
