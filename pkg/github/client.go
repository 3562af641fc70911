package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/flanksource/commons/logger"
	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/flanksource/relmon/pkg/types"
)

// ErrCredential marks 401/403 responses. These are never retried.
var ErrCredential = errors.New("upstream credential rejected")

// IsCredentialError reports whether err is an authentication failure
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrCredential)
}

const userAgent = "relmon"

// rateLimiter enforces a minimum inter-request interval. This is a deliberate
// per-process singleton: every Client in the process shares it so the
// configured spacing is a lower bound across all upstream calls.
type rateLimiter struct {
	mu       sync.Mutex
	last     time.Time
	interval time.Duration
}

var limiter = &rateLimiter{interval: time.Second}

func (l *rateLimiter) wait(ctx context.Context) error {
	l.mu.Lock()
	next := l.last.Add(l.interval)
	now := time.Now()
	if now.Before(next) {
		l.last = next
	} else {
		l.last = now
	}
	l.mu.Unlock()

	if d := time.Until(next); d > 0 {
		return sleepCtx(ctx, d)
	}
	return nil
}

func (l *rateLimiter) setInterval(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d > 0 {
		l.interval = d
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Client talks to the upstream release API with retry and rate-limit
// discipline.
type Client struct {
	client             *github.Client
	token              string
	tokenSource        string
	timeout            time.Duration
	maxReleases        int
	includePrereleases bool

	retries     int
	backoffBase time.Duration
}

// Option configures the client
type Option func(*Client)

// WithToken sets an explicit bearer credential, overriding the environment
func WithToken(token string) Option {
	return func(c *Client) {
		if token != "" {
			c.token = token
			c.tokenSource = "explicit"
		}
	}
}

// WithRateLimitDelay sets the minimum inter-request spacing in seconds
func WithRateLimitDelay(seconds float64) Option {
	return func(c *Client) {
		if seconds > 0 {
			limiter.setInterval(time.Duration(seconds * float64(time.Second)))
		}
	}
}

// WithRequestTimeout sets the per-request timeout
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithMaxReleases bounds the number of releases fetched per list call
func WithMaxReleases(n int) Option {
	return func(c *Client) {
		c.maxReleases = n
	}
}

// WithPrereleases allows the list-releases fallback to return prereleases
func WithPrereleases(include bool) Option {
	return func(c *Client) {
		c.includePrereleases = include
	}
}

// NewClient creates an upstream API client. The bearer credential is resolved
// from GITHUB_TOKEN, GH_TOKEN, or GITHUB_ACCESS_TOKEN, first non-empty wins;
// an unauthenticated client is returned when none is set. The underlying
// transport is built after the options run so credential and timeout options
// compose in any order.
func NewClient(opts ...Option) *Client {
	c := &Client{
		timeout:     30 * time.Second,
		maxReleases: 30,
		retries:     3,
		backoffBase: 2 * time.Second,
	}
	for _, env := range []string{"GITHUB_TOKEN", "GH_TOKEN", "GITHUB_ACCESS_TOKEN"} {
		if value := os.Getenv(env); value != "" {
			c.token = value
			c.tokenSource = env
			break
		}
	}

	for _, opt := range opts {
		opt(c)
	}
	c.client = newGithubClient(c.token, c.timeout)
	return c
}

func newGithubClient(token string, timeout time.Duration) *github.Client {
	httpClient := &http.Client{Timeout: timeout}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
		httpClient.Timeout = timeout
	}

	client := github.NewClient(httpClient)
	client.UserAgent = userAgent
	return client
}

// TokenSource returns where the credential came from, for status output.
// The credential itself is never logged.
func (c *Client) TokenSource() string {
	if c.tokenSource == "" {
		return "unauthenticated"
	}
	return c.tokenSource
}

// RateLimitStatus returns the remaining quota and reset time. The probe call
// is cheap and still yields rate headers when authentication fails.
func (c *Client) RateLimitStatus(ctx context.Context) (*types.RateLimit, error) {
	_, response, err := c.client.Users.Get(ctx, "")
	if rl := extractRateLimit(response); rl != nil {
		return rl, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query rate limit: %w", err)
	}
	return nil, fmt.Errorf("no rate limit information in response")
}

// extractRateLimit extracts rate limit information from an API response
func extractRateLimit(response *github.Response) *types.RateLimit {
	if response == nil || response.Rate.Limit == 0 {
		return nil
	}
	resetTime := response.Rate.Reset.Time
	return &types.RateLimit{
		Remaining: response.Rate.Remaining,
		Total:     response.Rate.Limit,
		ResetTime: &resetTime,
	}
}

// retry runs fn with up to c.retries attempts. Transport errors, 429 and 5xx
// responses back off exponentially; a rate-limit reset is honored by sleeping
// until the reset epoch plus one second. 401/403 surface immediately as
// ErrCredential and 404 is returned to the caller untouched.
func (c *Client) retry(ctx context.Context, what string, fn func() (*github.Response, error)) error {
	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		response, err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if response != nil {
			switch response.StatusCode {
			case 401, 403:
				if !isRateLimited(err) {
					return fmt.Errorf("%s: %v: %w", what, err, ErrCredential)
				}
			case 404:
				return err
			}
		}

		if attempt == c.retries {
			break
		}

		delay := c.backoffBase * (1 << (attempt - 1))
		if reset, ok := rateLimitReset(err); ok {
			// reset already in the past means retry immediately
			delay = time.Until(reset.Add(time.Second))
			if delay < 0 {
				delay = 0
			}
		}
		logger.V(2).Infof("%s failed (attempt %d/%d), retrying in %s: %v", what, attempt, c.retries, delay, err)
		if err := sleepCtx(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("%s: %w", what, lastErr)
}

func isRateLimited(err error) bool {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return true
	}
	// Secondary limits sometimes surface as plain 403 bodies
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "rate limit")
}

func rateLimitReset(err error) (time.Time, bool) {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return rateErr.Rate.Reset.Time, true
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) && abuseErr.RetryAfter != nil {
		return time.Now().Add(*abuseErr.RetryAfter), true
	}
	return time.Time{}, false
}

func isNotFound(err error) bool {
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == 404
}
