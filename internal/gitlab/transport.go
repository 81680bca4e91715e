package gitlab

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/slok/glexport/internal/clock"
	"github.com/slok/glexport/internal/log"
	"github.com/slok/glexport/internal/model"
)

const (
	// DefaultMaxRetries is the default number of retries after the first attempt.
	DefaultMaxRetries = 10
	// DefaultBackoffFactor is the default exponential backoff base.
	DefaultBackoffFactor = 3 * time.Second
	// DefaultMaxBackoff caps a single backoff wait.
	DefaultMaxBackoff = 120 * time.Second
)

// RetryConfig configures the retries of transient failures.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// BackoffFactor is the exponential backoff base, retry n waits factor*2^(n-1)
	// except the first retry that is immediate.
	BackoffFactor time.Duration
	MaxBackoff    time.Duration
	// Disabled disables the retries (MaxRetries zero value means default).
	Disabled bool
}

func (c *RetryConfig) defaults() {
	if c.Disabled {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BackoffFactor == 0 {
		c.BackoffFactor = DefaultBackoffFactor
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
}

var (
	retryableStatusCodes = map[int]bool{
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
		http.StatusServiceUnavailable:  true,
		http.StatusGatewayTimeout:      true,
	}
	retryableMethods = map[string]bool{
		http.MethodGet:     true,
		http.MethodHead:    true,
		http.MethodOptions: true,
		http.MethodPost:    true,
	}
)

// retryTransport retries requests that failed because of connection errors or
// transient server statuses using exponential backoff.
type retryTransport struct {
	next   http.RoundTripper
	cfg    RetryConfig
	clock  clock.Clock
	logger log.Logger
}

func (t retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !retryableMethods[req.Method] {
		return t.next.RoundTrip(req)
	}

	ctx := req.Context()
	attempts := t.cfg.MaxRetries + 1

	var (
		lastErr    error
		lastStatus int
		retryAfter time.Duration
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			wait := t.backoff(attempt-1, retryAfter)
			t.logger.Debugf("Retrying %s %s in %s (attempt %d/%d)", req.Method, req.URL.Redacted(), wait, attempt, attempts)
			if err := t.clock.Sleep(ctx, wait); err != nil {
				return nil, err
			}

			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("could not rewind request body: %w", err)
				}
				req = req.Clone(ctx)
				req.Body = body
			}
		}

		resp, err := t.next.RoundTrip(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr, lastStatus, retryAfter = err, 0, 0
			continue
		}

		if !retryableStatusCodes[resp.StatusCode] {
			return resp, nil
		}

		lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
		lastStatus = resp.StatusCode
		retryAfter = parseRetryAfter(resp, t.clock.Now())
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
	}

	return nil, &model.TransportError{
		Method:     req.Method,
		URL:        req.URL.Redacted(),
		Attempts:   attempts,
		StatusCode: lastStatus,
		Err:        lastErr,
	}
}

// backoff returns the wait before the retry number n (1-indexed).
func (t retryTransport) backoff(n int, retryAfter time.Duration) time.Duration {
	var wait time.Duration
	if n > 1 {
		wait = t.cfg.BackoffFactor
		for i := 1; i < n && wait < t.cfg.MaxBackoff; i++ {
			wait *= 2
		}
	}
	if retryAfter > wait {
		wait = retryAfter
	}

	return min(wait, t.cfg.MaxBackoff)
}

// parseRetryAfter returns the wait requested by the server on rate limit and
// unavailable responses, supports seconds and HTTP date formats.
func parseRetryAfter(resp *http.Response, now time.Time) time.Duration {
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return 0
	}

	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}

	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}

	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}

	return 0
}

// rateLimitTransport waits for the limiter before every request attempt.
type rateLimitTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
}

func (t rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(req)
}

// hostAuthTransport only authenticates the requests sent to the GitLab host.
// Redirects to other hosts (e.g. signed object storage URLs) go without credentials.
type hostAuthTransport struct {
	host   string
	authed http.RoundTripper
	plain  http.RoundTripper
}

func (t hostAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if strings.EqualFold(req.URL.Host, t.host) {
		return t.authed.RoundTrip(req)
	}
	return t.plain.RoundTrip(req)
}

type transportConfig struct {
	Base http.RoundTripper
	// Host is the only host that receives the token.
	Host              string
	Token             string
	Retry             RetryConfig
	RequestsPerSecond float64
	Clock             clock.Clock
	Logger            log.Logger
}

// newTransport returns the round tripper chain used for every API request:
// bearer auth (GitLab host only) -> retries -> rate limit -> base transport.
func newTransport(cfg transportConfig) http.RoundTripper {
	next := cfg.Base
	if cfg.RequestsPerSecond > 0 {
		burst := max(1, int(cfg.RequestsPerSecond))
		next = rateLimitTransport{
			next:    next,
			limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		}
	}

	next = retryTransport{
		next:   next,
		cfg:    cfg.Retry,
		clock:  cfg.Clock,
		logger: cfg.Logger,
	}

	return hostAuthTransport{
		host: cfg.Host,
		authed: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}),
			Base:   next,
		},
		plain: next,
	}
}
