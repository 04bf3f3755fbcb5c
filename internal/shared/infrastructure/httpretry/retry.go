// Package httpretry provides an HTTP client that retries transient
// failures with exponential backoff and honors Retry-After headers.
package httpretry

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	shareddomain "github.com/goalpost-app/goalpost/internal/shared/domain"
)

// retryableStatuses are the response codes treated as transient.
var retryableStatuses = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Policy controls retry behavior. The zero value is not usable; use
// DefaultPolicy or construct one explicitly.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Jitter         time.Duration

	// Sleep and RandInt64 are injectable for tests. Nil means real
	// time.Sleep and rand.Int63n.
	Sleep     func(time.Duration)
	RandInt64 func(n int64) int64
}

// DefaultPolicy returns the standard policy: 5 attempts, 1s initial
// backoff doubling to a 32s cap, up to 1s of jitter per wait.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		MaxBackoff:     32 * time.Second,
		Jitter:         time.Second,
	}
}

func (p Policy) sleep(d time.Duration) {
	if p.Sleep != nil {
		p.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (p Policy) jitter() time.Duration {
	if p.Jitter <= 0 {
		return 0
	}
	if p.RandInt64 != nil {
		return time.Duration(p.RandInt64(int64(p.Jitter)))
	}
	return time.Duration(rand.Int63n(int64(p.Jitter)))
}

// Client wraps an http.Client with retry semantics. Request bodies are
// buffered so they can be replayed across attempts.
type Client struct {
	httpClient *http.Client
	policy     Policy
	logger     *slog.Logger
}

// New creates a retrying client with the given policy.
func New(policy Policy, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		policy:     policy,
		logger:     logger,
	}
}

// WithHTTPClient replaces the underlying http.Client. Used in tests and
// for OAuth transports.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Do executes the request, retrying transient failures. The request body,
// if any, must be provided via the body argument so it can be replayed.
// On a retryable status the response body is drained and closed; the
// final response is returned open for the caller to consume.
func (c *Client) Do(ctx context.Context, method, url string, body []byte, header http.Header) (*http.Response, error) {
	backoff := c.policy.InitialBackoff
	var resp *http.Response
	var err error

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		var req *http.Request
		req, err = http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, err
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err = c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt == c.policy.MaxAttempts {
				return nil, err
			}
			c.logger.Warn("request failed, retrying",
				"method", method, "url", url, "attempt", attempt, "error", err)
			c.policy.sleep(backoff + c.policy.jitter())
			backoff = min(backoff*2, c.policy.MaxBackoff)
			continue
		}

		if !retryableStatuses[resp.StatusCode] {
			return resp, nil
		}
		if attempt == c.policy.MaxAttempts {
			if resp.StatusCode == http.StatusTooManyRequests {
				return resp, &shareddomain.RateLimitError{Service: url}
			}
			return resp, nil
		}

		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		c.logger.Warn("retryable status, retrying",
			"method", method, "url", url, "status", resp.StatusCode, "attempt", attempt)

		if retryAfter > 0 {
			// A server-provided wait does not consume a backoff step.
			c.policy.sleep(retryAfter)
			continue
		}
		c.policy.sleep(backoff + c.policy.jitter())
		backoff = min(backoff*2, c.policy.MaxBackoff)
	}

	return resp, err
}

// Get issues a GET request with a bearer token.
func (c *Client) Get(ctx context.Context, url, token string) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, url, nil, bearerHeader(token, false))
}

// Post issues a POST request with a JSON body and bearer token.
func (c *Client) Post(ctx context.Context, url, token string, body []byte) (*http.Response, error) {
	return c.Do(ctx, http.MethodPost, url, body, bearerHeader(token, true))
}

// Put issues a PUT request with a JSON body and bearer token.
func (c *Client) Put(ctx context.Context, url, token string, body []byte) (*http.Response, error) {
	return c.Do(ctx, http.MethodPut, url, body, bearerHeader(token, true))
}

// Delete issues a DELETE request with a bearer token.
func (c *Client) Delete(ctx context.Context, url, token string) (*http.Response, error) {
	return c.Do(ctx, http.MethodDelete, url, nil, bearerHeader(token, false))
}

func bearerHeader(token string, json bool) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	if json {
		h.Set("Content-Type", "application/json")
	}
	return h
}

// parseRetryAfter handles the delay-seconds form of Retry-After. The
// HTTP-date form is rare enough on calendar APIs that it is ignored.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
