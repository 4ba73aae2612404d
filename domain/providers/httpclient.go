package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/voxlane/voxlane-core/internal/config"
	"github.com/voxlane/voxlane-core/pkg/logger"
	"github.com/voxlane/voxlane-core/pkg/syncerr"
)

// Client is the HTTP client shared by all adapters. It applies a per-client
// rate limiter, a bounded per-request timeout, and a retry budget with
// exponential backoff. Rate limit responses are retried after the delay the
// provider asked for.
type Client struct {
	provider   string
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
	log        *slog.Logger
}

// NewClient builds a client for one provider. rps bounds the steady-state
// request rate sent to that provider across the whole process.
func NewClient(provider string, rps float64, cfg *config.SyncConfig, log *slog.Logger) *Client {
	return &Client{
		provider:   provider,
		http:       &http.Client{Timeout: cfg.HTTPTimeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.RetryBaseDelay,
		log:        log.With(logger.Scope("providers.http"), slog.String("provider", provider)),
	}
}

// DoJSON performs one JSON API call with the retry budget applied. A nil out
// discards the response body.
//
// POSTs are excluded from transient replay: a timeout after the provider
// committed the record would otherwise create a duplicate on retry. Rate
// limit responses are still retried for every method, since a 429 means the
// provider refused the request outright.
func (c *Client) DoJSON(ctx context.Context, method, url, accessToken string, body, out any) error {
	return c.do(ctx, method, url, accessToken, body, out, method != http.MethodPost)
}

// DoJSONIdempotent opts a POST-bodied call into the full retry budget. Only
// for read-only POSTs (batch reads, search endpoints) where replaying the
// request cannot create anything remotely.
func (c *Client) DoJSONIdempotent(ctx context.Context, method, url, accessToken string, body, out any) error {
	return c.do(ctx, method, url, accessToken, body, out, true)
}

func (c *Client) do(ctx context.Context, method, url, accessToken string, body, out any, idempotent bool) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt, lastErr)
			c.log.Debug("retrying request",
				slog.String("url", url),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		lastErr = c.doOnce(ctx, method, url, accessToken, payload, out)
		if lastErr == nil {
			return nil
		}
		if !c.shouldRetry(lastErr, idempotent) {
			return lastErr
		}
	}
	return lastErr
}

// shouldRetry decides whether one failed attempt is worth replaying. A 429
// is always safe: the provider rejected the request, so nothing committed.
// 5xx and transport failures have an unknown outcome and are replayed only
// for idempotent requests.
func (c *Client) shouldRetry(err error, idempotent bool) bool {
	var rl *syncerr.RateLimitedError
	if errors.As(err, &rl) {
		return true
	}
	return idempotent && syncerr.IsRetryable(err)
}

func (c *Client) doOnce(ctx context.Context, method, url, accessToken string, payload []byte, out any) error {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Timeouts and connection failures are worth another attempt.
		return syncerr.Transient(method+" "+url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding %s response: %w", c.provider, err)
		}
		return nil

	case resp.StatusCode == http.StatusUnauthorized:
		return &syncerr.ReauthRequiredError{Reason: c.provider + " rejected the access token"}

	case resp.StatusCode == http.StatusTooManyRequests:
		return &syncerr.RateLimitedError{
			Provider:   c.provider,
			RetryAfter: parseRetryAfter(resp.Header),
			Err:        fmt.Errorf("%s returned 429", c.provider),
		}

	case resp.StatusCode >= 500:
		return syncerr.Transient(method+" "+url,
			fmt.Errorf("%s returned %d", c.provider, resp.StatusCode))

	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %d: %s", c.provider, resp.StatusCode, snippet)
	}
}

// backoff returns the delay before the given attempt. A provider-specified
// Retry-After overrides the exponential schedule.
func (c *Client) backoff(attempt int, lastErr error) time.Duration {
	if after := syncerr.RetryAfter(lastErr); after > 0 {
		return after
	}
	return c.baseDelay * time.Duration(1<<(attempt-1))
}

// parseRetryAfter reads the standard Retry-After header and the
// X-RateLimit-Reset variant some providers use instead.
func parseRetryAfter(h http.Header) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
		if at, err := http.ParseTime(v); err == nil {
			if d := time.Until(at); d > 0 {
				return d
			}
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			// Large values are epoch timestamps, small ones are deltas.
			if n > 1_000_000_000 {
				if d := time.Until(time.Unix(n, 0)); d > 0 {
					return d
				}
				return 0
			}
			return time.Duration(n) * time.Second
		}
	}
	return 0
}
