package providers

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxlane/voxlane-core/internal/config"
	"github.com/voxlane/voxlane-core/pkg/syncerr"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	cfg := &config.SyncConfig{
		HTTPTimeout:    5 * time.Second,
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
	}
	return NewClient("testprov", 1000, cfg, slog.New(slog.DiscardHandler))
}

func TestDoJSONDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"r-1","name":"Primary"}`))
	}))
	defer srv.Close()

	var out Resource
	err := testClient(t).DoJSON(context.Background(), http.MethodGet, srv.URL, "tok-1", nil, &out)
	require.NoError(t, err)
	assert.Equal(t, Resource{ID: "r-1", Name: "Primary"}, out)
}

func TestDoJSONRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	err := testClient(t).DoJSON(context.Background(), http.MethodGet, srv.URL, "tok", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoJSONExhaustsRetryBudget(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := testClient(t).DoJSON(context.Background(), http.MethodGet, srv.URL, "tok", nil, nil)
	assert.True(t, syncerr.IsRetryable(err))
	assert.Equal(t, 3, calls, "initial attempt plus two retries")
}

func TestDoJSONDoesNotReplayAmbiguousCreate(t *testing.T) {
	creates := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		creates++
		// The create commits server-side, then the response never
		// arrives: the caller cannot know the outcome.
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := &config.SyncConfig{
		HTTPTimeout:    20 * time.Millisecond,
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
	}
	client := NewClient("testprov", 1000, cfg, slog.New(slog.DiscardHandler))

	err := client.DoJSON(context.Background(), http.MethodPost, srv.URL, "tok",
		map[string]string{"email": "a@b.com"}, nil)
	require.Error(t, err)
	assert.True(t, syncerr.IsRetryable(err), "surfaced as transient for the caller to handle")
	assert.Equal(t, 1, creates, "an unknown-outcome POST must not be replayed")
}

func TestDoJSONRetriesRateLimitedCreate(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			// A 429 rejects the request outright, so nothing committed
			// and the POST is safe to send again.
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	err := testClient(t).DoJSON(context.Background(), http.MethodPost, srv.URL, "tok", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoJSONIdempotentRetriesReadOnlyPost(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	err := testClient(t).DoJSONIdempotent(context.Background(), http.MethodPost, srv.URL, "tok", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoJSONHonorsRetryAfter(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	err := testClient(t).DoJSON(context.Background(), http.MethodGet, srv.URL, "tok", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoJSONUnauthorizedIsTerminal(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := testClient(t).DoJSON(context.Background(), http.MethodGet, srv.URL, "tok", nil, nil)
	assert.True(t, syncerr.IsReauthRequired(err))
	assert.Equal(t, 1, calls, "auth failures are not retried")
}

func TestDoJSONClientErrorIsPermanent(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"bad field"}`))
	}))
	defer srv.Close()

	err := testClient(t).DoJSON(context.Background(), http.MethodGet, srv.URL, "tok", nil, nil)
	require.Error(t, err)
	assert.False(t, syncerr.IsRetryable(err))
	assert.Contains(t, err.Error(), "bad field")
	assert.Equal(t, 1, calls)
}

func TestParseRetryAfter(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "30")
	assert.Equal(t, 30*time.Second, parseRetryAfter(h))

	h = http.Header{}
	h.Set("X-RateLimit-Reset", "10")
	assert.Equal(t, 10*time.Second, parseRetryAfter(h))

	h = http.Header{}
	h.Set("X-RateLimit-Reset", "1")
	assert.Equal(t, time.Second, parseRetryAfter(h))

	assert.Zero(t, parseRetryAfter(http.Header{}))
}
