package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func buildGet(url string) func() (*http.Request, error) {
	return func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, url, nil)
	}
}

// TestDoSingleAttemptByDefault verifies the zero-value backoff performs
// exactly one attempt.
func TestDoSingleAttemptByDefault(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := ClientConfig{Client: srv.Client()}
	_, err := Do(context.Background(), cfg, NewBreaker("test"), buildGet(srv.URL))
	if !errors.Is(err, ErrServerError) {
		t.Fatalf("expected ErrServerError, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

// TestDoRetriesUntilSuccess verifies failed attempts are retried up to
// MaxRetries and a later success is returned.
func TestDoRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := ClientConfig{
		Client: srv.Client(),
		Backoff: BackoffConfig{
			MaxRetries:      3,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
	}
	resp, err := Do(context.Background(), cfg, NewBreaker("test"), buildGet(srv.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

// TestDoRateLimited verifies a 429 maps to the rate-limit sentinel.
func TestDoRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := ClientConfig{Client: srv.Client()}
	_, err := Do(context.Background(), cfg, NewBreaker("test"), buildGet(srv.URL))
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

// TestDoUnexpectedStatus verifies non-2xx client errors carry the status
// code.
func TestDoUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := ClientConfig{Client: srv.Client()}
	_, err := Do(context.Background(), cfg, NewBreaker("test"), buildGet(srv.URL))
	if !errors.Is(err, ErrUnexpected) {
		t.Fatalf("expected ErrUnexpected, got %v", err)
	}
}

// TestDoContextCancelled verifies cancellation wins over pending retries.
func TestDoContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := ClientConfig{Client: srv.Client()}
	_, err := Do(ctx, cfg, NewBreaker("test"), buildGet(srv.URL))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// TestDoRequiresClient verifies a missing HTTP client is an immediate
// error.
func TestDoRequiresClient(t *testing.T) {
	_, err := Do(context.Background(), ClientConfig{}, NewBreaker("test"), buildGet("http://example.com"))
	if err == nil {
		t.Fatal("expected error for missing client")
	}
}
