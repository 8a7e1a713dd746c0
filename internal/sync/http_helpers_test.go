// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package sync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestReadBodyForError(t *testing.T) {
	t.Parallel()

	if got := readBodyForError(strings.NewReader("short")); got != "short" {
		t.Errorf("readBodyForError(short) = %q", got)
	}
	long := strings.Repeat("x", maxErrorBodySize+100)
	got := readBodyForError(strings.NewReader(long))
	if !strings.HasSuffix(got, "... (truncated)") || len(got) != maxErrorBodySize+len("... (truncated)") {
		t.Errorf("long body not truncated: len=%d", len(got))
	}
}

func TestRetryAfter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   time.Duration
	}{
		{"", time.Second},
		{"3", 3 * time.Second},
		{"Wed, 21 Oct 2015 07:28:00 GMT", time.Second},
		{"-1", time.Second},
	}
	for _, tt := range tests {
		if got := retryAfter(tt.header, time.Second); got != tt.want {
			t.Errorf("retryAfter(%q) = %s, want %s", tt.header, got, tt.want)
		}
	}
}

func TestRequester_Retries429(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	r := newRequester("test", 5*time.Second, 0, 3)
	body, err := r.do(context.Background(), func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	})
	if err != nil {
		t.Fatalf("do() error = %v", err)
	}
	if string(body) != "ok" || hits.Load() != 3 {
		t.Errorf("body = %q after %d hits, want ok after 3", body, hits.Load())
	}
}

func TestRequester_BackoffUsesClock(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		switch hits.Add(1) {
		case 1:
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			_, _ = w.Write([]byte("ok"))
		}
	}))
	t.Cleanup(srv.Close)

	start := time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	r := newRequester("test", 5*time.Second, 0, 3)
	r.clock = clock

	body, err := r.do(context.Background(), func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	})
	if err != nil || string(body) != "ok" {
		t.Fatalf("do() = %q, %v", body, err)
	}
	// Retry-After 30s, then the doubled base delay of 2s.
	if clock.Sleeps() != 2 || !clock.Now().Equal(start.Add(32*time.Second)) {
		t.Errorf("sleeps = %d, clock advanced %s, want 2 sleeps and 32s", clock.Sleeps(), clock.Now().Sub(start))
	}
}

func TestRequester_BackoffHonorsCancel(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	r := newRequester("test", 5*time.Second, 0, 3)
	r.clock = newFakeClock(time.Now())
	_, err := r.do(ctx, func(reqCtx context.Context) (*http.Request, error) {
		cancel()
		return http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestRequester_GivesUpOn429(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	r := newRequester("test", 5*time.Second, 0, 1)
	_, err := r.do(context.Background(), func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("error = %v, want 429 StatusError", err)
	}
}

func TestRequester_TransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	r := newRequester("test", time.Second, 0, 0)
	_, err := r.do(context.Background(), func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("error = %v, want ErrNetwork", err)
	}
}

func TestStatusErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code      int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusNotFound, false},
		{http.StatusForbidden, false},
	}
	for _, tt := range tests {
		err := &StatusError{Source: "test", StatusCode: tt.code}
		if err.Retryable() != tt.retryable {
			t.Errorf("%d Retryable() = %v", tt.code, err.Retryable())
		}
		if !retryable(err) {
			t.Errorf("%d should still be retried as a network error", tt.code)
		}
	}
}

func TestOutcome(t *testing.T) {
	t.Parallel()

	if outcome(nil) != "ok" || outcome(ErrNoData) != "no_data" || outcome(ErrParseMiss) != "parse_miss" ||
		outcome(ErrJobTimeout) != "timeout" || outcome(ErrNetwork) != "error" {
		t.Errorf("unexpected outcome labels")
	}
}
