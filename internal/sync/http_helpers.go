// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package sync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/epitrack/internal/logging"
	"github.com/tomtom215/epitrack/internal/metrics"
)

const (
	// maxErrorBodySize limits how much of an error response is kept.
	maxErrorBodySize = 4096
	// maxResponseSize guards against runaway pages.
	maxResponseSize = 16 << 20

	userAgent = "epitrack/1.0 (+https://github.com/tomtom215/epitrack)"
)

// requester is the shared HTTP transport of the adapters: a client with a
// timeout, an optional token bucket and 429 handling.
type requester struct {
	source     string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
	clock      Clock
}

// newRequester builds a requester. rps <= 0 disables client-side rate
// limiting. maxRetries bounds HTTP 429 retries inside a single call.
func newRequester(source string, timeout time.Duration, rps float64, maxRetries int) *requester {
	var limiter *rate.Limiter
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &requester{
		source:     source,
		client:     &http.Client{Timeout: timeout},
		limiter:    limiter,
		maxRetries: maxRetries,
		baseDelay:  time.Second,
		clock:      RealClock(),
	}
}

// do sends the request produced by newReq and returns the response body.
// newReq is invoked once per attempt so request bodies can be replayed.
//
// HTTP 429 is retried with exponential backoff, honoring Retry-After when
// present. Other non-2xx statuses return a *StatusError; transport failures
// wrap ErrNetwork.
func (r *requester) do(ctx context.Context, newReq func(context.Context) (*http.Request, error)) ([]byte, error) {
	backoff := r.baseDelay

	for attempt := 0; ; attempt++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		req, err := newReq(ctx)
		if err != nil {
			return nil, fmt.Errorf("build %s request: %w", r.source, err)
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := r.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %s: %v", ErrNetwork, r.source, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < r.maxRetries {
			wait := retryAfter(resp.Header.Get("Retry-After"), backoff)
			drainAndClose(resp.Body)

			metrics.ProviderRetries.WithLabelValues(r.source).Inc()
			logging.Warn().Str("source", r.source).Int("attempt", attempt+1).Dur("wait", wait).Msg("Rate limited by provider, backing off")

			if err := r.clock.Sleep(ctx, wait); err != nil {
				return nil, err
			}
			backoff *= 2
			continue
		}

		return r.readResponse(resp)
	}
}

func (r *requester) readResponse(resp *http.Response) ([]byte, error) {
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Source:     r.source,
			StatusCode: resp.StatusCode,
			Body:       readBodyForError(resp.Body),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %v", ErrNetwork, r.source, err)
	}
	return body, nil
}

// retryAfter parses a Retry-After value in seconds, falling back to def.
func retryAfter(header string, def time.Duration) time.Duration {
	if header == "" {
		return def
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	return def
}

// readBodyForError reads a bounded prefix of an error response body.
func readBodyForError(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBodySize+1))
	if err != nil {
		return fmt.Sprintf("(failed to read body: %v)", err)
	}
	if len(data) > maxErrorBodySize {
		return string(data[:maxErrorBodySize]) + "... (truncated)"
	}
	return string(data)
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxErrorBodySize))
	if err := body.Close(); err != nil {
		logging.Debug().Err(err).Msg("Failed to close response body")
	}
}

// decodeJSON unmarshals data into a new T.
func decodeJSON[T any](source string, data []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %s: decode response: %v", ErrProviderRejected, source, err)
	}
	return &v, nil
}
