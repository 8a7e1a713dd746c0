// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package sync

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/epitrack/internal/config"
	"github.com/tomtom215/epitrack/internal/models"
)

// TrendSample is one point of a search-interest series.
type TrendSample struct {
	Time  time.Time
	Value float64
}

// TrendsClient queries weekly search interest for a single phrase.
type TrendsClient interface {
	InterestOverTime(ctx context.Context, phrase string, from, to time.Time) ([]TrendSample, error)
}

const timeseriesWidget = "TIMESERIES"

// HTTPTrendsClient talks to the trends web API: an explore call returns a
// widget token, which is then exchanged for the multiline timeline.
type HTTPTrendsClient struct {
	baseURL  string
	language string
	tz       int
	geo      string
	http     *requester
}

// NewHTTPTrendsClient creates a trends client. It performs no retries of its
// own beyond the rate limiter; TrendsAdapter owns the retry budget.
func NewHTTPTrendsClient(cfg *config.TrendsConfig) *HTTPTrendsClient {
	return &HTTPTrendsClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		language: cfg.Language,
		tz:       cfg.TZOffset,
		geo:      cfg.Geo,
		http:     newRequester(string(models.SourceTrends), 30*time.Second, cfg.RateLimit, 0),
	}
}

type comparisonItem struct {
	Keyword string `json:"keyword"`
	Time    string `json:"time"`
	Geo     string `json:"geo"`
}

type exploreRequest struct {
	ComparisonItem []comparisonItem `json:"comparisonItem"`
	Category       int              `json:"category"`
	Property       string           `json:"property"`
}

type exploreResponse struct {
	Widgets []struct {
		ID      string          `json:"id"`
		Token   string          `json:"token"`
		Request json.RawMessage `json:"request"`
	} `json:"widgets"`
}

type multilineResponse struct {
	Default struct {
		TimelineData []struct {
			Time    string `json:"time"`
			Value   []int  `json:"value"`
			HasData []bool `json:"hasData"`
		} `json:"timelineData"`
	} `json:"default"`
}

// InterestOverTime returns the weekly series of phrase between from and to
// (inclusive dates). An empty series yields ErrNoData.
func (c *HTTPTrendsClient) InterestOverTime(ctx context.Context, phrase string, from, to time.Time) ([]TrendSample, error) {
	token, widgetReq, err := c.explore(ctx, phrase, from, to)
	if err != nil {
		return nil, err
	}

	q := c.baseQuery()
	q.Set("req", string(widgetReq))
	q.Set("token", token)
	body, err := c.get(ctx, c.baseURL+"/trends/api/widgetdata/multiline?"+q.Encode())
	if err != nil {
		return nil, err
	}
	resp, err := decodeJSON[multilineResponse](string(models.SourceTrends), stripXSSI(body))
	if err != nil {
		return nil, err
	}

	samples := make([]TrendSample, 0, len(resp.Default.TimelineData))
	for _, point := range resp.Default.TimelineData {
		if len(point.Value) == 0 || (len(point.HasData) > 0 && !point.HasData[0]) {
			continue
		}
		unix, err := strconv.ParseInt(point.Time, 10, 64)
		if err != nil {
			continue
		}
		samples = append(samples, TrendSample{
			Time:  time.Unix(unix, 0).UTC(),
			Value: float64(point.Value[0]),
		})
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: trends phrase %q", ErrNoData, phrase)
	}
	return samples, nil
}

func (c *HTTPTrendsClient) explore(ctx context.Context, phrase string, from, to time.Time) (string, json.RawMessage, error) {
	req, err := json.Marshal(exploreRequest{
		ComparisonItem: []comparisonItem{{
			Keyword: phrase,
			Time:    from.Format(time.DateOnly) + " " + to.Format(time.DateOnly),
			Geo:     c.geo,
		}},
	})
	if err != nil {
		return "", nil, fmt.Errorf("encode explore request: %w", err)
	}

	q := c.baseQuery()
	q.Set("req", string(req))
	body, err := c.get(ctx, c.baseURL+"/trends/api/explore?"+q.Encode())
	if err != nil {
		return "", nil, err
	}
	resp, err := decodeJSON[exploreResponse](string(models.SourceTrends), stripXSSI(body))
	if err != nil {
		return "", nil, err
	}
	for _, w := range resp.Widgets {
		if w.ID == timeseriesWidget {
			return w.Token, w.Request, nil
		}
	}
	return "", nil, fmt.Errorf("%w: trends explore returned no %s widget", ErrProviderRejected, timeseriesWidget)
}

func (c *HTTPTrendsClient) baseQuery() url.Values {
	q := url.Values{}
	q.Set("hl", c.language)
	q.Set("tz", strconv.Itoa(c.tz))
	return q
}

func (c *HTTPTrendsClient) get(ctx context.Context, target string) ([]byte, error) {
	return c.http.do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	})
}

// stripXSSI removes the anti-JSON-hijacking prefix (")]}'") the API puts in
// front of every payload.
func stripXSSI(body []byte) []byte {
	if i := bytes.IndexByte(body, '{'); i > 0 {
		return body[i:]
	}
	return body
}
