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
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/epitrack/internal/config"
	"github.com/tomtom215/epitrack/internal/models"
)

// Report job statuses reported by the provider.
const (
	ReportStatusDone    = "Done"
	ReportStatusPending = "Pending"
	ReportStatusFailed  = "Failed"
)

// ReportItem is one (phrase, impressions) pair of a report.
type ReportItem struct {
	Phrase string `json:"Phrase"`
	Shows  int    `json:"Shows"`
}

// ReportEntry is the report section for one requested phrase.
type ReportEntry struct {
	Phrase       string       `json:"Phrase"`
	GeoID        []int        `json:"GeoID"`
	SearchedWith []ReportItem `json:"SearchedWith"`
	SearchedAlso []ReportItem `json:"SearchedAlso"`
}

// Shows returns the impressions of the entry's own phrase, falling back to
// the first SearchedWith item. ok is false when the entry is empty.
func (e ReportEntry) Shows() (shows int, ok bool) {
	for _, item := range e.SearchedWith {
		if item.Phrase == e.Phrase {
			return item.Shows, true
		}
	}
	if len(e.SearchedWith) > 0 {
		return e.SearchedWith[0].Shows, true
	}
	return 0, false
}

// AdPlatformClient is the asynchronous keyword report API.
type AdPlatformClient interface {
	CreateReport(ctx context.Context, phrases []string, geoIDs []int) (int, error)
	ReportStatuses(ctx context.Context) (map[int]string, error)
	GetReport(ctx context.Context, id int) ([]ReportEntry, error)
	DeleteReport(ctx context.Context, id int) error
}

// HTTPAdPlatformClient speaks the JSON-over-POST report API. Every call is
// a {method, token, locale, param} envelope answered with {data} or an
// error payload.
type HTTPAdPlatformClient struct {
	url    string
	token  string
	locale string
	http   *requester
}

// NewHTTPAdPlatformClient creates a report API client.
func NewHTTPAdPlatformClient(cfg *config.AdPlatformConfig) *HTTPAdPlatformClient {
	return &HTTPAdPlatformClient{
		url:    cfg.URL,
		token:  cfg.Token,
		locale: cfg.Locale,
		http:   newRequester(string(models.SourceAdPlatform), 60*time.Second, 0, 2),
	}
}

type envelope struct {
	Method string      `json:"method"`
	Token  string      `json:"token"`
	Locale string      `json:"locale"`
	Param  interface{} `json:"param,omitempty"`
}

type reply[T any] struct {
	Data        T      `json:"data"`
	ErrorCode   int    `json:"error_code"`
	ErrorStr    string `json:"error_str"`
	ErrorDetail string `json:"error_detail"`
}

type createReportParam struct {
	Phrases []string `json:"Phrases"`
	GeoID   []int    `json:"GeoId,omitempty"`
}

type reportInfo struct {
	ReportID     int    `json:"ReportID"`
	StatusReport string `json:"StatusReport"`
}

// call posts one envelope and decodes the data field into T.
func call[T any](ctx context.Context, c *HTTPAdPlatformClient, method string, param interface{}) (T, error) {
	var zero T
	payload, err := json.Marshal(envelope{Method: method, Token: c.token, Locale: c.locale, Param: param})
	if err != nil {
		return zero, fmt.Errorf("encode %s: %w", method, err)
	}

	body, err := c.http.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		return req, nil
	})
	if err != nil {
		return zero, err
	}

	resp, err := decodeJSON[reply[T]](string(models.SourceAdPlatform), body)
	if err != nil {
		return zero, err
	}
	if resp.ErrorCode != 0 {
		return zero, fmt.Errorf("%w: %s: error %d: %s %s", ErrProviderRejected, method, resp.ErrorCode, resp.ErrorStr, resp.ErrorDetail)
	}
	return resp.Data, nil
}

// CreateReport submits phrases and returns the report id.
func (c *HTTPAdPlatformClient) CreateReport(ctx context.Context, phrases []string, geoIDs []int) (int, error) {
	id, err := call[int](ctx, c, "CreateNewWordstatReport", createReportParam{Phrases: phrases, GeoID: geoIDs})
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, fmt.Errorf("%w: CreateNewWordstatReport returned no report id", ErrProviderRejected)
	}
	return id, nil
}

// ReportStatuses returns the status of every report held by the account.
func (c *HTTPAdPlatformClient) ReportStatuses(ctx context.Context) (map[int]string, error) {
	list, err := call[[]reportInfo](ctx, c, "GetWordstatReportList", nil)
	if err != nil {
		return nil, err
	}
	statuses := make(map[int]string, len(list))
	for _, r := range list {
		statuses[r.ReportID] = r.StatusReport
	}
	return statuses, nil
}

// GetReport downloads a finished report.
func (c *HTTPAdPlatformClient) GetReport(ctx context.Context, id int) ([]ReportEntry, error) {
	entries, err := call[[]ReportEntry](ctx, c, "GetWordstatReport", id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: report %d is empty", ErrNoData, id)
	}
	return entries, nil
}

// DeleteReport frees a report slot. The account holds at most five.
func (c *HTTPAdPlatformClient) DeleteReport(ctx context.Context, id int) error {
	result, err := call[int](ctx, c, "DeleteWordstatReport", id)
	if err != nil {
		return err
	}
	if result != 1 {
		return fmt.Errorf("%w: DeleteWordstatReport(%d) returned %d", ErrProviderRejected, id, result)
	}
	return nil
}
