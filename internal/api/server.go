// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/epitrack/internal/config"
)

// NewHTTPServer builds the listening server. Write timeouts leave room for
// a sync-then-read request, which waits on provider calls.
func NewHTTPServer(cfg *config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Timeout,
		IdleTimeout:       120 * time.Second,
	}
}
