// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

/*
Package cache provides a thread-safe in-memory TTL cache for API responses.

The HTTP layer caches every series read for a fixed time (180 seconds by
default) keyed by the full request query. The sync manager clears the cache
after each completed cycle so freshly committed periods become visible
without waiting for expiry.

# Usage Example

	c := cache.New("series", cfg.Server.CacheTTL)
	defer c.Stop()

	key := cache.GenerateKey("trends_series", r.URL.Query())
	if v, ok := c.Get(key); ok {
	    return v
	}
	resp := buildResponse()
	c.Set(key, resp)

# Metrics

Each lookup increments cache_hits_total or cache_misses_total labeled with
the cache name given to New.
*/
package cache
