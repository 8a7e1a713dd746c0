// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

/*
Package sync incrementally pulls time-series statistics from three upstream
providers into the relational store.

Each source keeps its own cursor, the highest period already stored, and a
cycle only fetches what lies beyond it:

  - Bulletin: a scraped weekly influenza bulletin. One HTTP page per week,
    fetched by a bounded worker pool, narrative text parsed for the
    incidence rate.
  - Trends: weekly search interest per phrase. Each phrase query is retried
    on a fixed step until a time budget runs out.
  - AdPlatform: monthly keyword impressions from an asynchronous report API.
    Phrases are submitted in chunks, each chunk driven through a
    Requested, Polling, Ready, Fetched, Deleted state machine, and the whole
    source is limited by a rolling daily phrase quota.

Key Components:

  - BulletinAdapter, TrendsAdapter, AdPlatformAdapter: source adapters
  - QuotaTracker: AdPlatform rolling quota persisted in the store
  - Orchestrator: runs one cycle per source, inserts and de-duplicates
  - Manager: periodic scheduler with manual triggers

Error Handling:

Provider errors degrade to "no data" for the affected unit of work (a week,
a phrase, a chunk). Only storage errors and an exhausted quota abort a
cycle. Every sentinel in errors.go carries a Kind used as a metrics label.

Concurrency:

Adapters fan out with errgroup and a worker limit; each worker owns one
result slot. All writes go through the store's single writer. The
AdPlatform cycle is exclusive: a second concurrent attempt fails fast with
ErrCycleInProgress.
*/
package sync
