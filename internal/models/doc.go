// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

/*
Package models defines the data shapes shared by the persistence gateway,
the source adapters and the HTTP layer.

Key types:

  - Source: the three upstream data sources (bulletin, trends, adplatform)
  - StatPoint: one normalized (source, entity, year, period, value) observation
  - SeriesPoint: an ordered (period, value) pair handed to chart renderers
  - QuotaState: the persisted AdPlatform rolling quota cursor
  - APIResponse: the JSON envelope returned by every HTTP endpoint

Periods are ISO week numbers for bulletin and trends, calendar months for
adplatform. The bulletin source has no entity; its Entity field is empty.
*/
package models
