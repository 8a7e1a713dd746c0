// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

/*
Package validation provides struct validation using go-playground/validator v10.

A single validator instance is created on first use and shared by every
handler; validator caches struct metadata, so reusing it avoids repeated
reflection.

# Custom Tags

	phrase   non-blank string without control characters

# Request Types

Validation tags live on the request types in internal/models:

	type PhraseRequest struct {
	    Phrases []string `validate:"required,min=1,max=1000,dive,phrase,max=255"`
	}

	type SeriesQuery struct {
	    Phrase string `validate:"omitempty,phrase"`
	    Year   int    `validate:"min=2000,max=2100"`
	    From   int    `validate:"min=1,max=53"`
	    To     int    `validate:"min=1,max=53,gtefield=From"`
	}

# Error Format

Failures are returned as *RequestValidationError. ToAPIError converts them
to the VALIDATION_ERROR code used by the HTTP layer; a single failure keeps
the field name, tag and value in Details, several failures are listed under
"fields".
*/
package validation
