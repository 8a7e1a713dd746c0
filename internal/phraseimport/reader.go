// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package phraseimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultColumns are the zero-based phrase columns of the keywords export.
var DefaultColumns = []int{2, 6, 10, 14, 18, 22}

// ReadPhrases reads phrases from a comma separated keywords export. The first
// row is a header and is skipped. Blank cells and columns past the end of a
// short row are ignored; phrases are trimmed and returned in file order,
// duplicates included. It returns the phrases and the number of data rows.
func ReadPhrases(r io.Reader, columns []int) ([]string, int, error) {
	if len(columns) == 0 {
		columns = DefaultColumns
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("read header: %w", err)
	}

	var phrases []string
	rows := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, rows, fmt.Errorf("read row %d: %w", rows+2, err)
		}
		rows++

		for _, col := range columns {
			if col < 0 || col >= len(record) {
				continue
			}
			if phrase := strings.TrimSpace(record[col]); phrase != "" {
				phrases = append(phrases, phrase)
			}
		}
	}
	return phrases, rows, nil
}
