// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package interactions

import (
	"context"
	"iter"

	"github.com/tomtom215/signalcart/internal/apperr"
	"github.com/tomtom215/signalcart/internal/metrics"
	"github.com/tomtom215/signalcart/internal/models"
)

// Scanner is the read side of the interaction log.
type Scanner interface {
	Scan(ctx context.Context, after uint64) iter.Seq2[models.InteractionEvent, error]
	Head() uint64
}

// Exporter projects the log into training records.
type Exporter struct {
	log Scanner
}

// NewExporter creates an Exporter over log.
func NewExporter(log Scanner) *Exporter {
	return &Exporter{log: log}
}

// ExportSince lazily yields the records after cursor in insertion order.
// Cursor 0 starts from the beginning. Every yielded record carries its own
// cursor, so a caller that sees an error can resume from the last record it
// processed without duplicates.
func (e *Exporter) ExportSince(ctx context.Context, cursor uint64) iter.Seq2[models.InteractionRecord, error] {
	return func(yield func(models.InteractionRecord, error) bool) {
		n := 0
		defer func() { metrics.RecordExport(n) }()

		for ev, err := range e.log.Scan(ctx, cursor) {
			if err != nil {
				yield(models.InteractionRecord{}, err)
				return
			}
			n++
			if !yield(ev.Record(), nil) {
				return
			}
		}
	}
}

// Page is one bounded slice of an export.
type Page struct {
	Records    []models.InteractionRecord `json:"records"`
	Cursor     uint64                     `json:"cursor"`
	NextCursor uint64                     `json:"next_cursor"`
	HasMore    bool                       `json:"has_more"`
}

// ExportPage collects up to limit records after cursor. NextCursor is the
// cursor to pass for the following page.
func (e *Exporter) ExportPage(ctx context.Context, cursor uint64, limit int) (Page, error) {
	if limit <= 0 {
		return Page{}, apperr.Validationf("limit must be positive, got %d", limit)
	}

	page := Page{Cursor: cursor, NextCursor: cursor, Records: make([]models.InteractionRecord, 0, min(limit, 1024))}
	for rec, err := range e.ExportSince(ctx, cursor) {
		if err != nil {
			return Page{}, err
		}
		if len(page.Records) == limit {
			page.HasMore = true
			break
		}
		page.Records = append(page.Records, rec)
		page.NextCursor = rec.Cursor
	}
	return page, nil
}

// Head returns the cursor of the newest committed record.
func (e *Exporter) Head() uint64 {
	return e.log.Head()
}
