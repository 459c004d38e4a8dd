// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package api

import (
	"bufio"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/tomtom215/signalcart/internal/apperr"
	"github.com/tomtom215/signalcart/internal/auth"
	"github.com/tomtom215/signalcart/internal/logging"
	"github.com/tomtom215/signalcart/internal/models"
)

// headerExportHead reports the log head when an export started.
const headerExportHead = "X-Export-Head"

// ndjsonFlushEvery is how many streamed records are buffered per flush.
const ndjsonFlushEvery = 512

// RecordInteractionRequest is the body of POST /api/v1/interactions.
type RecordInteractionRequest struct {
	// UserID is only honored for service callers whose identity carries no
	// user; otherwise the authenticated user is recorded.
	UserID          int64  `json:"userId" validate:"omitempty,gt=0"`
	ProductID       int64  `json:"productId" validate:"required,gt=0"`
	InteractionType string `json:"interactionType" validate:"required,interaction_type"`
}

// recordInteraction records one engagement for the authenticated user.
//
// @Summary Record an interaction
// @Tags Interactions
// @Accept json
// @Produce json
// @Param body body RecordInteractionRequest true "Interaction"
// @Success 201 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Router /api/v1/interactions [post]
func (rt *Router) recordInteraction(w http.ResponseWriter, r *http.Request) {
	var body RecordInteractionRequest
	if err := decodeJSON(w, r, &body); err != nil {
		respondErr(w, r, err)
		return
	}

	userID := body.UserID
	if s, ok := auth.SubjectFromContext(r.Context()); ok && s.UserID != 0 {
		userID = s.UserID
	}
	if userID <= 0 {
		respondErr(w, r, apperr.Validationf("user id is required"))
		return
	}

	ev, err := rt.deps.Recorder.RecordNamed(r.Context(), userID, body.ProductID, body.InteractionType)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondData(w, r, http.StatusCreated, ev)
}

// exportInteractions returns the training records after a cursor, as one
// JSON page or, with format=ndjson, as a lazily written stream.
//
// @Summary Export training records
// @Tags Interactions
// @Produce json
// @Produce application/x-ndjson
// @Param cursor query int false "Exclusive start cursor"
// @Param limit query int false "Page size"
// @Param format query string false "json or ndjson"
// @Success 200 {object} models.APIResponse
// @Router /api/v1/interactions/export [get]
func (rt *Router) exportInteractions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cursor, err := parseUint(q.Get("cursor"), 0)
	if err != nil {
		respondErr(w, r, apperr.Validationf("cursor must be a non-negative integer"))
		return
	}

	format := q.Get("format")
	switch format {
	case "", "json":
	case "ndjson":
		limit := 0
		if raw := q.Get("limit"); raw != "" {
			if limit, err = strconv.Atoi(raw); err != nil || limit <= 0 {
				respondErr(w, r, apperr.Validationf("limit must be a positive integer"))
				return
			}
		}
		rt.streamExport(w, r, cursor, limit)
		return
	default:
		respondErr(w, r, apperr.Validationf("unknown format %q", format))
		return
	}

	limit := rt.cfg.ExportDefaultLimit
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > rt.cfg.ExportMaxLimit {
			respondErr(w, r, apperr.Validationf("limit must be between 1 and %d", rt.cfg.ExportMaxLimit))
			return
		}
	}

	w.Header().Set(headerExportHead, strconv.FormatUint(rt.deps.Exporter.Head(), 10))
	page, err := rt.deps.Exporter.ExportPage(r.Context(), cursor, limit)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, page)
}

// exportLine is one ndjson record with its log cursor.
type exportLine struct {
	Cursor uint64 `json:"cursor"`
	models.InteractionRecord
}

// streamExport writes one record per line. Once streaming starts the
// status is committed, so a mid-stream failure ends the stream early; the
// client resumes from the last cursor it read.
func (rt *Router) streamExport(w http.ResponseWriter, r *http.Request, cursor uint64, limit int) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set(headerExportHead, strconv.FormatUint(rt.deps.Exporter.Head(), 10))
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	n := 0
	for rec, err := range rt.deps.Exporter.ExportSince(r.Context(), cursor) {
		if err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Uint64("after_cursor", cursor).Int("written", n).Msg("Export stream aborted")
			break
		}
		if err := enc.Encode(exportLine{Cursor: rec.Cursor, InteractionRecord: rec}); err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Msg("Export client went away")
			return
		}
		n++
		if n%ndjsonFlushEvery == 0 {
			if bw.Flush() != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if limit > 0 && n == limit {
			break
		}
	}
	_ = bw.Flush() //nolint:errcheck // client may be gone
	if flusher != nil {
		flusher.Flush()
	}
}

func parseUint(raw string, def uint64) (uint64, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.ParseUint(raw, 10, 64)
}
