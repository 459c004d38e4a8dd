// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/signalcart/internal/apperr"
	"github.com/tomtom215/signalcart/internal/auth"
	"github.com/tomtom215/signalcart/internal/authz"
	"github.com/tomtom215/signalcart/internal/logging"
	"github.com/tomtom215/signalcart/internal/models"
	"github.com/tomtom215/signalcart/internal/training"
	"github.com/tomtom215/signalcart/internal/validation"
)

// Error codes.
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeTrainingInProgress = "TRAINING_IN_PROGRESS"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeModelUnavailable   = "MODEL_UNAVAILABLE"
	ErrCodeUnavailable        = "SERVICE_UNAVAILABLE"
	ErrCodeStorage            = "STORAGE_ERROR"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, r *http.Request, status int, resp *models.APIResponse) {
	resp.Metadata = models.Metadata{
		Timestamp: time.Now().UTC(),
		RequestID: logging.RequestIDFromContext(r.Context()),
	}
	data, err := json.Marshal(resp)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Failed to write JSON response")
	}
}

func respondData(w http.ResponseWriter, r *http.Request, status int, data any) {
	respondJSON(w, r, status, &models.APIResponse{Status: "success", Data: data})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	respondJSON(w, r, status, &models.APIResponse{
		Status: "error",
		Error:  &models.APIError{Code: code, Message: message, Details: details},
	})
}

// respondErr maps err onto a status and error code. Server-side failures
// are logged and reported without their cause.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	var ve *validation.RequestValidationError
	switch {
	case errors.As(err, &ve):
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, ve.Error(), ve.Details())
	case errors.Is(err, apperr.ErrValidation):
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, err.Error(), nil)
	case errors.Is(err, auth.ErrNoCredentials), errors.Is(err, auth.ErrInvalidCredentials):
		respondError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error(), nil)
	case errors.Is(err, authz.ErrForbidden), errors.Is(err, authz.ErrUnauthenticated), errors.Is(err, authz.ErrEmptyRole):
		respondError(w, r, http.StatusForbidden, ErrCodeForbidden, err.Error(), nil)
	case errors.Is(err, apperr.ErrTrainingInProgress):
		respondError(w, r, http.StatusConflict, ErrCodeTrainingInProgress, err.Error(), nil)
	case errors.Is(err, apperr.ErrConflict):
		respondError(w, r, http.StatusConflict, ErrCodeConflict, err.Error(), nil)
	case errors.Is(err, apperr.ErrNotFound):
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, err.Error(), nil)
	case errors.Is(err, apperr.ErrModelUnavailable):
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeModelUnavailable, "no model or fallback available", nil)
	case errors.Is(err, training.ErrClosed):
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeUnavailable, "shutting down", nil)
	case errors.Is(err, apperr.ErrStorage):
		logging.Ctx(r.Context()).Error().Err(err).Msg("Storage failure")
		respondError(w, r, http.StatusInternalServerError, ErrCodeStorage, "storage failure", nil)
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("Request failed")
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "internal error", nil)
	}
}

// decodeJSON reads a JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return apperr.Validationf("invalid JSON body: %v", err)
	}
	return validation.ValidateStruct(dst)
}
