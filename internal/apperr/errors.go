// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

// Package apperr defines the error taxonomy shared by the interaction log,
// training and serving paths. Callers classify errors with errors.Is against
// the sentinels below; the HTTP layer maps each class to a status code.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or out-of-range input. Never retried.
	ErrValidation = errors.New("validation error")

	// ErrConflict marks a request that collides with current state, such as a
	// second training run or a duplicate model version tag.
	ErrConflict = errors.New("conflict")

	// ErrStorage marks an interaction log or model registry I/O failure.
	ErrStorage = errors.New("storage error")

	// ErrModelUnavailable means no active model exists and no fallback could
	// serve the request.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrNotFound marks a lookup of something that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTrainingInProgress is a conflict returned when a run is already active.
	ErrTrainingInProgress = fmt.Errorf("%w: training already in progress", ErrConflict)
)

// Validationf returns an ErrValidation with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Conflictf returns an ErrConflict with a formatted message.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// NotFoundf returns an ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// StorageError wraps an underlying I/O error with the failed operation.
// It matches both ErrStorage and the wrapped cause under errors.Is.
type StorageError struct {
	Op  string
	Err error
}

// Storage wraps err as a StorageError for op. A nil err returns nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s: %v", e.Op, e.Err)
}

// Unwrap exposes both the class sentinel and the cause.
func (e *StorageError) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}

// IsClientError reports whether err should be surfaced as a 4xx.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound)
}
