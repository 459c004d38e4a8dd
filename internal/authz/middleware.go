// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package authz

import (
	"errors"
	"net/http"

	"github.com/tomtom215/signalcart/internal/auth"
)

var (
	// ErrUnauthenticated means no subject reached the authorization check.
	ErrUnauthenticated = errors.New("no authentication context")
	// ErrForbidden means the subject's role lacks the permission.
	ErrForbidden = errors.New("insufficient permissions")
)

// ErrorWriter writes an authorization failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware gates handlers on policy decisions.
type Middleware struct {
	enforcer *Enforcer
	onError  ErrorWriter
}

// NewMiddleware creates a Middleware reporting failures through onError.
func NewMiddleware(enforcer *Enforcer, onError ErrorWriter) *Middleware {
	return &Middleware{enforcer: enforcer, onError: onError}
}

// Authorize lets the request through only if the authenticated subject may
// perform act on obj.
func (m *Middleware) Authorize(obj, act string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, ok := auth.SubjectFromContext(r.Context())
			if !ok {
				m.onError(w, r, ErrUnauthenticated)
				return
			}
			allowed, err := m.enforcer.Enforce(subject.Role, obj, act)
			if err != nil {
				m.onError(w, r, err)
				return
			}
			if !allowed {
				m.onError(w, r, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
