// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package auth

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// HeaderAuthenticator trusts identity headers from a gateway.
type HeaderAuthenticator struct {
	userHeader  string
	roleHeader  string
	defaultRole string
}

// Name returns "header".
func (a *HeaderAuthenticator) Name() string { return string(ModeHeader) }

// Authenticate reads the user and role headers. A request with neither is
// unauthenticated; an unparseable user id or unknown role is invalid.
func (a *HeaderAuthenticator) Authenticate(r *http.Request) (*Subject, error) {
	rawUser := strings.TrimSpace(r.Header.Get(a.userHeader))
	role := strings.ToLower(strings.TrimSpace(r.Header.Get(a.roleHeader)))
	if rawUser == "" && role == "" {
		return nil, ErrNoCredentials
	}
	if role == "" {
		role = a.defaultRole
	}
	if !ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidCredentials, role)
	}

	userID, err := parseUserID(rawUser)
	if err != nil {
		return nil, err
	}
	return &Subject{UserID: userID, Role: role, Method: ModeHeader}, nil
}

// NoneAuthenticator lets every request through as admin.
type NoneAuthenticator struct {
	userHeader string
}

// Name returns "none".
func (a *NoneAuthenticator) Name() string { return string(ModeNone) }

// Authenticate never fails on missing identity; the user id comes from the
// user header when present.
func (a *NoneAuthenticator) Authenticate(r *http.Request) (*Subject, error) {
	userID, err := parseUserID(strings.TrimSpace(r.Header.Get(a.userHeader)))
	if err != nil {
		return nil, err
	}
	return &Subject{UserID: userID, Role: RoleAdmin, Method: ModeNone}, nil
}

func parseUserID(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: user id must be a positive integer", ErrInvalidCredentials)
	}
	return id, nil
}
