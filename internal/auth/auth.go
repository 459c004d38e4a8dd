// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

// Package auth identifies the caller of an API request.
//
// Signalcart sits behind a storefront backend or gateway, so it never runs
// login flows itself. It either trusts identity headers set by that gateway,
// verifies an HS256 bearer token, or (in development) accepts everyone as
// admin. The result is a Subject carrying a numeric user id and one role,
// which the authz package checks against route policy.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Mode is the authentication strategy.
type Mode string

const (
	// ModeNone trusts X-User-ID if present and grants admin. Development only.
	ModeNone Mode = "none"
	// ModeHeader trusts identity headers set by an upstream gateway.
	ModeHeader Mode = "header"
	// ModeJWT verifies an HS256 bearer token.
	ModeJWT Mode = "jwt"
)

// ParseMode converts a configured mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeNone, "":
		return ModeNone, nil
	case ModeHeader:
		return ModeHeader, nil
	case ModeJWT:
		return ModeJWT, nil
	default:
		return "", fmt.Errorf("invalid auth mode %q", s)
	}
}

// Roles.
const (
	RoleStorefront = "storefront"
	RoleTrainer    = "trainer"
	RoleAdmin      = "admin"
)

// ValidRole reports whether role is known.
func ValidRole(role string) bool {
	switch role {
	case RoleStorefront, RoleTrainer, RoleAdmin:
		return true
	default:
		return false
	}
}

var (
	// ErrNoCredentials means the request carried no identity.
	ErrNoCredentials = errors.New("no credentials provided")
	// ErrInvalidCredentials means the identity could not be verified.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Subject is an authenticated caller.
type Subject struct {
	// UserID is the storefront user. Zero for service callers without one.
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	Method Mode   `json:"method"`
}

// Authenticator extracts a Subject from a request.
type Authenticator interface {
	Authenticate(r *http.Request) (*Subject, error)
	Name() string
}

// Config selects and configures the authenticator.
type Config struct {
	Mode Mode

	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	UserHeader string
	RoleHeader string

	// DefaultRole applies in header mode when the role header is absent.
	DefaultRole string
}

// DefaultConfig returns development defaults.
func DefaultConfig() Config {
	return Config{
		Mode:        ModeNone,
		JWTIssuer:   "signalcart",
		TokenTTL:    24 * time.Hour,
		UserHeader:  "X-User-ID",
		RoleHeader:  "X-User-Role",
		DefaultRole: RoleStorefront,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.Mode == ModeJWT && len(c.JWTSecret) < MinSecretLength {
		return fmt.Errorf("jwt secret must be at least %d characters", MinSecretLength)
	}
	if c.Mode == ModeHeader && !ValidRole(c.DefaultRole) {
		return fmt.Errorf("invalid default role %q", c.DefaultRole)
	}
	if c.UserHeader == "" || c.RoleHeader == "" {
		return errors.New("identity header names are required")
	}
	return nil
}

// New builds the authenticator for cfg.
func New(cfg Config) (Authenticator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid auth config: %w", err)
	}
	switch cfg.Mode {
	case ModeJWT:
		m, err := NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
		if err != nil {
			return nil, err
		}
		return NewJWTAuthenticator(m), nil
	case ModeHeader:
		return &HeaderAuthenticator{userHeader: cfg.UserHeader, roleHeader: cfg.RoleHeader, defaultRole: cfg.DefaultRole}, nil
	default:
		return &NoneAuthenticator{userHeader: cfg.UserHeader}, nil
	}
}

type contextKey struct{}

// ContextWithSubject returns a copy of ctx carrying s.
func ContextWithSubject(ctx context.Context, s *Subject) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// SubjectFromContext returns the authenticated subject, if any.
func SubjectFromContext(ctx context.Context) (*Subject, bool) {
	s, ok := ctx.Value(contextKey{}).(*Subject)
	return s, ok && s != nil
}

// ErrorWriter writes an authentication failure response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware authenticates every request, storing the Subject in the
// request context. Failures go to onError and stop the chain.
func Middleware(authn Authenticator, onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := authn.Authenticate(r)
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithSubject(r.Context(), s)))
		})
	}
}
