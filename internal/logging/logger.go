// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

// Package logging provides the zerolog-based logger shared by every Signalcart
// component.
//
// main builds the process logger once and hands it down by value:
//
//	logger := logging.Init(cfg.Logger())
//	orch, err := training.New(cfg.Training(), exp, reg, trainer, logger)
//
// Components derive their own child logger with a component field:
//
//	logger = logger.With().Str("component", "training").Logger()
//
// Request-scoped logging goes through Ctx, which adds the request and
// correlation IDs stored by the API middleware:
//
//	logging.Ctx(r.Context()).Warn().Err(err).Msg("Recording failed")
//
// Bridges are provided for libraries that expect other logger types:
// SlogHandler for sutureslog and WatermillAdapter for the event bus.
package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level: trace, debug, info, warn, error, fatal or
	// disabled. Unknown names mean info.
	Level string

	// Format is json or console.
	Format string

	// Caller adds file:line to every entry.
	Caller bool

	// Service, when set, is added to every entry as the service field.
	Service string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Format:  "json",
		Service: "signalcart",
	}
}

var levels = map[string]zerolog.Level{
	"trace":    zerolog.TraceLevel,
	"debug":    zerolog.DebugLevel,
	"info":     zerolog.InfoLevel,
	"warn":     zerolog.WarnLevel,
	"warning":  zerolog.WarnLevel,
	"error":    zerolog.ErrorLevel,
	"fatal":    zerolog.FatalLevel,
	"disabled": zerolog.Disabled,
	"off":      zerolog.Disabled,
}

func parseLevel(level string) zerolog.Level {
	if l, ok := levels[strings.ToLower(strings.TrimSpace(level))]; ok {
		return l
	}
	return zerolog.InfoLevel
}

// ValidLevel reports whether level is a level name New understands.
func ValidLevel(level string) bool {
	_, ok := levels[strings.ToLower(strings.TrimSpace(level))]
	return ok
}

// global is what Logger and Ctx fall back to before Init runs.
var global atomic.Pointer[zerolog.Logger]

//nolint:gochecknoinits // configuration errors are logged before Init
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFieldName = "time"
	zerolog.MessageFieldName = "message"
	Init(DefaultConfig())
}

// New builds a logger from cfg. The level is set on the logger itself, so
// loggers built for tests do not change the process level.
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	lc := zerolog.New(out).Level(parseLevel(cfg.Level)).With().Timestamp()
	if cfg.Service != "" {
		lc = lc.Str("service", cfg.Service)
	}
	if cfg.Caller {
		lc = lc.Caller()
	}
	return lc.Logger()
}

// Init installs New(cfg) as the process logger and returns it. Safe to call
// more than once.
func Init(cfg Config) zerolog.Logger {
	l := New(cfg)
	global.Store(&l)
	return l
}

// Logger returns the process logger.
func Logger() zerolog.Logger {
	return *global.Load()
}
