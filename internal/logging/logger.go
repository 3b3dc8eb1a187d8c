// Actionrank - Persona-Driven Climate Action Recommendations
// Copyright 2026 Verdant Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/verdantlabs/actionrank

// Package logging wraps zerolog behind a small process-wide surface.
//
// Init is called once from main; everything else in the process logs
// through the package-level helpers or through a child logger obtained
// from WithComponent. Request-scoped logging goes through Ctx, which
// stamps the request ID carried in the context onto every event.
//
// Always finish a chain with .Msg or .Send, and prefer fields over
// formatted messages:
//
//	logging.Info().Str("user", u).Int("count", n).Msg("scored")
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config controls the global logger. Zero values fall back to the
// defaults noted on each field.
type Config struct {
	Level     string    // trace|debug|info|warn|error|fatal|panic|disabled, default info
	Format    string    // json or console, default json
	Caller    bool      // annotate events with file:line
	Timestamp bool      // default on via DefaultConfig
	Output    io.Writer // default os.Stderr
}

// DefaultConfig is what the process runs with before Init is called.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Timestamp: true, Output: os.Stderr}
}

var (
	mu  sync.RWMutex
	log zerolog.Logger
)

//nolint:gochecknoinits // packages may log before main reaches Init
func init() {
	log = build(DefaultConfig())
}

// Init reconfigures the global logger. Safe to call again, which the
// tests rely on to capture and then restore output.
func Init(cfg Config) {
	mu.Lock()
	log = build(cfg)
	mu.Unlock()
}

func build(cfg Config) zerolog.Logger {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	w := cfg.Output
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	l := zerolog.New(w)
	if cfg.Timestamp {
		l = l.With().Timestamp().Logger()
	}
	if cfg.Caller {
		l = l.With().Caller().Logger()
	}
	return l
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns a copy of the global logger for direct use, for
// example when a constructor takes a zerolog.Logger parameter.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// WithComponent returns a child logger tagged with a component field.
// Long-lived subsystems hold one of these instead of calling the
// package-level helpers.
func WithComponent(name string) zerolog.Logger {
	return Logger().With().Str("component", name).Logger()
}

// Debug starts a debug-level event on the global logger.
func Debug() *zerolog.Event {
	l := Logger()
	return l.Debug()
}

// Info starts an info-level event on the global logger.
func Info() *zerolog.Event {
	l := Logger()
	return l.Info()
}

// Warn starts a warn-level event on the global logger.
func Warn() *zerolog.Event {
	l := Logger()
	return l.Warn()
}

// Error starts an error-level event on the global logger.
func Error() *zerolog.Event {
	l := Logger()
	return l.Error()
}

// Fatal starts a fatal-level event. zerolog exits the process once the
// event is sent.
func Fatal() *zerolog.Event {
	l := Logger()
	return l.Fatal()
}

// NewTestLogger builds a standalone logger writing to w so tests can
// assert on output without touching the global logger.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
