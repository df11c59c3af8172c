// Package logger provides the leveled logging sink used across the SDK.
// It wraps zerolog so that output formatting (JSON in production, console
// for development) and level management stay consistent, while the core
// packages only depend on the small Logger interface below.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Level is the severity of a log message.
type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	// LevelOff disables all output.
	LevelOff
)

// Logger is the sink the evaluator and the sync state machine log through.
// Enabled lets callers skip expensive message construction (the evaluation
// trace) when the target level is not observable.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Enabled(level Level) bool
}

// New creates a zerolog-backed Logger writing to os.Stderr.
func New(level string, format string) Logger {
	return NewWithWriter(level, format, os.Stderr)
}

// NewWithWriter creates a zerolog-backed Logger writing to w. Useful for
// capturing output in tests.
func NewWithWriter(level string, format string, w io.Writer) Logger {
	var out io.Writer = w
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: w}
	}
	zl := zerolog.New(out).Level(parseLevel(level)).With().Timestamp().Logger()
	return &zerologAdapter{zl: zl}
}

// Nop returns a Logger that discards everything. All levels report disabled.
func Nop() Logger {
	return &zerologAdapter{zl: zerolog.Nop()}
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "off", "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func toZerologLevel(level Level) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.Disabled
	}
}

type zerologAdapter struct {
	zl zerolog.Logger
}

func (a *zerologAdapter) Debugf(format string, args ...any) {
	a.zl.Debug().Msg(fmt.Sprintf(format, args...))
}

func (a *zerologAdapter) Infof(format string, args ...any) {
	a.zl.Info().Msg(fmt.Sprintf(format, args...))
}

func (a *zerologAdapter) Warnf(format string, args ...any) {
	a.zl.Warn().Msg(fmt.Sprintf(format, args...))
}

func (a *zerologAdapter) Errorf(format string, args ...any) {
	a.zl.Error().Msg(fmt.Sprintf(format, args...))
}

func (a *zerologAdapter) Enabled(level Level) bool {
	zlevel := toZerologLevel(level)
	return zlevel >= a.zl.GetLevel() && a.zl.GetLevel() != zerolog.Disabled
}
