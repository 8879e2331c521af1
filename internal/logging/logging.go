// Package logging builds the zap logger used by the prober.
//
// Lines look like
//
//	2025-01-01T07:00:00.000Z [INFO] Navigating to page...
//
// so that a scheduler's log viewer shows the same tags regardless of whether
// the run came from cron, a CI workflow or a terminal.
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// levelTag maps zap levels onto the prober's log tags
func levelTag(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch l {
	case zapcore.DebugLevel:
		enc.AppendString("[DEBUG]")
	case zapcore.InfoLevel:
		enc.AppendString("[INFO]")
	case zapcore.WarnLevel:
		enc.AppendString("[ALERT]")
	default:
		enc.AppendString("[" + l.CapitalString() + "]")
	}
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = levelTag
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.CallerKey = ""
	cfg.StacktraceKey = ""
	cfg.ConsoleSeparator = " "
	return cfg
}

// New returns a logger writing debug/info/warn to stdout and errors to stderr
func New(verbose bool) *zap.Logger {
	return NewWithWriters(os.Stdout, os.Stderr, verbose)
}

// NewWithWriters is New with explicit destinations
func NewWithWriters(out, errOut io.Writer, verbose bool) *zap.Logger {
	minLevel := zapcore.InfoLevel
	if verbose {
		minLevel = zapcore.DebugLevel
	}

	low := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= minLevel && l < zapcore.ErrorLevel
	})
	high := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= zapcore.ErrorLevel
	})

	enc := zapcore.NewConsoleEncoder(encoderConfig())
	core := zapcore.NewTee(
		zapcore.NewCore(enc, zapcore.AddSync(out), low),
		zapcore.NewCore(enc.Clone(), zapcore.AddSync(errOut), high),
	)
	return zap.New(core)
}
