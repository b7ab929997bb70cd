// Package logger provides opinionated logging capabilities for the rovo relay and its clients
package logger

import (
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the console logger used by the relay server.
func NewLogger(debug bool) *zap.Logger {
	return NewLoggerTo(os.Stdout, debug, true)
}

// NewLoggerTo builds a console logger writing to w. Colour level encoding is
// only useful on a terminal, so callers writing to files or to a TUI log pane
// turn it off.
func NewLoggerTo(w io.Writer, debug bool, color bool) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if color {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	// Set log level
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(w),
		level,
	)

	return zap.New(core, zap.AddCaller())
}

// Truncate shortens s for log previews, flattening newlines. The cut never
// splits a multi-byte rune, so the result may be shorter than maxLen bytes.
func Truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 0 {
		maxLen = 0
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
