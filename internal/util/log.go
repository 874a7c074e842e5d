package util

import (
	"io"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
)

// LogOptions configures where log lines go besides stdout.
type LogOptions struct {
	Level string
	// File enables a size-rotated log file when non-empty.
	File string
	// Recent receives a copy of every line for the snapshot log tail.
	Recent *RecentLogs
	// Console replaces stdout as the primary sink.
	Console io.Writer
}

func NewLogger(level string) zerolog.Logger {
	return NewLoggerWithOptions(LogOptions{Level: level})
}

// NewLoggerWithOptions builds a JSON logger fanning out to stdout, an optional rotating file and an optional in-memory tail.
func NewLoggerWithOptions(opts LogOptions) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		lvl = zerolog.InfoLevel
	}
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	writers := []io.Writer{console}
	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    20,
			MaxBackups: 5,
			MaxAge:     14,
		})
	}
	if opts.Recent != nil {
		writers = append(writers, opts.Recent)
	}
	return zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger().Level(lvl)
}

// MaskSecret keeps a short prefix and suffix of a credential so logs stay useful without leaking it.
func MaskSecret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 6 {
		return "***"
	}
	return value[:3] + "***" + value[len(value)-2:]
}
