// Package logging configures the global zerolog logger for ReaVoice and
// provides context helpers for persistence writes that must outlive their
// caller's cancellation.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger. Output goes to stderr with
// console formatting; when filePath is non-empty, a plain copy also goes
// to the file. Returns a close function for the file handle.
func Setup(level string, filePath string) (func(), error) {
	zerolog.SetGlobalLevel(parseLevel(level))
	zerolog.TimeFieldFormat = time.RFC3339

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}

	if filePath == "" {
		log.Logger = zerolog.New(console).With().Timestamp().Logger()
		return func() {}, nil
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	multi := io.MultiWriter(console, file)
	log.Logger = zerolog.New(multi).With().Timestamp().Logger()

	return func() { file.Close() }, nil
}

// parseLevel maps a config level string to a zerolog level. Unknown
// strings fall back to info rather than erroring.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
