// Package logging builds the application's zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/wizdm/studio-backend/config"
)

// New returns a logger writing to stdout.
func New(cfg config.LogConfig, service string) (zerolog.Logger, error) {
	return NewWithWriter(os.Stdout, cfg, service)
}

// NewWithWriter returns a logger writing JSON lines to w, or human-readable
// lines when cfg.Format is "console".
func NewWithWriter(w io.Writer, cfg config.LogConfig, service string) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), err
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Logger(), nil
}
