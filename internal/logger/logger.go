// Package logger builds the charm logger used across reportctl and carries it
// through a context.
package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Config controls logger construction.
type Config struct {
	Level      string
	Format     string // "text" or "json"
	Output     io.Writer
	TimeFormat string
	Caller     bool
}

// DefaultConfig returns a text logger at info level writing to stderr.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "text",
		Output:     os.Stderr,
		TimeFormat: "15:04:05",
	}
}

// ParseLevel maps a config string to a charm log level, defaulting to info.
func ParseLevel(s string) log.Level {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// New creates a logger from cfg.
func New(cfg Config) *log.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = "15:04:05"
	}
	l := log.NewWithOptions(cfg.Output, log.Options{
		ReportCaller:    cfg.Caller,
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		Level:           ParseLevel(cfg.Level),
	})
	if strings.EqualFold(cfg.Format, "json") {
		l.SetFormatter(log.JSONFormatter)
	} else {
		l.SetFormatter(log.TextFormatter)
	}
	return l
}

// Init builds a logger and installs it as the package default of charm log,
// so plain log.Debug calls in command code go through it.
func Init(cfg Config) *log.Logger {
	l := New(cfg)
	log.SetDefault(l)
	return l
}

// WithContext returns a copy of ctx carrying l.
func WithContext(ctx context.Context, l *log.Logger) context.Context {
	return log.WithContext(ctx, l)
}

// FromContext returns the logger stored in ctx, or the charm default.
func FromContext(ctx context.Context) *log.Logger {
	if ctx == nil {
		return log.Default()
	}
	return log.FromContext(ctx)
}

// Discard returns a logger that drops everything. Tests use it.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}
