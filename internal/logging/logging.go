// Package logging configures the process-wide zerolog logger and carries
// correlation ids through context so every log line in the pipeline can be
// traced back to a single ingestion attempt.
package logging

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level: debug, info, warn, error. Default: info.
	Level string

	// Format is json or console. Default: json.
	Format string
}

var (
	mu     sync.RWMutex
	logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// Init configures the global logger. Safe to call once at startup.
func Init(cfg Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out = os.Stderr
	l := zerolog.New(out).Level(level).With().Timestamp().Logger()
	if strings.EqualFold(cfg.Format, "console") {
		l = l.Output(zerolog.ConsoleWriter{Out: out})
	}

	mu.Lock()
	logger = l
	zerolog.DefaultContextLogger = &logger
	mu.Unlock()
}

// Logger returns the global logger.
func Logger() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return &logger
}

// WithCorrelationID returns a context whose logger tags every entry with the
// given correlation id.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	l := Logger().With().Str("correlation_id", correlationID).Logger()
	return l.WithContext(ctx)
}

// Ctx returns the logger stored in ctx, falling back to the global logger.
func Ctx(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return Logger()
}
