// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// JobMetrics logs one maintenance job run in a parseable shape for log
// aggregation: entities selected, actions actually taken, wall duration.
func (l *Logger) JobMetrics(jobName string, processed, actions int, duration time.Duration) {
	l.Info("job_metrics",
		slog.String("job", jobName),
		slog.Int("processed", processed),
		slog.Int("actions", actions),
		slog.Int64("duration_ms", duration.Milliseconds()),
	)
}

// JobItemError logs a per-item failure inside a batch job. The batch continues.
func (l *Logger) JobItemError(jobName, leadID string, err error) {
	l.Error("job_item_error",
		slog.String("job", jobName),
		slog.String("lead_id", leadID),
		slog.String("error", err.Error()),
	)
}
