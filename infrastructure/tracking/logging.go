package tracking

import (
	"context"
	"log/slog"
)

// LoggingReporter logs progress updates.
type LoggingReporter struct {
	logger *slog.Logger
}

// NewLoggingReporter creates a LoggingReporter.
func NewLoggingReporter(logger *slog.Logger) *LoggingReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingReporter{logger: logger}
}

// OnProgress implements Reporter.
func (r *LoggingReporter) OnProgress(ctx context.Context, p Progress) error {
	msg := "ingestion progress"
	if p.Done() {
		msg = "ingestion writes complete"
	}
	r.logger.InfoContext(ctx, msg,
		slog.String("index", p.Index),
		slog.Int("written", p.Written),
		slog.Int("total", p.Total),
		slog.Float64("percent", p.Percent()),
	)
	return nil
}
