package audit

import (
	"context"
	"log/slog"
)

// SlogSink writes each event as a structured log record.
type SlogSink struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlogSink logs events at INFO on logger, or slog.Default() when
// logger is nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger, level: slog.LevelInfo}
}

// WithLevel returns a copy of s that logs at level.
func (s *SlogSink) WithLevel(level slog.Level) *SlogSink {
	return &SlogSink{logger: s.logger, level: level}
}

// Emit logs e. Accepted events carry the user ID and rejected events
// carry the reason. It never fails.
func (s *SlogSink) Emit(ctx context.Context, e Event) error {
	attrs := []slog.Attr{
		slog.String("event_id", e.ID),
		slog.Time("timestamp", e.Timestamp),
		slog.String("outcome", e.Outcome),
		slog.String("token_kind", e.TokenKind),
		slog.String("mode", e.Mode),
	}
	if e.Accepted() {
		attrs = append(attrs, slog.String("user_id", e.UserID))
	} else {
		attrs = append(attrs, slog.String("reason", e.Reason))
	}
	if e.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", e.TraceID))
	}
	s.logger.LogAttrs(ctx, s.level, "auth audit", slog.Attr{Key: "audit", Value: slog.GroupValue(attrs...)})
	return nil
}
