package audit

import (
	"context"
	"log/slog"
)

// SlogSink writes audit records to a structured logger. It is the default
// production sink when no database sink is configured; log shippers pick
// the records up from the process's log stream.
type SlogSink struct {
	logger *slog.Logger
}

var _ Sink = (*SlogSink)(nil)

// NewSlogSink creates a sink writing to the given logger. A nil logger
// falls back to [slog.Default].
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// WriteDecision logs the decision at INFO for grants and WARN for denials.
func (s *SlogSink) WriteDecision(ctx context.Context, d Decision) error {
	level := slog.LevelInfo
	if !d.Granted {
		level = slog.LevelWarn
	}
	s.logger.LogAttrs(ctx, level, "authorization decision",
		slog.String("audit_id", d.ID),
		slog.String("actor", d.Actor),
		slog.String("action", d.Action),
		slog.String("resource", d.Resource),
		slog.Bool("granted", d.Granted),
		slog.String("reason", d.Reason),
		slog.Int("user_tier", d.UserTier),
		slog.Int("required_tier", d.RequiredTier),
	)
	return nil
}

// WriteEvent logs the event at WARN; security events always indicate an
// anomaly worth surfacing.
func (s *SlogSink) WriteEvent(ctx context.Context, e SecurityEvent) error {
	attrs := []slog.Attr{
		slog.String("audit_id", e.ID),
		slog.String("kind", string(e.Kind)),
		slog.String("key", e.Key),
	}
	for k, v := range e.Details {
		attrs = append(attrs, slog.String("detail_"+k, v))
	}
	s.logger.LogAttrs(ctx, slog.LevelWarn, "security event", attrs...)
	return nil
}
