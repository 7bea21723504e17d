package events

import (
	"context"
	"log/slog"
)

// Log writes events to a structured logger. It is the default publisher
// when no broker is configured.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Publish(ctx context.Context, e Event) error {
	attrs := []slog.Attr{
		slog.String("event_id", e.ID),
		slog.String("type", string(e.Type)),
		slog.String("dni", e.DNI),
		slog.Time("at", e.At),
	}
	if e.ControlPointID != 0 {
		attrs = append(attrs, slog.Int("control_point_id", e.ControlPointID), slog.String("direction", e.Direction))
	}
	if e.MovementID != 0 {
		attrs = append(attrs, slog.Int64("movement_id", e.MovementID))
	}
	if e.DetailID != 0 {
		attrs = append(attrs, slog.Int64("detail_id", e.DetailID), slog.String("kind", e.Kind))
	}
	if e.Rule != "" {
		attrs = append(attrs, slog.String("rule", e.Rule), slog.String("reason", e.Reason), slog.String("state", e.State))
	}
	l.logger.LogAttrs(ctx, slog.LevelInfo, "ledger event", attrs...)
	return nil
}
