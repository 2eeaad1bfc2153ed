package logging

import (
	"context"
	"log/slog"
)

// levelOverrideHandler raises the minimum level of one logger, typically the
// chatty protocol logger, without touching the shared handler.
type levelOverrideHandler struct {
	next  slog.Handler
	level slog.Level
}

func (h *levelOverrideHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level && h.next.Enabled(ctx, level)
}

func (h *levelOverrideHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.level {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *levelOverrideHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelOverrideHandler{next: h.next.WithAttrs(attrs), level: h.level}
}

func (h *levelOverrideHandler) WithGroup(name string) slog.Handler {
	return &levelOverrideHandler{next: h.next.WithGroup(name), level: h.level}
}

// WithLevelOverride returns a logger that drops records below level.
// An empty level name returns logger unchanged.
func WithLevelOverride(logger *slog.Logger, level string) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	if level == "" {
		return logger
	}
	next := logger.Handler()
	if existing, ok := next.(*levelOverrideHandler); ok {
		next = existing.next
	}
	return slog.New(&levelOverrideHandler{next: next, level: ParseLevel(level)})
}
