package logging

import (
	"context"
	"log/slog"
)

// levelOverrideHandler raises the minimum level for one logger without
// touching the shared handler underneath, which stays configured at the
// most verbose level any component needs.
type levelOverrideHandler struct {
	next  slog.Handler
	level slog.Level
}

func newLevelOverrideHandler(next slog.Handler, level slog.Level) slog.Handler {
	if next == nil {
		return NoopHandler{}
	}
	return &levelOverrideHandler{next: next, level: level}
}

func (h *levelOverrideHandler) withNext(next slog.Handler) slog.Handler {
	return &levelOverrideHandler{next: next, level: h.level}
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
	return h.withNext(h.next.WithAttrs(attrs))
}

func (h *levelOverrideHandler) WithGroup(name string) slog.Handler {
	return h.withNext(h.next.WithGroup(name))
}

// CloneWithLevel rebinds the override to a new level, keeping the wrapped
// handler (and its accumulated attributes) intact.
func (h *levelOverrideHandler) CloneWithLevel(level slog.Level) slog.Handler {
	return &levelOverrideHandler{next: h.next, level: level}
}

// WithLevelOverride returns a logger enforcing the provided minimum level
// while preserving existing attributes and handler wiring. An
// already-overridden logger is rebound rather than double-wrapped.
func WithLevelOverride(logger *slog.Logger, level slog.Level) *slog.Logger {
	if logger == nil {
		return slog.New(newLevelOverrideHandler(nil, level))
	}
	if cloner, ok := logger.Handler().(interface{ CloneWithLevel(slog.Level) slog.Handler }); ok {
		return slog.New(cloner.CloneWithLevel(level))
	}
	return slog.New(newLevelOverrideHandler(logger.Handler(), level))
}
