package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	runIDKey ctxKey = iota
	stepKey
	strategyKey
)

// WithRunID returns a context with the exploration run ID set.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// WithStep returns a context with the current step index set.
func WithStep(ctx context.Context, step int) context.Context {
	return context.WithValue(ctx, stepKey, step)
}

// WithStrategy returns a context with the active pruning strategy name set.
func WithStrategy(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, strategyKey, name)
}

// RunID extracts the run ID from the context, or "" if absent.
func RunID(ctx context.Context) string {
	v, _ := ctx.Value(runIDKey).(string)
	return v
}

// Step extracts the step index from the context. The second return is
// false when no step has been set.
func Step(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(stepKey).(int)
	return v, ok
}

// Strategy extracts the strategy name from the context, or "" if absent.
func Strategy(ctx context.Context) string {
	v, _ := ctx.Value(strategyKey).(string)
	return v
}

// WithCorrelation sets the run ID and step index on the context at once.
func WithCorrelation(ctx context.Context, runID string, step int) context.Context {
	ctx = WithRunID(ctx, runID)
	ctx = WithStep(ctx, step)
	return ctx
}

// LogWith returns a logger enriched with correlation fields from the context.
// Only values that are actually set are added as attributes.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if id := RunID(ctx); id != "" {
		logger = logger.With(slog.String("run_id", id))
	}
	if step, ok := Step(ctx); ok {
		logger = logger.With(slog.Int("step", step))
	}
	if name := Strategy(ctx); name != "" {
		logger = logger.With(slog.String("strategy", name))
	}
	return logger
}

// CorrelationHandler wraps an slog.Handler, automatically injecting
// correlation fields from the context into every log record.
// Use with slog.New(NewCorrelationHandler(inner)) so callers can use
// logger.InfoContext(ctx, ...) and the fields appear automatically.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler with automatic correlation field injection.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	if v := RunID(ctx); v != "" {
		r.AddAttrs(slog.String("run_id", v))
	}
	if step, ok := Step(ctx); ok {
		r.AddAttrs(slog.Int("step", step))
	}
	if v := Strategy(ctx); v != "" {
		r.AddAttrs(slog.String("strategy", v))
	}
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}
