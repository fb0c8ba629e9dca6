package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldStage is the orchestrator state the record was emitted from.
	FieldStage = "stage"
	// FieldResource is the id of the resource being provisioned or supervised.
	FieldResource = "resource"
	// FieldEventType names the kind of event for log filtering.
	FieldEventType = "event_type"
	FieldErrorKind = "error_kind"
	FieldErrorHint = "error_hint"
)

type contextKey int

const (
	stageKey contextKey = iota
	resourceKey
)

// WithStage records the current orchestrator stage on ctx.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey, stage)
}

// WithResource records the resource being worked on.
func WithResource(ctx context.Context, resource string) context.Context {
	return context.WithValue(ctx, resourceKey, resource)
}

// StageFromContext returns the stage stored by WithStage.
func StageFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	stage, ok := ctx.Value(stageKey).(string)
	return stage, ok && stage != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if stage, ok := StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if resource, ok := ctx.Value(resourceKey).(string); ok && resource != "" {
		fields = append(fields, slog.String(FieldResource, resource))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
