package logging

import (
	"context"
	"log/slog"

	"pmxfactory/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldAssemblyKind names the request variant being assembled (channel_strip, output_stage).
	FieldAssemblyKind = "assembly_kind"
	// FieldStripKind is the channel strip variant (basic, cross_faded).
	FieldStripKind = "strip_kind"
	// FieldName is the user supplied strip or stage name.
	FieldName = "name"
	// FieldStripID is the identifier allocated to a channel strip.
	FieldStripID = "strip_id"
	// FieldStageID is the identifier returned by the registry for an output stage.
	FieldStageID = "stage_id"
	// FieldRole is the logical plugin role within a strip (saturator, gain, ...).
	FieldRole = "role"
	// FieldStep is the assembly step (instantiation, wiring, registration).
	FieldStep = "step"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells an operator what to try next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldError carries the error value.
	FieldError = "error"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	if kind, ok := services.AssemblyKindFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldAssemblyKind, kind))
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
