package services

import "context"

type contextKey string

const (
	requestIDKey    contextKey = "request_id"
	assemblyKindKey contextKey = "assembly_kind"
)

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithAssemblyKind annotates context with the request variant being assembled.
func WithAssemblyKind(ctx context.Context, kind string) context.Context {
	if kind == "" {
		return ctx
	}
	return context.WithValue(ctx, assemblyKindKey, kind)
}

// AssemblyKindFromContext returns the assembly kind if present.
func AssemblyKindFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(assemblyKindKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
