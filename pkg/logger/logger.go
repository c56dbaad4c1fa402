// Package logger provides a slog handler that enriches records with request scoped values.
package logger

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
)

// Extractor pulls a single attribute out of a context. ok is false when the value is absent.
type Extractor func(ctx context.Context) (attr slog.Attr, ok bool)

// ContextHandler is a wrapper around slog.Handler that adds context information.
type ContextHandler struct {
	slog.Handler
	extractors []Extractor
}

// NewContextHandler creates a new ContextHandler. Trace and request ids are always extracted,
// extra extractors are applied after them.
func NewContextHandler(handler slog.Handler, extra ...Extractor) *ContextHandler {
	extractors := append([]Extractor{TraceID, RequestID}, extra...)
	return &ContextHandler{
		Handler:    handler,
		extractors: extractors,
	}
}

// TraceID extracts the id of the active OpenTelemetry span.
func TraceID(ctx context.Context) (slog.Attr, bool) {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return slog.Attr{}, false
	}
	return slog.String("trace_id", span.SpanContext().TraceID().String()), true
}

// RequestID extracts the chi request id.
func RequestID(ctx context.Context) (slog.Attr, bool) {
	reqID := middleware.GetReqID(ctx)
	if reqID == "" {
		return slog.Attr{}, false
	}
	return slog.String("request_id", reqID), true
}

// Handle processes a log record and adds context information.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, extract := range h.extractors {
		if attr, ok := extract(ctx); ok {
			r.AddAttrs(attr)
		}
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs returns a new ContextHandler with the given attributes added.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{
		Handler:    h.Handler.WithAttrs(attrs),
		extractors: h.extractors,
	}
}

// WithGroup returns a new ContextHandler with the given group added.
func (h *ContextHandler) WithGroup(group string) slog.Handler {
	return &ContextHandler{
		Handler:    h.Handler.WithGroup(group),
		extractors: h.extractors,
	}
}
