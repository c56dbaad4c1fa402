package web

import (
	"context"
	"log/slog"
)

type subjectKey struct{}

// WithSubject stores the authenticated subject in the context.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// GetSubject retrieves the authenticated subject from the context.
// Returns the subject and a boolean indicating whether it was found.
func GetSubject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey{}).(string)
	return subject, ok && subject != ""
}

// SubjectAttr is a logger.Extractor adding the authenticated subject to log records.
func SubjectAttr(ctx context.Context) (slog.Attr, bool) {
	subject, ok := GetSubject(ctx)
	if !ok {
		return slog.Attr{}, false
	}
	return slog.String("subject", subject), true
}
