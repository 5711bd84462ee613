package logger

import (
	"context"
	"log/slog"
)

type eventIDKey struct{}

// WithEventID stores a billing event ID for log correlation.
func WithEventID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, eventIDKey{}, id)
}

// EventIDExtractor adds "event_id" to records logged under WithEventID.
func EventIDExtractor() ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		id, ok := ctx.Value(eventIDKey{}).(string)
		if !ok || id == "" {
			return slog.Attr{}, false
		}
		return slog.String("event_id", id), true
	}
}
