package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// Ctx retrieves the logger from the context.
// If no logger is found, the global logger is returned.
func Ctx(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return L()
}

// WithSession derives a child logger for a realtime session and stores it in
// the context. Empty values are omitted.
func WithSession(ctx context.Context, sessionID, userID string) context.Context {
	c := Ctx(ctx).With()
	if sessionID != "" {
		c = c.Str(FieldSessionID, sessionID)
	}
	if userID != "" {
		c = c.Str(FieldUserID, userID)
	}
	return WithLogger(ctx, c.Logger())
}
