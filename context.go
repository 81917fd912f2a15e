package goSession

import (
	"context"

	"github.com/MrEthical07/goSession/authapi"
)

// WithRequestID attaches the X-Request-ID used for calls made with ctx.
// Without it every call gets a fresh UUID. The retry after a refresh reuses
// the ID of the original attempt.
func WithRequestID(ctx context.Context, id string) context.Context {
	return authapi.WithRequestID(ctx, id)
}

func requestIDFromContext(ctx context.Context) string {
	return authapi.RequestIDFrom(ctx)
}

func requestIDIfSet(ctx context.Context) string {
	id, _ := authapi.RequestID(ctx)
	return id
}
