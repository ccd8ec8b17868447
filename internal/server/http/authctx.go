package httpserver

import "context"

type ctxKey string

const (
	usernameKey  ctxKey = "todo.username"
	requestIDKey ctxKey = "todo.requestID"
)

// WithUsername stores the authenticated username in context.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey, username)
}

// UsernameFromCtx fetches the authenticated username from context.
func UsernameFromCtx(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(usernameKey).(string)
	return v, ok && v != ""
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromCtx returns the id assigned by the RequestID middleware.
func RequestIDFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}
