package auth

import "context"

// contextKey is a custom type used for context keys to avoid collisions.
type contextKey string

const sessionIDKey contextKey = "sessionID"

// WithSessionID returns a context carrying the unlocked session id.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// SessionIDFromContext retrieves the session id set by the auth middleware.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok && id != ""
}
