package auth

import "context"

type contextKey struct{}

var userIDKey contextKey

// ContextWithUserID attaches the authenticated user's id to the context.
// The session guard is the only writer; handlers are readers.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated user id, or "" and false when
// the request never passed the session guard.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}
