package auth

import (
	"context"

	"github.com/agencyhq/agencyapi/internal/clerk"
)

type currentUserContextKey struct{}

// SetCurrentUserContext stores the resolved Clerk user on the context.
// The gatekeeper middleware resolves the user once per request and stores it
// here; downstream permission checks and handlers read it back instead of
// re-verifying the session.
func SetCurrentUserContext(ctx context.Context, user *clerk.UserRecord) context.Context {
	return context.WithValue(ctx, currentUserContextKey{}, user)
}

// CurrentUserFromContext retrieves the resolved Clerk user from the context.
// The second return is false when no resolution has happened in this request.
func CurrentUserFromContext(ctx context.Context) (*clerk.UserRecord, bool) {
	user, ok := ctx.Value(currentUserContextKey{}).(*clerk.UserRecord)
	return user, ok
}

type localUserContextKey struct{}

// SetLocalUserIDContext stores the local user row ID on the context.
func SetLocalUserIDContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, localUserContextKey{}, id)
}

// LocalUserIDFromContext retrieves the local user row ID from the context.
func LocalUserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(localUserContextKey{}).(string)
	return id, ok
}
