package server

import (
	"context"

	"github.com/listener-ai/listener/internal/identity"
)

// contextWithUser stashes the authenticated user in ctx.
func contextWithUser(ctx context.Context, u identity.User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// userFromContext retrieves the authenticated user placed by requireAuth.
func userFromContext(ctx context.Context) (identity.User, bool) {
	u, ok := ctx.Value(userContextKey).(identity.User)
	return u, ok
}
