package auth

import (
	"context"

	"budgetly/internal/core"
)

type contextKey string

const userContextKey contextKey = "auth_user"

// ContextWithUser adds the signed-in user to the context.
func ContextWithUser(ctx context.Context, u core.User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// UserFromContext returns the signed-in user, if any.
func UserFromContext(ctx context.Context) (core.User, bool) {
	u, ok := ctx.Value(userContextKey).(core.User)
	return u, ok
}

// UserIDFromContext returns the signed-in user's id, or "" when unauthenticated.
func UserIDFromContext(ctx context.Context) string {
	u, _ := UserFromContext(ctx)
	return u.ID
}
