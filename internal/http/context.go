package http

import (
	"context"

	"github.com/example/calendar-manager/internal/application"
)

type contextKey string

const identityContextKey contextKey = "identity"

// ContextWithIdentity returns a derived context carrying the authenticated caller.
func ContextWithIdentity(ctx context.Context, identity application.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext extracts the caller stored by the AuthGate.
func IdentityFromContext(ctx context.Context) (application.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(application.Identity)
	return identity, ok
}
