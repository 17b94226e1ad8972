package shared

import "context"

// Identity is the authenticated caller injected by the upstream gateway.
// The core never reads ambient session state; handlers extract the identity
// and pass actor fields into services as explicit parameters.
type Identity struct {
	UserID string
	Name   string
	Role   string
}

type identityContextKey struct{}

// ContextWithIdentity stores the caller identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the caller identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}
