package auth

import "context"

// AccountIdentity is the external auth service's notion of "who is logged
// in": the opaque account id it issued plus the account email. It carries no
// application data — roles and tenant access are resolved separately.
type AccountIdentity struct {
	ID    string
	Email string
}

type contextKey struct{}

// WithIdentity stores an AccountIdentity in the context.
func WithIdentity(ctx context.Context, id *AccountIdentity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IdentityFromContext retrieves the AccountIdentity from the context.
// Returns nil if no identity is set.
func IdentityFromContext(ctx context.Context) *AccountIdentity {
	id, _ := ctx.Value(contextKey{}).(*AccountIdentity)
	return id
}
