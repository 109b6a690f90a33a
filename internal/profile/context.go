package profile

import "context"

type contextKey struct{}

// WithProfile returns a context carrying the resolved profile.
func WithProfile(ctx context.Context, p *Profile) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the profile set by WithProfile, or nil.
func FromContext(ctx context.Context) *Profile {
	p, _ := ctx.Value(contextKey{}).(*Profile)
	return p
}
