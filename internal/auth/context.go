package auth

import "context"

type identityContextKey struct{}
type authorizationContextKey struct{}

// ContextWithIdentity attaches the authenticated identity to the context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the authenticated identity from the context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	if !ok || id.UserID <= 0 {
		return Identity{}, false
	}
	return id, true
}

// ContextWith attaches an organization-scoped authorization context.
func ContextWith(ctx context.Context, ac *AuthorizationContext) context.Context {
	return context.WithValue(ctx, authorizationContextKey{}, ac)
}

// FromContext returns the authorization context built for this request.
func FromContext(ctx context.Context) (*AuthorizationContext, bool) {
	if ctx == nil {
		return nil, false
	}
	ac, ok := ctx.Value(authorizationContextKey{}).(*AuthorizationContext)
	if !ok || ac == nil {
		return nil, false
	}
	return ac, true
}
