package auth

import (
	"context"
	"slices"
)

// SecurityContext is the identity established for a single request.
type SecurityContext struct {
	// PrincipalID references principals.id.
	PrincipalID string
	// Identifier is the login identifier (email), equal to the token subject.
	Identifier string
	// Name is the display name of the principal.
	Name string
	// Roles is the principal's role set at the time of authentication.
	Roles []Role
	// CredentialID references the ledger record of the presented token.
	CredentialID string
}

// HasRole reports whether the context carries role r.
func (s SecurityContext) HasRole(r Role) bool {
	return slices.Contains(s.Roles, r)
}

// Authorities returns the roles in wire form.
func (s SecurityContext) Authorities() []string {
	return Authorities(s.Roles)
}

type securityContextKey struct{}

// WithSecurityContext stores the security context on ctx.
func WithSecurityContext(ctx context.Context, sc SecurityContext) context.Context {
	sc.Roles = slices.Clone(sc.Roles)
	return context.WithValue(ctx, securityContextKey{}, sc)
}

// FromContext returns the security context stored on ctx, if any.
func FromContext(ctx context.Context) (SecurityContext, bool) {
	sc, ok := ctx.Value(securityContextKey{}).(SecurityContext)
	return sc, ok
}

