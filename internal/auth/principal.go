package auth

import (
	"context"

	"github.com/hongminglow/kinder-admin/internal/models"
	"github.com/hongminglow/kinder-admin/internal/permission"
	"github.com/hongminglow/kinder-admin/internal/session"
)

// Principal is the explicit session context passed to every operation.
// A nil User means an anonymous visitor.
type Principal struct {
	Session *session.Session
	User    *models.User
}

func Anonymous() Principal { return Principal{} }

func (p Principal) Authenticated() bool { return p.User != nil }

// Role returns the user's role, or nil for anonymous principals.
func (p Principal) Role() *models.Role {
	if p.User == nil {
		return nil
	}
	return &p.User.Role
}

func (p Principal) Can(perm models.Permission) bool {
	return permission.Has(p.Role(), perm)
}

type principalKey struct{}

// WithPrincipal stores p on the request context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by WithPrincipal, or an anonymous one.
func PrincipalFrom(ctx context.Context) Principal {
	if p, ok := ctx.Value(principalKey{}).(Principal); ok {
		return p
	}
	return Anonymous()
}
