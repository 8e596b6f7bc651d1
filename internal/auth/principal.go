package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/upsc-prep/backend/internal/models"
)

// Principal is the caller resolved from the request's bearer token.
type Principal struct {
	UserID uuid.UUID
	Role   models.Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

type contextKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the authenticated caller, if any.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok && p.UserID != uuid.Nil
}

// UserID returns the caller's id or uuid.Nil for anonymous requests.
func UserID(ctx context.Context) uuid.UUID {
	p, _ := FromContext(ctx)
	return p.UserID
}
