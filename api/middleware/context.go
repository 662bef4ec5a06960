package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/superbazaar/storefront-api/internal/cart"
	"github.com/superbazaar/storefront-api/pkg/enums"
)

type contextKey string

const ctxIdentity contextKey = "identity"

// Identity is who the request is acting as: a signed-in user (UserID set)
// or an anonymous shopper (SessionKey set). Both may be empty on public
// endpoints.
type Identity struct {
	UserID     *uuid.UUID
	SessionKey string
	Role       enums.Role
}

// IsUser reports whether the identity belongs to a signed-in account.
func (i Identity) IsUser() bool {
	return i.UserID != nil
}

// CartOwner converts the identity into a cart owner reference.
func (i Identity) CartOwner() cart.Owner {
	if i.UserID != nil {
		return cart.Owner{UserID: i.UserID}
	}
	if i.SessionKey != "" {
		key := i.SessionKey
		return cart.Owner{SessionKey: &key}
	}
	return cart.Owner{}
}

// WithIdentity injects the request identity into the context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, identity)
}

// IdentityFromContext returns the request identity, zero when unset.
func IdentityFromContext(ctx context.Context) Identity {
	if ctx == nil {
		return Identity{}
	}
	if v, ok := ctx.Value(ctxIdentity).(Identity); ok {
		return v
	}
	return Identity{}
}

// UserIDFromContext returns the signed-in user id as a string, empty for
// anonymous requests.
func UserIDFromContext(ctx context.Context) string {
	identity := IdentityFromContext(ctx)
	if identity.UserID == nil {
		return ""
	}
	return identity.UserID.String()
}

// RoleFromContext returns the actor role, empty for anonymous requests.
func RoleFromContext(ctx context.Context) enums.Role {
	return IdentityFromContext(ctx).Role
}
