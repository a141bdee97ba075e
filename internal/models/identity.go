package models

import "context"

// IdentityType distinguishes end users from administrators.
type IdentityType string

const (
	IdentityUser  IdentityType = "user"
	IdentityAdmin IdentityType = "admin"
)

// Identity is the authenticated caller resolved from a bearer token.
// Admin tokens carry no user id.
type Identity struct {
	Type     IdentityType `json:"type"`
	UserID   int64        `json:"userId,omitempty"`
	Email    string       `json:"email"`
	Username string       `json:"username"`
}

// IsAdmin reports whether the caller is an administrator.
func (i Identity) IsAdmin() bool {
	return i.Type == IdentityAdmin
}

type identityKey struct{}

// ContextWithIdentity returns ctx carrying id.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the caller stored by ContextWithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
