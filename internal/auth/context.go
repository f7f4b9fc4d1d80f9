package auth

import (
	"context"
	"errors"
)

// ErrNoIdentity is returned when a request carries no verified operator.
var ErrNoIdentity = errors.New("auth: no operator identity in context")

// Identity is the verified caller of an operator request.
type Identity struct {
	OperatorID string
	// InstanceID is empty for admin tokens that are not tenant scoped.
	InstanceID string
	Role       string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, operatorID, instanceID, role string) context.Context {
	return context.WithValue(ctx, identityKey{}, Identity{OperatorID: operatorID, InstanceID: instanceID, Role: role})
}

// IdentityFrom returns the caller stored by RequireAccessToken.
func IdentityFrom(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || id.OperatorID == "" {
		return Identity{}, ErrNoIdentity
	}
	return id, nil
}
