package auth

import "github.com/golang-jwt/jwt/v5"

// Claims are the only supported JWT claims shape for operator tokens.
// InstanceID scopes the operator to one tenant; admins may leave it empty.
type Claims struct {
	jwt.RegisteredClaims

	OperatorID string `json:"operator_id"`
	InstanceID string `json:"instance_id,omitempty"`
	Role       string `json:"role"`
}

func (c Claims) Identity() Identity {
	return Identity{OperatorID: c.OperatorID, InstanceID: c.InstanceID, Role: c.Role}
}
