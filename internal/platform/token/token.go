// Package token validates the HS256 bearer tokens the external
// authenticator issues. Only the role and subject claims matter to the
// core.
package token

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"certtrust/internal/rbac"
)

// Validator parses and verifies actor tokens.
type Validator struct {
	signingKey []byte
}

func NewValidator(signingKey string) *Validator {
	return &Validator{signingKey: []byte(signingKey)}
}

type actorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ValidateToken verifies the signature and expiry, then maps the role claim
// onto a known certification role.
func (v *Validator) ValidateToken(tokenString string) (rbac.Actor, error) {
	var claims actorClaims
	tok, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return rbac.Actor{}, fmt.Errorf("parse token: %w", err)
	}
	if !tok.Valid {
		return rbac.Actor{}, fmt.Errorf("invalid token")
	}

	role, err := rbac.ParseRole(claims.Role)
	if err != nil {
		return rbac.Actor{}, fmt.Errorf("token role: %w", err)
	}
	return rbac.Actor{Role: role, Subject: claims.Subject}, nil
}
