// Package auth is the authentication boundary: password hashing, JWT
// issue/verify, and the middleware that turns a bearer token into the
// per-request rbac.Identity. The core treats the resulting identity as
// trusted input and never re-verifies it.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nexusbtp/nexus-backend/internal/rbac"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload of both access and refresh tokens. Access tokens
// carry the full identity; refresh tokens carry only the user id.
type Claims struct {
	UserID            uint   `json:"user_id"`
	Role              string `json:"role,omitempty"`
	EmployeID         uint   `json:"employe_id,omitempty"`
	ChantiersAssignes []uint `json:"chantiers_assignes,omitempty"`
	TokenType         string `json:"type"`
	jwt.RegisteredClaims
}

// Identity converts the claims to the request principal.
func (c *Claims) Identity() rbac.Identity {
	return rbac.Identity{
		UserID:            c.UserID,
		Role:              rbac.Role(c.Role),
		EmployeID:         c.EmployeID,
		ChantiersAssignes: c.ChantiersAssignes,
	}
}

// NewAccessToken issues a signed access token for the identity.
func NewAccessToken(secret string, ident rbac.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:            ident.UserID,
		Role:              string(ident.Role),
		EmployeID:         ident.EmployeID,
		ChantiersAssignes: ident.ChantiersAssignes,
		TokenType:         TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   fmt.Sprint(ident.UserID),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// NewRefreshToken issues a long-lived refresh token carrying only the user id.
func NewRefreshToken(secret string, userID uint, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:    userID,
		TokenType: TokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   fmt.Sprint(userID),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies signature and expiry and returns the claims.
func ParseToken(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrInvalidToken, t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
