// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Identity is the verified user behind a connection. The engine never
// trusts a userId from a payload; it always comes from here.
type Identity struct {
	UserID      string
	DisplayName string
}

// Verifier resolves bearer tokens to identities. Tokens are HS256-signed
// by the surrounding auth layer with the shared AUTH_TOKEN_SECRET.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// IssueToken mints a bearer token for a user. The engine itself exposes no
// issue endpoint; this exists for the auth layer and for tests.
func (v *Verifier) IssueToken(userID, displayName string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID,
		"name": displayName,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify checks signature and expiry and extracts the identity.
func (v *Verifier) Verify(token string) (Identity, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		// Reject anything but HMAC to close the alg-confusion hole.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrExpiredToken
		}
		return Identity{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Identity{}, ErrInvalidToken
	}
	name, _ := claims["name"].(string)
	if name == "" {
		name = sub
	}

	return Identity{UserID: sub, DisplayName: name}, nil
}
