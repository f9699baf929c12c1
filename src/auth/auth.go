// Package auth verifies the signed tokens clients present when joining a
// room. Verification is a pure HMAC check against the pre-shared secret;
// no network calls are made.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/boardsync/relay/src/types"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// Verifier validates HS256-signed tokens against a shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for the given secret. The caller is
// responsible for refusing to start with an empty secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify checks the token's signature and expiry and extracts the subject
// identity. It fails closed: any parse error, signature mismatch, wrong
// algorithm or expired claim yields ErrInvalidToken.
func (v *Verifier) Verify(tokenString string) (*types.Identity, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, ErrInvalidToken
	}

	identity := &types.Identity{Subject: subject}
	if email, ok := claims["email"].(string); ok {
		identity.Email = email
	}
	return identity, nil
}
