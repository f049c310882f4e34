// Package auth holds everything between "who is this browser?" and a
// model.Session: the signed session cookie, the OIDC identity provider and
// the HTTP middleware that puts the session into the request context.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is stamped into every cookie token and checked on the way back in.
const Issuer = "recipe-box"

// TokenService signs and verifies the value of the session cookie.
//
// The token carries nothing but a session ID (as "sub") and an expiry. The
// session itself lives server-side, so logging out really ends it: a copied
// cookie points at a deleted row and is worthless.
//
// WHY SIGN A RANDOM ID AT ALL?
// Without the signature every request with a made-up ID would cost a store
// lookup. With it, junk is rejected before we touch SQLite or Redis.
type TokenService struct {
	secret []byte
}

// NewTokenService rejects secrets shorter than 16 bytes.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// Generate signs a token for sessionID valid for ttl.
func (s *TokenService) Generate(sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()

	c := jwt.RegisteredClaims{
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    Issuer,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate checks signature, algorithm, issuer and expiry and returns the
// session ID.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(token *jwt.Token) (any, error) {
			return s.secret, nil
		},
		// WithValidMethods blocks the "alg: none" trick and RSA/HMAC confusion.
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}
	return c.Subject, nil
}
