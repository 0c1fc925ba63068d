// Package auth mints and verifies the bearer credentials that identify
// principals. Tokens are stateless HS256 JWTs carrying subject and role;
// there is no server-side session or revocation store, so validity is
// purely a function of signature and expiry.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskvault/internal/apierr"
	"taskvault/internal/models"
)

// Claims is the JWT payload: the registered subject/expiry plus the
// principal's role.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies credentials with a shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer returns an Issuer. An empty secret is accepted here so the
// zero-config case surfaces at issue/verify time as a 500-class error;
// main treats it as fatal at startup.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// Issue signs a credential for p valid for the configured lifetime.
func (i *Issuer) Issue(p models.Principal) (string, error) {
	if len(i.secret) == 0 {
		return "", apierr.Internal(errors.New("JWT secret is not configured"))
	}
	now := time.Now()
	claims := Claims{
		Role: p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify checks signature and expiry and returns the principal encoded
// in the credential. Any failure is Unauthenticated; verification is
// pure and consults no store.
func (i *Issuer) Verify(tokenStr string) (models.Principal, error) {
	if len(i.secret) == 0 {
		return models.Principal{}, apierr.Internal(errors.New("JWT secret is not configured"))
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return models.Principal{}, apierr.Unauthenticated("Invalid or expired token")
	}
	role := claims.Role
	if role == "" {
		role = models.RoleUser
	}
	return models.Principal{ID: claims.Subject, Role: role}, nil
}
