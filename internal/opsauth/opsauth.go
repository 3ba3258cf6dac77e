// Package opsauth implements authentication for the operator console
// (internal/ops): a single bcrypt-hashed operator credential and HS256
// bearer-token issuance/validation. This is not a user/RBAC system — per
// spec.md §1 Non-goals, "HTTP request handling, authentication, RBAC
// middleware" for the CRM/UI stays out of scope. The ops console is an
// internal operator surface this repository adds on top of the core
// pipeline (§9 Design Notes), and it needs some minimal gate of its own.
//
// Grounded on internal/identity's TokenIssuer (Issue/Verify over
// jwt.RegisteredClaims) generalized from RS256 task tokens to a single
// HS256 shared-secret operator token.
package opsauth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Claims are the JWT claims for an operator session token.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// Issuer issues and verifies HS256 operator bearer tokens.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewIssuer creates an Issuer. ttl defaults to 8 hours (one operator
// shift) when zero.
func NewIssuer(secret []byte, issuerName string, ttl time.Duration) *Issuer {
	if ttl == 0 {
		ttl = 8 * time.Hour
	}
	return &Issuer{secret: secret, issuer: issuerName, ttl: ttl}
}

// Issue creates a signed operator token for username.
func (i *Issuer) Issue(username string) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Username: username,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("opsauth: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates an operator token, returning its claims.
func (i *Issuer) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return i.secret, nil
		},
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("opsauth: verify token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("opsauth: invalid token claims")
	}
	return claims, nil
}

// Credential is the single static operator login, stored as a bcrypt hash
// rather than plaintext (§9 Design Notes treats secrets-at-rest hygiene as
// an ambient concern even where the spec doesn't call it out by name).
type Credential struct {
	Username       string
	HashedPassword []byte
}

// HashPassword bcrypt-hashes a plaintext password for storage in config.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// Authenticate reports whether (username, password) matches the credential.
func (c Credential) Authenticate(username, password string) bool {
	if username != c.Username {
		return false
	}
	return bcrypt.CompareHashAndPassword(c.HashedPassword, []byte(password)) == nil
}
