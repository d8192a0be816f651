// internal/session/token.go
//
// Signed session tokens.
// A token is an HS256 JWT whose subject is the session id. It travels as an
// HttpOnly cookie for the browser page and as a bearer token for API clients.
//
// The signing key is derived from the configured secret with HKDF-SHA256 so
// the raw secret is never used as a MAC key directly.

package session

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

const (
	tokenIssuer = "colorgame"
	hkdfInfo    = "colorgame session token v1"
)

// ErrInvalidToken covers malformed, tampered and expired tokens.
var ErrInvalidToken = errors.New("invalid session token")

// Tokens signs and verifies session tokens.
type Tokens struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewTokens derives a signing key from secret. ttl is the token lifetime.
func NewTokens(secret string, ttl time.Duration, now func() time.Time) (*Tokens, error) {
	if secret == "" {
		return nil, errors.New("session: empty secret")
	}
	if now == nil {
		now = time.Now
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("session: derive key: %w", err)
	}
	return &Tokens{key: key, ttl: ttl, now: now}, nil
}

// Sign issues a token for session id and returns it with its expiry.
func (t *Tokens) Sign(id string) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	ss, err := tok.SignedString(t.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("session: sign: %w", err)
	}
	return ss, exp, nil
}

// Parse verifies tok and returns the session id it names.
func (t *Tokens) Parse(tok string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(tok, claims,
		func(*jwt.Token) (interface{}, error) { return t.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// FromRequest extracts a token from "Authorization: Bearer" or the named cookie.
func FromRequest(r *http.Request, cookieName string) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}
