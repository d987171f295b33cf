// internal/token/token.go
//
// Signed credential issue + verify.
//
// Context
// -------
// Credentials are stateless HS256 JWTs carrying {sub, type, iat, exp}.
// Expiry is fixed at issuance and deliberately long; there is no refresh
// protocol and no revocation list, so a status change only bites on the
// next authorization check that re-reads principal state.
//
// Verify fails closed: any signature mismatch, malformed payload, or
// expiry violation yields ErrInvalid, never a partial Identity.  The
// service has no mutable state and is safe for concurrent use.

package token

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// PrincipalType tags who a credential speaks for.
type PrincipalType string

const (
	// User is an owner principal: it may own organizations.
	User PrincipalType = "user"
	// Account is a delegated principal scoped to one organization.
	Account PrincipalType = "account"
	// Guest is the anonymous caller; guards treat it as never privileged.
	Guest PrincipalType = "guest"
)

// DefaultTTL is the fixed credential lifetime when none is configured.
const DefaultTTL = 365 * 24 * time.Hour

// ErrInvalid is the single failure surfaced by Verify.  Callers must not
// leak a more detailed reason to the wire.
var ErrInvalid = errors.New("invalid token")

// Claims is the JWT payload.  Type rides alongside the registered set.
type Claims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// Identity is the decoded result of a successful Verify.
type Identity struct {
	PrincipalID string
	Type        PrincipalType
	Claims      *Claims
}

// Service signs and verifies credentials with a shared HMAC secret.
type Service struct {
	secret []byte
	ttl    time.Duration
	method jwt.SigningMethod
}

// NewService builds a Service.  ttl <= 0 falls back to DefaultTTL.
func NewService(secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
		method: jwt.SigningMethodHS256,
	}
}

// Issue mints a credential for the given principal.  iat is now, exp is
// now + the fixed TTL.
func (s *Service) Issue(principalID string, typ PrincipalType) (string, error) {
	now := time.Now()
	claims := &Claims{
		Type: string(typ),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
}

// Verify decodes and validates a credential string.  Every failure mode
// collapses to ErrInvalid.
func (s *Service) Verify(tok string) (Identity, error) {
	parsed, err := jwt.ParseWithClaims(tok, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != s.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return Identity{}, ErrInvalid
	}
	if claims.Subject == "" && claims.Type != string(Guest) {
		return Identity{}, ErrInvalid
	}

	switch PrincipalType(claims.Type) {
	case User, Account, Guest:
	default:
		// Unknown principal types still verify cryptographically; the
		// guard denies them.  A missing type, however, is malformed.
		if claims.Type == "" {
			return Identity{}, ErrInvalid
		}
	}

	return Identity{
		PrincipalID: claims.Subject,
		Type:        PrincipalType(claims.Type),
		Claims:      claims,
	}, nil
}

// Bearer extracts the token string from an Authorization: Bearer header.
func Bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}
