// internal/token/token_test.go
//
// Round-trip and fail-closed behavior of the credential service.
//
// Run: go test ./internal/token -v

package token

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	tok, err := svc.Issue("user-42", User)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	id, err := svc.Verify(tok)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if id.PrincipalID != "user-42" || id.Type != User {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if id.Claims.ExpiresAt.Time.Before(time.Now()) {
		t.Fatal("expiry already in the past")
	}
}

func TestVerifyExpired(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	// Hand-craft a token that expired an hour ago.
	now := time.Now().Add(-2 * time.Hour)
	claims := &Claims{
		Type: string(Account),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acct-1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := svc.Verify(tok); err != ErrInvalid {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	minting := NewService("secret-a", time.Hour)
	checking := NewService("secret-b", time.Hour)

	tok, err := minting.Issue("user-1", User)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := checking.Verify(tok); err != ErrInvalid {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	svc := NewService("test-secret", time.Hour)
	for _, tok := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := svc.Verify(tok); err != ErrInvalid {
			t.Fatalf("Verify(%q): expected ErrInvalid, got %v", tok, err)
		}
	}
}

func TestVerifyMissingType(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := svc.Verify(tok); err != ErrInvalid {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestBearer(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer abc", "abc", true},
		{"Basic dXNlcjpwYXNz", "", false},
		{"", "", false},
		{"Bearer ", "", false},
	}
	for _, c := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if c.header != "" {
			r.Header.Set("Authorization", c.header)
		}
		got, ok := Bearer(r)
		if ok != c.ok || got != c.want {
			t.Fatalf("Bearer(%q) = %q, %v; want %q, %v", c.header, got, ok, c.want, c.ok)
		}
	}
}
