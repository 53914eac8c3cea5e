package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueAndParseToken(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, Claims{
		Sub:     "user-1",
		Name:    "Avery",
		Email:   "avery@example.com",
		Role:    "admin",
		OrgID:   "org-1",
		OrgName: "Acme",
		JTI:     "jti-1",
		Exp:     time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	claims, err := ParseToken(secret, issued)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Sub != "user-1" || claims.Role != "admin" || claims.OrgID != "org-1" || claims.OrgName != "Acme" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.IssuedAt == 0 {
		t.Fatalf("expected iat to be set")
	}
	if segments := strings.Count(issued, "."); segments != 2 {
		t.Fatalf("expected a three-part token, got %q", issued)
	}
}

func TestParseTokenAtUsesGivenClock(t *testing.T) {
	secret := []byte("secret")
	exp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issued, err := IssueToken(secret, Claims{Sub: "user-1", Role: "user", JTI: "j", Exp: exp.Unix()})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if _, err := ParseTokenAt(secret, issued, exp.Add(-time.Second)); err != nil {
		t.Fatalf("expected token to be valid a second before expiry, got %v", err)
	}
	if _, err := ParseTokenAt(secret, issued, exp); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken at expiry, got %v", err)
	}
}

func TestParseTokenRejectsOtherAlgorithms(t *testing.T) {
	secret := []byte("secret")
	claims := jwt.MapClaims{"sub": "user-1", "role": "user", "jti": "j", "exp": time.Now().Add(time.Hour).Unix()}

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := ParseToken(secret, unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for alg none, got %v", err)
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign HS512: %v", err)
	}
	if _, err := ParseToken(secret, hs512); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for HS512, got %v", err)
	}
}

func TestParseTokenRequiresSubjectAndID(t *testing.T) {
	secret := []byte("secret")
	exp := time.Now().Add(time.Hour).Unix()
	for name, claims := range map[string]jwt.MapClaims{
		"no sub": {"jti": "j", "exp": exp},
		"no jti": {"sub": "user-1", "exp": exp},
		"no exp": {"sub": "user-1", "jti": "j"},
	} {
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
		if err != nil {
			t.Fatalf("%s: sign: %v", name, err)
		}
		if _, err := ParseToken(secret, signed); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, Claims{
		Sub:  "user-1",
		Name: "Avery",
		Role: "user",
		JTI:  "jti-1",
		Exp:  time.Now().Add(-time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	_, err = ParseToken(secret, issued)
	if !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, Claims{Sub: "user-1", Name: "Avery", Role: "user", JTI: "j", Exp: time.Now().Add(time.Hour).Unix()})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	if _, err := ParseToken([]byte("other"), issued); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
	if _, err := ParseToken(secret, strings.Replace(issued, ".", ".x", 1)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for altered signature, got %v", err)
	}
	if _, err := ParseToken(secret, "no-dot"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for malformed token, got %v", err)
	}
}

func TestHashTokenIsStable(t *testing.T) {
	if HashToken("abc") != HashToken("abc") {
		t.Fatal("expected deterministic hash")
	}
	if len(HashToken("abc")) != 64 {
		t.Fatalf("expected hex sha256, got %q", HashToken("abc"))
	}
}
