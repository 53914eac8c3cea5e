// Package auth issues and verifies HS256 access tokens and TOTP codes.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims identify the user and the tenant the token was issued for.
type Claims struct {
	Sub      string
	Name     string
	Email    string
	Role     string
	OrgID    string
	OrgName  string
	JTI      string
	IssuedAt int64
	Exp      int64
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

// tokenClaims is the wire form: registered claims plus the tenant fields.
type tokenClaims struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Role    string `json:"role"`
	OrgID   string `json:"orgId,omitempty"`
	OrgName string `json:"orgName,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs claims as an HS256 JWT. IssuedAt defaults to now.
func IssueToken(secret []byte, claims Claims) (string, error) {
	issuedAt := time.Now()
	if claims.IssuedAt != 0 {
		issuedAt = time.Unix(claims.IssuedAt, 0)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Name:    claims.Name,
		Email:   claims.Email,
		Role:    claims.Role,
		OrgID:   claims.OrgID,
		OrgName: claims.OrgName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Sub,
			ID:        claims.JTI,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(time.Unix(claims.Exp, 0)),
		},
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func ParseToken(secret []byte, token string) (Claims, error) {
	return ParseTokenAt(secret, token, time.Now())
}

// ParseTokenAt verifies the signature, accepting HS256 only, then checks
// expiry against now. Any other failure is ErrInvalidToken.
func ParseTokenAt(secret []byte, token string, now time.Time) (Claims, error) {
	var parsed tokenClaims
	_, err := jwt.ParseWithClaims(token, &parsed,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, ErrInvalidToken
	}
	if parsed.Subject == "" || parsed.ID == "" {
		return Claims{}, ErrInvalidToken
	}

	claims := Claims{
		Sub:     parsed.Subject,
		Name:    parsed.Name,
		Email:   parsed.Email,
		Role:    parsed.Role,
		OrgID:   parsed.OrgID,
		OrgName: parsed.OrgName,
		JTI:     parsed.ID,
		Exp:     parsed.ExpiresAt.Unix(),
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Unix()
	}
	return claims, nil
}

// HashToken is how refresh tokens are stored: hex sha256, never the raw value.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
