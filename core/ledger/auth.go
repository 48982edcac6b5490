package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer = "iyacare-vault"
	tokenTTL    = time.Minute
)

// signWriteToken issues a short-lived HS256 bearer token authorizing writes
// to contract.
func signWriteToken(secret, contract string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   contract,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseWriteToken validates a write token against secret and returns the
// contract it was issued for. Ledger nodes and test doubles use it to check
// the Authorization header.
func ParseWriteToken(token, secret string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return "", fmt.Errorf("ledger: write token: %w", err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", errors.New("ledger: write token: missing subject")
	}
	return claims.Subject, nil
}
