package utils

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// TokenValidity is the lifetime of a booking completion token.
const TokenValidity = 30 * 24 * time.Hour

const tokenBytes = 32

// GenerateToken returns a URL-safe completion token carrying 256 bits of
// randomness. Uniqueness is not checked against the store.
func GenerateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// TokenExpiration returns the expiry for a token issued or renewed at now.
func TokenExpiration(now time.Time) time.Time {
	return now.Add(TokenValidity)
}

// TokenExpired reports whether expiresAt is at or before now.
func TokenExpired(expiresAt, now time.Time) bool {
	return !now.Before(expiresAt)
}

// CompletionURL is the customer-facing link for finishing a booking.
func CompletionURL(siteURL, token string) string {
	return siteURL + "/booking/complete/" + token
}
