package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// GenerateSignature creates a hex HMAC-SHA256 of payload.
func GenerateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// HashSecret derives the at-rest form of a one-time secret (codes, reset tokens).
// The scope keeps equal secrets issued to different admins apart.
func HashSecret(secret, scope, value string) string {
	return GenerateSignature([]byte(scope+":"+value), secret)
}
