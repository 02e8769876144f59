package models

import "time"

// TokenKind distinguishes the short-lived primary token from the renewal token.
type TokenKind string

const (
	TokenPrimary TokenKind = "primary"
	TokenRenewal TokenKind = "renewal"
)

// SessionClaims is the decoded content of a session token. It is never persisted.
type SessionClaims struct {
	AdminID   int64
	Role      AdminRole
	Email     string
	Kind      TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Session is the pair of tokens returned by a successful login.
type Session struct {
	PrimaryToken     string    `json:"primaryToken"`
	PrimaryExpiresAt time.Time `json:"primaryExpiresAt"`
	RenewalToken     string    `json:"renewalToken"`
	RenewalExpiresAt time.Time `json:"renewalExpiresAt"`
}
