package service

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/GTDGit/catering_api/internal/config"
	"github.com/GTDGit/catering_api/internal/utils"
)

// bcrypt ignores input beyond 72 bytes, so longer passwords are refused.
const maxPasswordBytes = 72

// PasswordHasher hashes and verifies admin passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// BcryptHasher is a PasswordHasher with a fixed bcrypt cost.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher; costs below config.MinBcryptCost are raised to it.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < config.MinBcryptCost {
		cost = config.MinBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns the bcrypt hash of plaintext.
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches hash. Any library error is a non-match.
func (h *BcryptHasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// PasswordPolicy is the server-side password rule: a minimum length only.
type PasswordPolicy struct {
	MinLength int
}

// Check returns utils.ErrValidation when password breaks the policy.
func (p PasswordPolicy) Check(password string) error {
	if len([]rune(password)) < p.MinLength {
		return fmt.Errorf("%w: password must be at least %d characters", utils.ErrValidation, p.MinLength)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("%w: password must be at most %d bytes", utils.ErrValidation, maxPasswordBytes)
	}
	return nil
}
