package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GTDGit/catering_api/internal/repository"
	"github.com/GTDGit/catering_api/internal/utils"
)

// ResetGrant is a minted reset token. Token is returned to the client once;
// only its keyed hash reaches the store.
type ResetGrant struct {
	Token     string
	ExpiresAt time.Time
	hash      string
}

// ResetTokenIssuer mints single-use reset tokens and exchanges them for a new password.
type ResetTokenIssuer struct {
	store  AdminStore
	hasher PasswordHasher
	policy PasswordPolicy
	secret string
	ttl    time.Duration
	now    func() time.Time
}

// NewResetTokenIssuer creates an issuer whose tokens live for ttl.
func NewResetTokenIssuer(store AdminStore, hasher PasswordHasher, policy PasswordPolicy, secret string, ttl time.Duration) *ResetTokenIssuer {
	return &ResetTokenIssuer{
		store:  store,
		hasher: hasher,
		policy: policy,
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

// SetClock overrides the time source.
func (r *ResetTokenIssuer) SetClock(now func() time.Time) {
	r.now = now
}

func (r *ResetTokenIssuer) hash(token string) string {
	return utils.HashSecret(r.secret, "reset", token)
}

// Mint generates a token that is not yet stored. OTPEngine.Verify persists it
// together with consuming the code.
func (r *ResetTokenIssuer) Mint() (*ResetGrant, error) {
	token, err := utils.GenerateResetToken()
	if err != nil {
		return nil, fmt.Errorf("generate reset token: %w", err)
	}
	return &ResetGrant{
		Token:     token,
		ExpiresAt: r.now().Add(r.ttl),
		hash:      r.hash(token),
	}, nil
}

// Consume exchanges token for newPassword and returns the admin id.
// Errors: utils.ErrValidation (policy), utils.ErrNotFound (unknown or used token),
// utils.ErrInactive (admin deactivated after verifying), utils.ErrExpired (token
// past its window).
func (r *ResetTokenIssuer) Consume(ctx context.Context, token, newPassword string) (int64, error) {
	if err := r.policy.Check(newPassword); err != nil {
		return 0, err
	}
	if token == "" {
		return 0, utils.ErrNotFound
	}

	passwordHash, err := r.hasher.Hash(newPassword)
	if err != nil {
		return 0, err
	}

	now := r.now()
	tokenHash := r.hash(token)
	id, ok, err := r.store.ConsumeResetToken(ctx, tokenHash, now, passwordHash)
	if err != nil {
		return 0, fmt.Errorf("consume reset token: %w", err)
	}
	if ok {
		return id, nil
	}

	user, err := r.store.GetByResetTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, repository.ErrAdminNotFound) {
			return 0, utils.ErrNotFound
		}
		return 0, fmt.Errorf("load reset token: %w", err)
	}
	if !user.IsActive {
		return 0, utils.ErrInactive
	}
	if user.ResetTokenExpiresAt != nil && user.ResetTokenExpiresAt.Before(now) {
		if err := r.store.ClearExpiredResetToken(ctx, tokenHash, now); err != nil {
			return 0, fmt.Errorf("clear expired reset token: %w", err)
		}
		return 0, utils.ErrExpired
	}
	return 0, utils.ErrNotFound
}
