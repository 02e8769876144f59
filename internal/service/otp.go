package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/GTDGit/catering_api/internal/repository"
	"github.com/GTDGit/catering_api/internal/utils"
)

// OTPDigits is the length of a one-time code.
const OTPDigits = 6

// IssuedCode is a freshly stored one-time code. Code is the only plaintext copy.
type IssuedCode struct {
	AdminID   int64
	Code      string
	ExpiresAt time.Time
	hash      string
}

// OTPEngine issues and verifies one-time codes bound to a single admin.
// Only a keyed hash of the code is persisted.
type OTPEngine struct {
	store  AdminStore
	secret string
	ttl    time.Duration
	now    func() time.Time
}

// NewOTPEngine creates an engine whose codes live for ttl.
func NewOTPEngine(store AdminStore, secret string, ttl time.Duration) *OTPEngine {
	return &OTPEngine{store: store, secret: secret, ttl: ttl, now: time.Now}
}

// SetClock overrides the time source.
func (e *OTPEngine) SetClock(now func() time.Time) {
	e.now = now
}

// TTL returns the validity window of issued codes.
func (e *OTPEngine) TTL() time.Duration {
	return e.ttl
}

func (e *OTPEngine) hash(adminID int64, code string) string {
	return utils.HashSecret(e.secret, "otp:"+strconv.FormatInt(adminID, 10), code)
}

// Issue generates a new code for adminID, replacing any pending code or reset token.
func (e *OTPEngine) Issue(ctx context.Context, adminID int64) (*IssuedCode, error) {
	code, err := utils.GenerateNumericCode(OTPDigits)
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}

	issued := &IssuedCode{
		AdminID:   adminID,
		Code:      code,
		ExpiresAt: e.now().Add(e.ttl),
		hash:      e.hash(adminID, code),
	}
	if err := e.store.SetOTP(ctx, adminID, issued.hash, issued.ExpiresAt); err != nil {
		if errors.Is(err, repository.ErrAdminNotFound) {
			return nil, utils.ErrNotFound
		}
		return nil, fmt.Errorf("store otp: %w", err)
	}
	return issued, nil
}

// Revoke clears issued if it is still the pending code for its admin.
func (e *OTPEngine) Revoke(ctx context.Context, issued *IssuedCode) error {
	if _, err := e.store.ClearOTPIfMatch(ctx, issued.AdminID, issued.hash); err != nil {
		return fmt.Errorf("revoke otp: %w", err)
	}
	return nil
}

// Verify consumes the pending code of adminID if it equals code and has not
// expired, installing grant in the same write. A code verifies at most once.
// It returns utils.ErrExpired when no live code exists and utils.ErrMismatch
// when a live code exists but differs; a mismatch leaves the code pending.
func (e *OTPEngine) Verify(ctx context.Context, adminID int64, code string, grant *ResetGrant) error {
	now := e.now()

	if len(code) == OTPDigits && isDigits(code) {
		ok, err := e.store.VerifyOTPAndIssueReset(ctx, adminID, e.hash(adminID, code), now, grant.hash, grant.ExpiresAt)
		if err != nil {
			return fmt.Errorf("verify otp: %w", err)
		}
		if ok {
			return nil
		}
	}

	user, err := e.store.GetByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, repository.ErrAdminNotFound) {
			return utils.ErrExpired
		}
		return fmt.Errorf("load admin: %w", err)
	}
	if user.OTPHash == nil || user.OTPExpiresAt == nil {
		return utils.ErrExpired
	}
	if user.OTPExpiresAt.Before(now) {
		if err := e.store.ClearExpiredOTP(ctx, adminID, now); err != nil {
			return fmt.Errorf("clear expired otp: %w", err)
		}
		return utils.ErrExpired
	}
	return utils.ErrMismatch
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
