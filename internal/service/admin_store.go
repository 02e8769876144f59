package service

import (
	"context"
	"time"

	"github.com/GTDGit/catering_api/internal/models"
)

// AdminStore is the credential store the auth services depend on.
// Implemented by repository.AdminUserRepository.
type AdminStore interface {
	GetByID(ctx context.Context, id int64) (*models.AdminUser, error)
	GetByEmail(ctx context.Context, email string) (*models.AdminUser, error)
	GetByResetTokenHash(ctx context.Context, tokenHash string) (*models.AdminUser, error)
	List(ctx context.Context) ([]models.AdminUser, error)
	Create(ctx context.Context, user *models.AdminUser) error
	SetActive(ctx context.Context, id int64, active bool) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error

	SetOTP(ctx context.Context, id int64, otpHash string, expiresAt time.Time) error
	ClearOTPIfMatch(ctx context.Context, id int64, otpHash string) (bool, error)
	VerifyOTPAndIssueReset(ctx context.Context, id int64, otpHash string, now time.Time, resetHash string, resetExpiresAt time.Time) (bool, error)
	ClearExpiredOTP(ctx context.Context, id int64, now time.Time) error
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (int64, bool, error)
	ClearExpiredResetToken(ctx context.Context, tokenHash string, now time.Time) error
}

// Mailer delivers transactional email. Implemented by mailer.SESMailer.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) (messageID string, err error)
}

// RecoveryLocker serializes recovery requests for one admin.
// Implemented by cache.RecoveryLock.
type RecoveryLocker interface {
	Acquire(ctx context.Context, adminID int64) (release func(), err error)
}

type noopLocker struct{}

func (noopLocker) Acquire(context.Context, int64) (func(), error) { return func() {}, nil }
