package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/catering_api/internal/cache"
	"github.com/GTDGit/catering_api/internal/metrics"
	"github.com/GTDGit/catering_api/internal/models"
	"github.com/GTDGit/catering_api/internal/repository"
	"github.com/GTDGit/catering_api/internal/utils"
)

const (
	resetMailSubject = "Your password reset code"
	revokeTimeout    = 5 * time.Second
)

// RecoveryService drives password recovery for one admin at a time:
// request (code mailed) -> verify code (reset token returned) -> reset password.
// The recovery state lives in the admin record; a new request overwrites any
// pending code or token.
type RecoveryService struct {
	store       AdminStore
	otp         *OTPEngine
	resets      *ResetTokenIssuer
	mailer      Mailer
	lock        RecoveryLocker
	mailTimeout time.Duration
	metrics     *metrics.Metrics
}

// NewRecoveryService wires the recovery flow. lock may be nil when a single
// process serves all requests.
func NewRecoveryService(
	store AdminStore,
	otp *OTPEngine,
	resets *ResetTokenIssuer,
	mailer Mailer,
	lock RecoveryLocker,
	mailTimeout time.Duration,
) *RecoveryService {
	if lock == nil {
		lock = noopLocker{}
	}
	return &RecoveryService{
		store:       store,
		otp:         otp,
		resets:      resets,
		mailer:      mailer,
		lock:        lock,
		mailTimeout: mailTimeout,
	}
}

// SetMetrics attaches the metrics recorder.
func (s *RecoveryService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// RequestReset issues a one-time code for the admin owning email and mails it.
// Unknown and inactive addresses succeed silently so callers cannot probe for
// accounts. If delivery fails the code is revoked and utils.ErrDeliveryFailed
// is returned.
func (s *RecoveryService) RequestReset(ctx context.Context, email string) error {
	email = models.NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", utils.ErrValidation)
	}

	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAdminNotFound) {
			log.Info().Str("email", email).Msg("Password reset requested for unknown email")
			s.metrics.RecordRecovery("request", "unknown")
			return nil
		}
		return fmt.Errorf("load admin: %w", err)
	}
	if !user.IsActive {
		log.Warn().Int64("admin_id", user.ID).Msg("Password reset requested for inactive admin")
		s.metrics.RecordRecovery("request", "inactive")
		return nil
	}

	// Hold the per-admin lock across issue+send so the last mail out always
	// carries the live code.
	lockCtx, cancelLock := context.WithTimeout(ctx, s.mailTimeout)
	release, err := s.lock.Acquire(lockCtx, user.ID)
	cancelLock()
	if err != nil {
		if errors.Is(err, cache.ErrLockTimeout) {
			s.metrics.RecordRecovery("request", "busy")
			return fmt.Errorf("%w: another reset request is in progress", utils.ErrDeliveryFailed)
		}
		return err
	}
	defer release()

	issued, err := s.otp.Issue(ctx, user.ID)
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.mailTimeout)
	messageID, err := s.mailer.Send(sendCtx, user.Email, resetMailSubject, s.resetMailBody(user, issued))
	cancel()
	if err != nil {
		log.Error().Err(err).Int64("admin_id", user.ID).Msg("Failed to deliver password reset code")
		s.metrics.RecordMailDelivery("failed")
		s.metrics.RecordRecovery("request", "delivery_failed")

		revokeCtx, cancelRevoke := context.WithTimeout(context.WithoutCancel(ctx), revokeTimeout)
		defer cancelRevoke()
		if rerr := s.otp.Revoke(revokeCtx, issued); rerr != nil {
			log.Error().Err(rerr).Int64("admin_id", user.ID).Msg("Failed to revoke undelivered reset code")
		}
		return utils.ErrDeliveryFailed
	}

	log.Info().
		Int64("admin_id", user.ID).
		Str("message_id", messageID).
		Time("expires_at", issued.ExpiresAt).
		Msg("Password reset code sent")
	s.metrics.RecordMailDelivery("sent")
	s.metrics.RecordRecovery("request", "sent")
	return nil
}

// VerifyCode checks the code mailed to email and, on success, returns a reset
// token to carry to ResetPassword. An address with no pending code (including
// unknown or inactive ones) fails with utils.ErrExpired.
func (s *RecoveryService) VerifyCode(ctx context.Context, email, code string) (*ResetGrant, error) {
	email = models.NormalizeEmail(email)

	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAdminNotFound) {
			s.metrics.RecordRecovery("verify", "expired")
			return nil, utils.ErrExpired
		}
		return nil, fmt.Errorf("load admin: %w", err)
	}
	if !user.IsActive {
		s.metrics.RecordRecovery("verify", "expired")
		return nil, utils.ErrExpired
	}

	grant, err := s.resets.Mint()
	if err != nil {
		return nil, err
	}

	if err := s.otp.Verify(ctx, user.ID, code, grant); err != nil {
		switch {
		case errors.Is(err, utils.ErrMismatch):
			log.Info().Int64("admin_id", user.ID).Msg("Reset code mismatch")
			s.metrics.RecordRecovery("verify", "mismatch")
		case errors.Is(err, utils.ErrExpired):
			log.Info().Int64("admin_id", user.ID).Msg("Reset code expired or absent")
			s.metrics.RecordRecovery("verify", "expired")
		}
		return nil, err
	}

	log.Info().Int64("admin_id", user.ID).Time("expires_at", grant.ExpiresAt).Msg("Reset code verified")
	s.metrics.RecordRecovery("verify", "ok")
	return grant, nil
}

// ResetPassword exchanges a reset token for a new password. An admin
// deactivated after verifying the code gets utils.ErrInactive. Existing
// sessions are not revoked.
func (s *RecoveryService) ResetPassword(ctx context.Context, token, newPassword string) error {
	adminID, err := s.resets.Consume(ctx, token, newPassword)
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrValidation):
			s.metrics.RecordRecovery("reset", "validation")
		case errors.Is(err, utils.ErrNotFound):
			s.metrics.RecordRecovery("reset", "not_found")
		case errors.Is(err, utils.ErrInactive):
			s.metrics.RecordRecovery("reset", "inactive")
		case errors.Is(err, utils.ErrExpired):
			s.metrics.RecordRecovery("reset", "expired")
		}
		return err
	}

	log.Info().Int64("admin_id", adminID).Msg("Password reset completed")
	s.metrics.RecordRecovery("reset", "ok")
	return nil
}

func (s *RecoveryService) resetMailBody(user *models.AdminUser, issued *IssuedCode) string {
	name := user.Name
	if name == "" {
		name = user.Username
	}
	minutes := int(s.otp.TTL().Round(time.Minute) / time.Minute)
	return fmt.Sprintf(
		"Hello %s,\n\n"+
			"Use the code below to reset your admin password:\n\n"+
			"    %s\n\n"+
			"The code expires in %d minutes. If you did not ask for a reset, ignore this email.\n",
		name, issued.Code, minutes,
	)
}
