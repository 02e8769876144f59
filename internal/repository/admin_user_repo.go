package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/GTDGit/catering_api/internal/models"
)

var (
	// ErrAdminNotFound is returned when no admin row matches the lookup.
	ErrAdminNotFound = errors.New("admin user not found")
	// ErrDuplicateAdmin is returned when email or username is already taken.
	ErrDuplicateAdmin = errors.New("admin user already exists")
)

const adminColumns = `id, email, username, name, role, is_active, permissions, password_hash,
	last_login_at, otp_hash, otp_expires_at, reset_token_hash, reset_token_expires_at,
	created_at, updated_at`

// AdminUserRepository is the credential store for administrators.
// Every recovery mutation is a single conditional statement so concurrent
// requests for the same admin cannot both observe and consume one secret.
type AdminUserRepository struct {
	db *sqlx.DB
}

// NewAdminUserRepository creates a new AdminUserRepository.
func NewAdminUserRepository(db *sqlx.DB) *AdminUserRepository {
	return &AdminUserRepository{db: db}
}

func (r *AdminUserRepository) getBy(ctx context.Context, where string, arg any) (*models.AdminUser, error) {
	var user models.AdminUser
	err := r.db.GetContext(ctx, &user, `SELECT `+adminColumns+` FROM admin_users WHERE `+where+` LIMIT 1`, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByID finds an admin by primary key.
func (r *AdminUserRepository) GetByID(ctx context.Context, id int64) (*models.AdminUser, error) {
	return r.getBy(ctx, "id = $1", id)
}

// GetByEmail finds an admin by email, ignoring case.
func (r *AdminUserRepository) GetByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	return r.getBy(ctx, "LOWER(email) = LOWER($1)", email)
}

// GetByResetTokenHash finds the admin carrying a pending reset token.
func (r *AdminUserRepository) GetByResetTokenHash(ctx context.Context, tokenHash string) (*models.AdminUser, error) {
	return r.getBy(ctx, "reset_token_hash = $1", tokenHash)
}

// List returns every admin ordered by id.
func (r *AdminUserRepository) List(ctx context.Context) ([]models.AdminUser, error) {
	var users []models.AdminUser
	if err := r.db.SelectContext(ctx, &users, `SELECT `+adminColumns+` FROM admin_users ORDER BY id`); err != nil {
		return nil, err
	}
	return users, nil
}

// Create inserts a new admin and fills in the generated id and timestamps.
func (r *AdminUserRepository) Create(ctx context.Context, user *models.AdminUser) error {
	query := `
		INSERT INTO admin_users (email, username, name, role, is_active, permissions, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		user.Email, user.Username, user.Name, user.Role, user.IsActive, user.Permissions, user.PasswordHash,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateAdmin
		}
		return err
	}
	return nil
}

// SetActive flips the active flag.
func (r *AdminUserRepository) SetActive(ctx context.Context, id int64, active bool) error {
	return r.execOne(ctx, `UPDATE admin_users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
}

// TouchLastLogin stamps the last successful login time.
func (r *AdminUserRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	return r.execOne(ctx, `UPDATE admin_users SET last_login_at = $2, updated_at = NOW() WHERE id = $1`, id, at)
}

// SetOTP stores a freshly issued code, replacing any pending code or reset token.
func (r *AdminUserRepository) SetOTP(ctx context.Context, id int64, otpHash string, expiresAt time.Time) error {
	return r.execOne(ctx, `
		UPDATE admin_users
		SET otp_hash = $2, otp_expires_at = $3,
			reset_token_hash = NULL, reset_token_expires_at = NULL,
			updated_at = NOW()
		WHERE id = $1
	`, id, otpHash, expiresAt)
}

// ClearOTPIfMatch removes the pending code only if it is still the one identified
// by otpHash. A newer code issued concurrently is left alone.
func (r *AdminUserRepository) ClearOTPIfMatch(ctx context.Context, id int64, otpHash string) (bool, error) {
	return r.execCond(ctx, `
		UPDATE admin_users
		SET otp_hash = NULL, otp_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND otp_hash = $2
	`, id, otpHash)
}

// VerifyOTPAndIssueReset atomically consumes a matching, unexpired code and
// installs the reset token in its place. It reports false when nothing matched.
func (r *AdminUserRepository) VerifyOTPAndIssueReset(
	ctx context.Context,
	id int64,
	otpHash string,
	now time.Time,
	resetHash string,
	resetExpiresAt time.Time,
) (bool, error) {
	return r.execCond(ctx, `
		UPDATE admin_users
		SET otp_hash = NULL, otp_expires_at = NULL,
			reset_token_hash = $4, reset_token_expires_at = $5,
			updated_at = NOW()
		WHERE id = $1 AND otp_hash = $2 AND otp_expires_at >= $3
	`, id, otpHash, now, resetHash, resetExpiresAt)
}

// ClearExpiredOTP lazily drops a code whose window has passed.
func (r *AdminUserRepository) ClearExpiredOTP(ctx context.Context, id int64, now time.Time) error {
	_, err := r.execCond(ctx, `
		UPDATE admin_users
		SET otp_hash = NULL, otp_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND otp_expires_at < $2
	`, id, now)
	return err
}

// ConsumeResetToken atomically exchanges an unexpired reset token held by an
// active admin for a new password hash, clearing every recovery column. It
// returns the admin id, or false when no live token matched.
func (r *AdminUserRepository) ConsumeResetToken(
	ctx context.Context,
	tokenHash string,
	now time.Time,
	passwordHash string,
) (int64, bool, error) {
	var id int64
	err := r.db.QueryRowxContext(ctx, `
		UPDATE admin_users
		SET password_hash = $3,
			reset_token_hash = NULL, reset_token_expires_at = NULL,
			otp_hash = NULL, otp_expires_at = NULL,
			updated_at = NOW()
		WHERE reset_token_hash = $1 AND reset_token_expires_at >= $2 AND is_active
		RETURNING id
	`, tokenHash, now, passwordHash).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

// ClearExpiredResetToken lazily drops a reset token whose window has passed.
func (r *AdminUserRepository) ClearExpiredResetToken(ctx context.Context, tokenHash string, now time.Time) error {
	_, err := r.execCond(ctx, `
		UPDATE admin_users
		SET reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = NOW()
		WHERE reset_token_hash = $1 AND reset_token_expires_at < $2
	`, tokenHash, now)
	return err
}

// execOne runs an update that must hit exactly one admin.
func (r *AdminUserRepository) execOne(ctx context.Context, query string, args ...any) error {
	ok, err := r.execCond(ctx, query, args...)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAdminNotFound
	}
	return nil
}

// execCond runs a conditional update and reports whether any row changed.
func (r *AdminUserRepository) execCond(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
