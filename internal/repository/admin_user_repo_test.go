package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/catering_api/internal/models"
)

var columns = []string{
	"id", "email", "username", "name", "role", "is_active", "permissions", "password_hash",
	"last_login_at", "otp_hash", "otp_expires_at", "reset_token_hash", "reset_token_expires_at",
	"created_at", "updated_at",
}

func setupMockDB(t *testing.T) (*AdminUserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewAdminUserRepository(sqlx.NewDb(db, "postgres")), mock
}

func TestGetByEmail_Found(t *testing.T) {
	repo, mock := setupMockDB(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	otpExp := now.Add(10 * time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta("FROM admin_users WHERE LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			int64(7), "a@x.com", "alice", "Alice", "admin", true,
			[]byte(`{"manageFestivals":true,"manageUsers":false}`), "$2a$hash",
			nil, "otphash", otpExp, nil, nil, now, now,
		))

	user, err := repo.GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)

	assert.Equal(t, int64(7), user.ID)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.True(t, user.Permissions.ManageFestivals)
	assert.False(t, user.Permissions.ManageUsers)
	assert.Nil(t, user.LastLoginAt)
	require.NotNil(t, user.OTPHash)
	assert.Equal(t, models.RecoveryCodeSent, user.Recovery().Phase)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(columns))

	_, err := repo.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrAdminNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate(t *testing.T) {
	repo, mock := setupMockDB(t)
	now := time.Now()
	user := &models.AdminUser{
		Email:        "a@x.com",
		Username:     "alice",
		Name:         "Alice",
		Role:         models.RoleAdmin,
		IsActive:     true,
		Permissions:  models.DefaultPermissions(),
		PasswordHash: "$2a$hash",
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO admin_users")).
		WithArgs("a@x.com", "alice", "Alice", "admin", true, sqlmock.AnyArg(), "$2a$hash").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(1), now, now))

	require.NoError(t, repo.Create(context.Background(), user))
	assert.Equal(t, int64(1), user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Duplicate(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO admin_users")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.AdminUser{Email: "a@x.com"})
	assert.ErrorIs(t, err, ErrDuplicateAdmin)
}

func TestSetOTP_OverwritesAndClearsResetToken(t *testing.T) {
	repo, mock := setupMockDB(t)
	exp := time.Now().Add(10 * time.Minute)

	mock.ExpectExec(`UPDATE admin_users\s+SET otp_hash = \$2, otp_expires_at = \$3,\s+reset_token_hash = NULL`).
		WithArgs(int64(7), "h1", exp).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetOTP(context.Background(), 7, "h1", exp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetOTP_UnknownAdmin(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectExec("UPDATE admin_users").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetOTP(context.Background(), 7, "h1", time.Now())
	assert.ErrorIs(t, err, ErrAdminNotFound)
}

func TestVerifyOTPAndIssueReset(t *testing.T) {
	now := time.Now()
	resetExp := now.Add(10 * time.Minute)

	t.Run("matched", func(t *testing.T) {
		repo, mock := setupMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND otp_hash = $2 AND otp_expires_at >= $3")).
			WithArgs(int64(7), "otp", now, "reset", resetExp).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.VerifyOTPAndIssueReset(context.Background(), 7, "otp", now, "reset", resetExp)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no match", func(t *testing.T) {
		repo, mock := setupMockDB(t)
		mock.ExpectExec("UPDATE admin_users").WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.VerifyOTPAndIssueReset(context.Background(), 7, "otp", now, "reset", resetExp)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestClearOTPIfMatch(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND otp_hash = $2")).
		WithArgs(int64(7), "h1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.ClearOTPIfMatch(context.Background(), 7, "h1")
	require.NoError(t, err)
	assert.False(t, ok, "a newer code must survive the rollback")
}

func TestConsumeResetToken(t *testing.T) {
	now := time.Now()

	t.Run("consumed", func(t *testing.T) {
		repo, mock := setupMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE reset_token_hash = $1 AND reset_token_expires_at >= $2 AND is_active")).
			WithArgs("tok", now, "$2a$new").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

		id, ok, err := repo.ConsumeResetToken(context.Background(), "tok", now, "$2a$new")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(7), id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no live token", func(t *testing.T) {
		repo, mock := setupMockDB(t)
		mock.ExpectQuery("UPDATE admin_users").WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, ok, err := repo.ConsumeResetToken(context.Background(), "tok", now, "$2a$new")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("store failure", func(t *testing.T) {
		repo, mock := setupMockDB(t)
		mock.ExpectQuery("UPDATE admin_users").WillReturnError(errors.New("connection reset"))

		_, _, err := repo.ConsumeResetToken(context.Background(), "tok", now, "$2a$new")
		assert.Error(t, err)
	})
}

func TestClearExpired(t *testing.T) {
	repo, mock := setupMockDB(t)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND otp_expires_at < $2")).
		WithArgs(int64(7), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("WHERE reset_token_hash = $1 AND reset_token_expires_at < $2")).
		WithArgs("tok", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ClearExpiredOTP(context.Background(), 7, now))
	require.NoError(t, repo.ClearExpiredResetToken(context.Background(), "tok", now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetActive(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("SET is_active = $2")).
		WithArgs(int64(7), false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetActive(context.Background(), 7, false))
	assert.NoError(t, mock.ExpectationsWereMet())
}
