package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/catering_api/internal/models"
	"github.com/GTDGit/catering_api/internal/utils"
)

func TestOTPEngine_Issue(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedAdmin(t)
	ctx := context.Background()

	issued, err := env.otp.Issue(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, issued.Code, OTPDigits)
	assert.True(t, isDigits(issued.Code))
	assert.Equal(t, env.clock.Now().Add(10*time.Minute), issued.ExpiresAt)

	stored := env.store.Snapshot(user.ID)
	require.NotNil(t, stored.OTPHash)
	assert.NotEqual(t, issued.Code, *stored.OTPHash, "code must not be stored in plaintext")
	assert.Equal(t, issued.ExpiresAt, *stored.OTPExpiresAt)
	assert.Equal(t, models.RecoveryCodeSent, stored.Recovery().Phase)
}

func TestOTPEngine_IssueUnknownAdmin(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.otp.Issue(context.Background(), 404)
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestOTPEngine_IssueReplacesPendingState(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedAdmin(t)
	ctx := context.Background()

	first, err := env.otp.Issue(ctx, user.ID)
	require.NoError(t, err)
	grant, err := env.resets.Mint()
	require.NoError(t, err)
	require.NoError(t, env.otp.Verify(ctx, user.ID, first.Code, grant))
	require.Equal(t, models.RecoveryCodeVerified, env.store.Snapshot(user.ID).Recovery().Phase)

	second, err := env.otp.Issue(ctx, user.ID)
	require.NoError(t, err)

	stored := env.store.Snapshot(user.ID)
	assert.Equal(t, models.RecoveryCodeSent, stored.Recovery().Phase)
	assert.Nil(t, stored.ResetTokenHash, "a new request discards the verified reset token")

	_, err = env.resets.Consume(ctx, grant.Token, "NewPass1")
	assert.ErrorIs(t, err, utils.ErrNotFound)

	grant2, err := env.resets.Mint()
	require.NoError(t, err)
	assert.NoError(t, env.otp.Verify(ctx, user.ID, second.Code, grant2))
}

func TestOTPEngine_Verify(t *testing.T) {
	ctx := context.Background()

	t.Run("matching code installs the grant once", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.seedAdmin(t)
		issued, err := env.otp.Issue(ctx, user.ID)
		require.NoError(t, err)

		grant, err := env.resets.Mint()
		require.NoError(t, err)
		require.NoError(t, env.otp.Verify(ctx, user.ID, issued.Code, grant))

		stored := env.store.Snapshot(user.ID)
		assert.Nil(t, stored.OTPHash)
		assert.Nil(t, stored.OTPExpiresAt)
		require.NotNil(t, stored.ResetTokenHash)
		assert.NotEqual(t, grant.Token, *stored.ResetTokenHash)

		again, err := env.resets.Mint()
		require.NoError(t, err)
		err = env.otp.Verify(ctx, user.ID, issued.Code, again)
		assert.ErrorIs(t, err, utils.ErrExpired, "a code verifies at most once")
	})

	t.Run("wrong code leaves state unchanged", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.seedAdmin(t)
		issued, err := env.otp.Issue(ctx, user.ID)
		require.NoError(t, err)
		before := env.store.Snapshot(user.ID)

		wrong := "000000"
		if issued.Code == wrong {
			wrong = "111111"
		}
		grant, err := env.resets.Mint()
		require.NoError(t, err)
		err = env.otp.Verify(ctx, user.ID, wrong, grant)
		assert.ErrorIs(t, err, utils.ErrMismatch)

		after := env.store.Snapshot(user.ID)
		assert.Equal(t, before.OTPHash, after.OTPHash)
		assert.Equal(t, before.OTPExpiresAt, after.OTPExpiresAt)
		assert.Nil(t, after.ResetTokenHash)

		assert.NoError(t, env.otp.Verify(ctx, user.ID, issued.Code, grant))
	})

	t.Run("malformed code is a mismatch while a code is live", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.seedAdmin(t)
		_, err := env.otp.Issue(ctx, user.ID)
		require.NoError(t, err)

		grant, err := env.resets.Mint()
		require.NoError(t, err)
		for _, code := range []string{"", "12345", "1234567", "12a456"} {
			assert.ErrorIs(t, env.otp.Verify(ctx, user.ID, code, grant), utils.ErrMismatch, code)
		}
	})

	t.Run("no pending code", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.seedAdmin(t)

		grant, err := env.resets.Mint()
		require.NoError(t, err)
		assert.ErrorIs(t, env.otp.Verify(ctx, user.ID, "123456", grant), utils.ErrExpired)
		assert.ErrorIs(t, env.otp.Verify(ctx, 404, "123456", grant), utils.ErrExpired)
	})

	t.Run("store failure", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.seedAdmin(t)
		issued, err := env.otp.Issue(ctx, user.ID)
		require.NoError(t, err)

		grant, err := env.resets.Mint()
		require.NoError(t, err)
		env.store.Err = errors.New("connection reset")
		err = env.otp.Verify(ctx, user.ID, issued.Code, grant)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, utils.ErrMismatch)
		assert.NotErrorIs(t, err, utils.ErrExpired)
	})
}

func TestOTPEngine_ExpiryBoundary(t *testing.T) {
	ctx := context.Background()

	t.Run("valid at exactly the expiry instant", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.seedAdmin(t)
		issued, err := env.otp.Issue(ctx, user.ID)
		require.NoError(t, err)

		env.clock.Set(issued.ExpiresAt)
		grant, err := env.resets.Mint()
		require.NoError(t, err)
		assert.NoError(t, env.otp.Verify(ctx, user.ID, issued.Code, grant))
	})

	t.Run("expired just after and cleared", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.seedAdmin(t)
		issued, err := env.otp.Issue(ctx, user.ID)
		require.NoError(t, err)

		env.clock.Set(issued.ExpiresAt.Add(time.Nanosecond))
		grant, err := env.resets.Mint()
		require.NoError(t, err)
		assert.ErrorIs(t, env.otp.Verify(ctx, user.ID, issued.Code, grant), utils.ErrExpired)

		stored := env.store.Snapshot(user.ID)
		assert.Nil(t, stored.OTPHash, "expired code is cleared on access")
		assert.Nil(t, stored.ResetTokenHash)
	})

	t.Run("wrong code after expiry reports expired", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.seedAdmin(t)
		_, err := env.otp.Issue(ctx, user.ID)
		require.NoError(t, err)

		env.clock.Advance(11 * time.Minute)
		grant, err := env.resets.Mint()
		require.NoError(t, err)
		assert.ErrorIs(t, env.otp.Verify(ctx, user.ID, "999999x", grant), utils.ErrExpired)
	})
}

func TestOTPEngine_Revoke(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedAdmin(t)
	ctx := context.Background()

	stale, err := env.otp.Issue(ctx, user.ID)
	require.NoError(t, err)
	live, err := env.otp.Issue(ctx, user.ID)
	require.NoError(t, err)

	require.NoError(t, env.otp.Revoke(ctx, stale))
	assert.NotNil(t, env.store.Snapshot(user.ID).OTPHash, "revoking an old code keeps the newer one")

	require.NoError(t, env.otp.Revoke(ctx, live))
	assert.Nil(t, env.store.Snapshot(user.ID).OTPHash)
}
