package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/GTDGit/catering_api/internal/models"
	"github.com/GTDGit/catering_api/internal/repository/repositorytest"
)

const testSecret = "test-jwt-secret"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type sentMail struct {
	To      string
	Subject string
	Body    string
	Code    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, body string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body, Code: extractCode(body)})
	return "msg-" + to, nil
}

func (m *fakeMailer) Sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

func (m *fakeMailer) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// extractCode pulls the first run of OTPDigits digits out of a mail body.
func extractCode(body string) string {
	for i := 0; i+OTPDigits <= len(body); i++ {
		if isDigits(body[i:i+OTPDigits]) && (i+OTPDigits == len(body) || !isDigits(body[i+OTPDigits:i+OTPDigits+1])) {
			return body[i : i+OTPDigits]
		}
	}
	return ""
}

type testEnv struct {
	clock    *testClock
	store    *repositorytest.AdminStore
	hasher   *BcryptHasher
	sessions *SessionManager
	otp      *OTPEngine
	resets   *ResetTokenIssuer
	auth     *AdminAuthService
	recovery *RecoveryService
	mailer   *fakeMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := newTestClock()
	store := repositorytest.NewAdminStore()
	hasher := NewBcryptHasher(10)
	policy := PasswordPolicy{MinLength: 6}

	sessions := NewSessionManager(testSecret, 24*time.Hour, 7*24*time.Hour)
	sessions.SetClock(clock.Now)
	otp := NewOTPEngine(store, testSecret, 10*time.Minute)
	otp.SetClock(clock.Now)
	resets := NewResetTokenIssuer(store, hasher, policy, testSecret, 10*time.Minute)
	resets.SetClock(clock.Now)

	auth := NewAdminAuthService(store, hasher, policy, sessions)
	auth.SetClock(clock.Now)

	mailer := &fakeMailer{}
	recovery := NewRecoveryService(store, otp, resets, mailer, nil, 2*time.Second)

	return &testEnv{
		clock:    clock,
		store:    store,
		hasher:   hasher,
		sessions: sessions,
		otp:      otp,
		resets:   resets,
		auth:     auth,
		recovery: recovery,
		mailer:   mailer,
	}
}

// seedAdmin provisions a@x.com / Secret1 with the admin role.
func (e *testEnv) seedAdmin(t *testing.T) *models.AdminUser {
	t.Helper()
	user, err := e.auth.CreateAdmin(context.Background(), CreateAdminInput{
		Email:    "a@x.com",
		Username: "alice",
		Name:     "Alice",
		Role:     models.RoleAdmin,
		Password: "Secret1",
	})
	require.NoError(t, err)
	return user
}

var errSMTPDown = errors.New("smtp: connection refused")
