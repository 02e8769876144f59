// Package repositorytest provides an in-memory admin store with the same
// conditional-update semantics as the Postgres repository, for use in tests.
package repositorytest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/GTDGit/catering_api/internal/models"
	"github.com/GTDGit/catering_api/internal/repository"
)

// AdminStore is a mutex-serialized, map-backed admin store.
type AdminStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*models.AdminUser

	// Err, when set, is returned by every operation.
	Err error
}

// NewAdminStore returns an empty store.
func NewAdminStore() *AdminStore {
	return &AdminStore{users: make(map[int64]*models.AdminUser)}
}

// Snapshot returns a copy of the stored record, or nil.
func (s *AdminStore) Snapshot(id int64) *models.AdminUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	return clone(u)
}

func (s *AdminStore) find(match func(u *models.AdminUser) bool) (*models.AdminUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, u := range s.users {
		if match(u) {
			return clone(u), nil
		}
	}
	return nil, repository.ErrAdminNotFound
}

func (s *AdminStore) GetByID(_ context.Context, id int64) (*models.AdminUser, error) {
	return s.find(func(u *models.AdminUser) bool { return u.ID == id })
}

func (s *AdminStore) GetByEmail(_ context.Context, email string) (*models.AdminUser, error) {
	return s.find(func(u *models.AdminUser) bool { return strings.EqualFold(u.Email, email) })
}

func (s *AdminStore) GetByResetTokenHash(_ context.Context, tokenHash string) (*models.AdminUser, error) {
	return s.find(func(u *models.AdminUser) bool {
		return u.ResetTokenHash != nil && *u.ResetTokenHash == tokenHash
	})
}

func (s *AdminStore) List(_ context.Context) ([]models.AdminUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]models.AdminUser, 0, len(s.users))
	for id := int64(1); id <= s.nextID; id++ {
		if u, ok := s.users[id]; ok {
			out = append(out, *clone(u))
		}
	}
	return out, nil
}

func (s *AdminStore) Create(_ context.Context, user *models.AdminUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) || u.Username == user.Username {
			return repository.ErrDuplicateAdmin
		}
	}
	s.nextID++
	now := time.Now()
	user.ID = s.nextID
	user.CreatedAt, user.UpdatedAt = now, now
	s.users[user.ID] = clone(user)
	return nil
}

// update runs fn on the record with the given id and reports whether fn changed it.
func (s *AdminStore) update(id int64, fn func(u *models.AdminUser) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	u, ok := s.users[id]
	if !ok {
		return false, nil
	}
	if !fn(u) {
		return false, nil
	}
	u.UpdatedAt = time.Now()
	return true, nil
}

func (s *AdminStore) updateOne(id int64, fn func(u *models.AdminUser)) error {
	ok, err := s.update(id, func(u *models.AdminUser) bool { fn(u); return true })
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrAdminNotFound
	}
	return nil
}

func (s *AdminStore) SetActive(_ context.Context, id int64, active bool) error {
	return s.updateOne(id, func(u *models.AdminUser) { u.IsActive = active })
}

func (s *AdminStore) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	return s.updateOne(id, func(u *models.AdminUser) { u.LastLoginAt = &at })
}

func (s *AdminStore) SetOTP(_ context.Context, id int64, otpHash string, expiresAt time.Time) error {
	return s.updateOne(id, func(u *models.AdminUser) {
		u.OTPHash, u.OTPExpiresAt = &otpHash, &expiresAt
		u.ResetTokenHash, u.ResetTokenExpiresAt = nil, nil
	})
}

func (s *AdminStore) ClearOTPIfMatch(_ context.Context, id int64, otpHash string) (bool, error) {
	return s.update(id, func(u *models.AdminUser) bool {
		if u.OTPHash == nil || *u.OTPHash != otpHash {
			return false
		}
		u.OTPHash, u.OTPExpiresAt = nil, nil
		return true
	})
}

func (s *AdminStore) VerifyOTPAndIssueReset(
	_ context.Context,
	id int64,
	otpHash string,
	now time.Time,
	resetHash string,
	resetExpiresAt time.Time,
) (bool, error) {
	return s.update(id, func(u *models.AdminUser) bool {
		if u.OTPHash == nil || *u.OTPHash != otpHash || u.OTPExpiresAt == nil || u.OTPExpiresAt.Before(now) {
			return false
		}
		u.OTPHash, u.OTPExpiresAt = nil, nil
		u.ResetTokenHash, u.ResetTokenExpiresAt = &resetHash, &resetExpiresAt
		return true
	})
}

func (s *AdminStore) ClearExpiredOTP(_ context.Context, id int64, now time.Time) error {
	_, err := s.update(id, func(u *models.AdminUser) bool {
		if u.OTPExpiresAt == nil || !u.OTPExpiresAt.Before(now) {
			return false
		}
		u.OTPHash, u.OTPExpiresAt = nil, nil
		return true
	})
	return err
}

func (s *AdminStore) ConsumeResetToken(_ context.Context, tokenHash string, now time.Time, passwordHash string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, false, s.Err
	}
	for _, u := range s.users {
		if u.ResetTokenHash == nil || *u.ResetTokenHash != tokenHash {
			continue
		}
		if !u.IsActive || u.ResetTokenExpiresAt == nil || u.ResetTokenExpiresAt.Before(now) {
			return 0, false, nil
		}
		u.PasswordHash = passwordHash
		u.ResetTokenHash, u.ResetTokenExpiresAt = nil, nil
		u.OTPHash, u.OTPExpiresAt = nil, nil
		u.UpdatedAt = time.Now()
		return u.ID, true, nil
	}
	return 0, false, nil
}

func (s *AdminStore) ClearExpiredResetToken(_ context.Context, tokenHash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, u := range s.users {
		if u.ResetTokenHash != nil && *u.ResetTokenHash == tokenHash &&
			u.ResetTokenExpiresAt != nil && u.ResetTokenExpiresAt.Before(now) {
			u.ResetTokenHash, u.ResetTokenExpiresAt = nil, nil
		}
	}
	return nil
}

func clone(u *models.AdminUser) *models.AdminUser {
	c := *u
	c.LastLoginAt = copyTime(u.LastLoginAt)
	c.OTPHash = copyString(u.OTPHash)
	c.OTPExpiresAt = copyTime(u.OTPExpiresAt)
	c.ResetTokenHash = copyString(u.ResetTokenHash)
	c.ResetTokenExpiresAt = copyTime(u.ResetTokenExpiresAt)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
