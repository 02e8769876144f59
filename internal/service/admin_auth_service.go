package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/catering_api/internal/metrics"
	"github.com/GTDGit/catering_api/internal/models"
	"github.com/GTDGit/catering_api/internal/repository"
	"github.com/GTDGit/catering_api/internal/utils"
)

// LoginResult is returned by a successful login.
type LoginResult struct {
	Session *models.Session
	Admin   *models.AdminUser
}

// CreateAdminInput describes a new administrator for provisioning.
type CreateAdminInput struct {
	Email       string
	Username    string
	Name        string
	Role        models.AdminRole
	Password    string
	Permissions *models.AdminPermissions
}

type AdminAuthService struct {
	store    AdminStore
	hasher   PasswordHasher
	policy   PasswordPolicy
	sessions *SessionManager
	metrics  *metrics.Metrics
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAdminAuthService(store AdminStore, hasher PasswordHasher, policy PasswordPolicy, sessions *SessionManager) *AdminAuthService {
	return &AdminAuthService{
		store:    store,
		hasher:   hasher,
		policy:   policy,
		sessions: sessions,
		now:      time.Now,
	}
}

// SetMetrics attaches the metrics recorder.
func (s *AdminAuthService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetClock overrides the time source used for last-login stamps.
func (s *AdminAuthService) SetClock(now func() time.Time) {
	s.now = now
}

// Login checks email and password and issues a session. Unknown email and wrong
// password fail identically with utils.ErrInvalidCredentials; a deactivated
// admin with the right password gets utils.ErrInactive.
func (s *AdminAuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = models.NormalizeEmail(email)
	log.Debug().Str("email", email).Msg("Login attempt")

	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrAdminNotFound) {
			return nil, fmt.Errorf("load admin: %w", err)
		}
		// Burn a comparable amount of time so response latency does not reveal unknown emails.
		s.hasher.Verify(password, s.fakeHash())
		log.Info().Str("email", email).Msg("Login failed: unknown email")
		s.metrics.RecordLogin("invalid_credentials")
		return nil, utils.ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		log.Info().Int64("admin_id", user.ID).Msg("Login failed: password mismatch")
		s.metrics.RecordLogin("invalid_credentials")
		return nil, utils.ErrInvalidCredentials
	}

	if !user.IsActive {
		log.Warn().Int64("admin_id", user.ID).Msg("Login refused: account is inactive")
		s.metrics.RecordLogin("inactive")
		return nil, utils.ErrInactive
	}

	now := s.now()
	if err := s.store.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("stamp last login: %w", err)
	}
	user.LastLoginAt = &now

	session, err := s.sessions.Issue(user.ID, user.Role, user.Email)
	if err != nil {
		return nil, err
	}

	log.Info().Int64("admin_id", user.ID).Str("role", string(user.Role)).Msg("Login successful")
	s.metrics.RecordLogin("success")
	return &LoginResult{Session: session, Admin: user}, nil
}

// Authenticate verifies a primary token and resolves it to a still-active admin.
// The active flag is re-read on every call, so deactivation takes effect
// immediately even for unexpired tokens.
func (s *AdminAuthService) Authenticate(ctx context.Context, token string) (*models.AdminUser, *models.SessionClaims, error) {
	claims, err := s.sessions.ParsePrimary(token)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.store.GetByID(ctx, claims.AdminID)
	if err != nil {
		if errors.Is(err, repository.ErrAdminNotFound) {
			return nil, nil, utils.ErrMalformedToken
		}
		return nil, nil, fmt.Errorf("load admin: %w", err)
	}
	if !user.IsActive {
		return nil, nil, utils.ErrInactive
	}
	return user, claims, nil
}

// CreateAdmin provisions a new administrator.
func (s *AdminAuthService) CreateAdmin(ctx context.Context, in CreateAdminInput) (*models.AdminUser, error) {
	if err := s.policy.Check(in.Password); err != nil {
		return nil, err
	}

	hashedPassword, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	role := in.Role
	if role == "" {
		role = models.RoleAdmin
	}
	perms := models.DefaultPermissions()
	if in.Permissions != nil {
		perms = *in.Permissions
	}

	user := &models.AdminUser{
		Email:        models.NormalizeEmail(in.Email),
		Username:     strings.TrimSpace(in.Username),
		Name:         strings.TrimSpace(in.Name),
		Role:         role,
		IsActive:     true,
		Permissions:  perms,
		PasswordHash: hashedPassword,
	}
	if err := user.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrValidation, err)
	}

	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateAdmin) {
			return nil, fmt.Errorf("%w: email or username already taken", utils.ErrValidation)
		}
		return nil, fmt.Errorf("create admin: %w", err)
	}

	log.Info().Int64("admin_id", user.ID).Str("role", string(user.Role)).Msg("Admin created")
	return user, nil
}

// SetActive activates or deactivates the admin with the given email.
func (s *AdminAuthService) SetActive(ctx context.Context, email string, active bool) (*models.AdminUser, error) {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetActive(ctx, user.ID, active); err != nil {
		return nil, fmt.Errorf("set active: %w", err)
	}
	user.IsActive = active

	log.Info().Int64("admin_id", user.ID).Bool("active", active).Msg("Admin active flag changed")
	return user, nil
}

// GetByEmail looks up an admin, mapping a miss to utils.ErrNotFound.
func (s *AdminAuthService) GetByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	user, err := s.store.GetByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrAdminNotFound) {
			return nil, utils.ErrNotFound
		}
		return nil, fmt.Errorf("load admin: %w", err)
	}
	return user, nil
}

// ListAdmins returns every admin.
func (s *AdminAuthService) ListAdmins(ctx context.Context) ([]models.AdminUser, error) {
	return s.store.List(ctx)
}

func (s *AdminAuthService) fakeHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("catering-login-timing-equalizer")
		if err != nil {
			log.Error().Err(err).Msg("failed to prepare timing hash")
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}
