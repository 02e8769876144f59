package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// AdminRole is the closed set of administrator roles.
type AdminRole string

const (
	RoleSuperAdmin     AdminRole = "superadmin"
	RoleAdmin          AdminRole = "admin"
	RoleContentManager AdminRole = "content_manager"
)

// Valid reports whether r is one of the known roles.
func (r AdminRole) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleContentManager:
		return true
	}
	return false
}

// Permission names a single flag of AdminPermissions.
type Permission string

const (
	PermManageFestivals Permission = "manageFestivals"
	PermManageFoodItems Permission = "manageFoodItems"
	PermManageGallery   Permission = "manageGallery"
	PermManageInquiries Permission = "manageInquiries"
	PermManageMedia     Permission = "manageMedia"
	PermManageUsers     Permission = "manageUsers"
)

// AdminPermissions holds independent capability flags. Stored as JSONB.
type AdminPermissions struct {
	ManageFestivals bool `json:"manageFestivals"`
	ManageFoodItems bool `json:"manageFoodItems"`
	ManageGallery   bool `json:"manageGallery"`
	ManageInquiries bool `json:"manageInquiries"`
	ManageMedia     bool `json:"manageMedia"`
	ManageUsers     bool `json:"manageUsers"`
}

// DefaultPermissions returns every flag on except user management.
func DefaultPermissions() AdminPermissions {
	return AdminPermissions{
		ManageFestivals: true,
		ManageFoodItems: true,
		ManageGallery:   true,
		ManageInquiries: true,
		ManageMedia:     true,
	}
}

// Has reports whether the named flag is set. Unknown names are never granted.
func (p AdminPermissions) Has(perm Permission) bool {
	switch perm {
	case PermManageFestivals:
		return p.ManageFestivals
	case PermManageFoodItems:
		return p.ManageFoodItems
	case PermManageGallery:
		return p.ManageGallery
	case PermManageInquiries:
		return p.ManageInquiries
	case PermManageMedia:
		return p.ManageMedia
	case PermManageUsers:
		return p.ManageUsers
	}
	return false
}

// Value implements driver.Valuer.
func (p AdminPermissions) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner.
func (p *AdminPermissions) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = DefaultPermissions()
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("unsupported permissions type %T", src)
	}
}

// AdminUser represents an administrator of the catering panel.
// The otp and reset token columns carry the password recovery state.
type AdminUser struct {
	ID           int64            `db:"id" json:"id"`
	Email        string           `db:"email" json:"email"`
	Username     string           `db:"username" json:"username"`
	Name         string           `db:"name" json:"name"`
	Role         AdminRole        `db:"role" json:"role"`
	IsActive     bool             `db:"is_active" json:"isActive"`
	Permissions  AdminPermissions `db:"permissions" json:"permissions"`
	PasswordHash string           `db:"password_hash" json:"-"`
	LastLoginAt  *time.Time       `db:"last_login_at" json:"lastLoginAt"`

	OTPHash             *string    `db:"otp_hash" json:"-"`
	OTPExpiresAt        *time.Time `db:"otp_expires_at" json:"-"`
	ResetTokenHash      *string    `db:"reset_token_hash" json:"-"`
	ResetTokenExpiresAt *time.Time `db:"reset_token_expires_at" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NormalizeEmail trims and lower-cases an address. Emails compare case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate checks the invariants every creatable record must satisfy.
func (u *AdminUser) Validate() error {
	if u.Email == "" || !strings.Contains(u.Email, "@") {
		return errors.New("email is invalid")
	}
	if u.Email != NormalizeEmail(u.Email) {
		return errors.New("email must be normalized")
	}
	if strings.TrimSpace(u.Username) == "" {
		return errors.New("username is required")
	}
	if !u.Role.Valid() {
		return fmt.Errorf("unknown role %q", u.Role)
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	return nil
}

// Can reports whether the admin holds perm. Superadmins hold everything.
func (u *AdminUser) Can(perm Permission) bool {
	if u.Role == RoleSuperAdmin {
		return true
	}
	return u.Permissions.Has(perm)
}

// RecoveryPhase is the password recovery state of a single admin.
type RecoveryPhase int

const (
	RecoveryIdle RecoveryPhase = iota
	RecoveryCodeSent
	RecoveryCodeVerified
)

func (p RecoveryPhase) String() string {
	switch p {
	case RecoveryCodeSent:
		return "code_sent"
	case RecoveryCodeVerified:
		return "code_verified"
	default:
		return "idle"
	}
}

// RecoveryState is the tagged view over the recovery columns.
// Hash and ExpiresAt are set only when Phase is not RecoveryIdle.
type RecoveryState struct {
	Phase     RecoveryPhase
	Hash      string
	ExpiresAt time.Time
}

// Recovery derives the current recovery state. A pending reset token wins over
// a pending code; the store never holds both.
func (u *AdminUser) Recovery() RecoveryState {
	if u.ResetTokenHash != nil && u.ResetTokenExpiresAt != nil {
		return RecoveryState{Phase: RecoveryCodeVerified, Hash: *u.ResetTokenHash, ExpiresAt: *u.ResetTokenExpiresAt}
	}
	if u.OTPHash != nil && u.OTPExpiresAt != nil {
		return RecoveryState{Phase: RecoveryCodeSent, Hash: *u.OTPHash, ExpiresAt: *u.OTPExpiresAt}
	}
	return RecoveryState{Phase: RecoveryIdle}
}

// AdminSummary is the outward shape of an admin in login and profile responses.
type AdminSummary struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Email       string           `json:"email"`
	Username    string           `json:"username"`
	Role        AdminRole        `json:"role"`
	Permissions AdminPermissions `json:"permissions"`
	LastLoginAt *time.Time       `json:"lastLoginAt,omitempty"`
}

// Summary returns the outward representation of u.
func (u *AdminUser) Summary() AdminSummary {
	return AdminSummary{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Username:    u.Username,
		Role:        u.Role,
		Permissions: u.Permissions,
		LastLoginAt: u.LastLoginAt,
	}
}
