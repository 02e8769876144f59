package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/GTDGit/catering_api/internal/models"
	"github.com/GTDGit/catering_api/internal/utils"
)

// tokenClaims is the JWT body. Renewal tokens carry only the admin id.
type tokenClaims struct {
	AdminID int64            `json:"aid"`
	Role    models.AdminRole `json:"role,omitempty"`
	Email   string           `json:"email,omitempty"`
	Kind    models.TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// SessionManager signs and parses stateless HS256 session tokens.
// There is no server-side session table; a token stays valid until it expires
// or its admin is deactivated.
type SessionManager struct {
	secret     []byte
	accessTTL  time.Duration
	renewalTTL time.Duration
	now        func() time.Time
}

// NewSessionManager creates a manager signing with secret.
func NewSessionManager(secret string, accessTTL, renewalTTL time.Duration) *SessionManager {
	return &SessionManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		renewalTTL: renewalTTL,
		now:        time.Now,
	}
}

// SetClock overrides the time source.
func (m *SessionManager) SetClock(now func() time.Time) {
	m.now = now
}

// Issue creates a primary token carrying identity and role and a longer-lived
// renewal token carrying only the admin id.
func (m *SessionManager) Issue(adminID int64, role models.AdminRole, email string) (*models.Session, error) {
	now := m.now()

	primaryExp := now.Add(m.accessTTL)
	primary, err := m.sign(tokenClaims{
		AdminID:          adminID,
		Role:             role,
		Email:            email,
		Kind:             models.TokenPrimary,
		RegisteredClaims: m.registered(adminID, now, primaryExp),
	})
	if err != nil {
		return nil, err
	}

	renewalExp := now.Add(m.renewalTTL)
	renewal, err := m.sign(tokenClaims{
		AdminID:          adminID,
		Kind:             models.TokenRenewal,
		RegisteredClaims: m.registered(adminID, now, renewalExp),
	})
	if err != nil {
		return nil, err
	}

	return &models.Session{
		PrimaryToken:     primary,
		PrimaryExpiresAt: jwt.NewNumericDate(primaryExp).Time,
		RenewalToken:     renewal,
		RenewalExpiresAt: jwt.NewNumericDate(renewalExp).Time,
	}, nil
}

func (m *SessionManager) registered(adminID int64, iat, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(adminID, 10),
		IssuedAt:  jwt.NewNumericDate(iat),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
}

func (m *SessionManager) sign(claims tokenClaims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Parse checks the signature and expiry of raw and returns its claims.
// It fails with utils.ErrMalformedToken for anything unparseable, wrongly
// signed or missing required claims, and utils.ErrExpired once now > exp.
func (m *SessionManager) Parse(raw string) (*models.SessionClaims, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		// Expiry is checked below so the boundary is inclusive and uses our clock.
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || !token.Valid {
		return nil, utils.ErrMalformedToken
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil || claims.AdminID <= 0 {
		return nil, utils.ErrMalformedToken
	}
	if claims.Kind != models.TokenPrimary && claims.Kind != models.TokenRenewal {
		return nil, utils.ErrMalformedToken
	}
	if m.now().After(claims.ExpiresAt.Time) {
		return nil, utils.ErrExpired
	}

	return &models.SessionClaims{
		AdminID:   claims.AdminID,
		Role:      claims.Role,
		Email:     claims.Email,
		Kind:      claims.Kind,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// ParsePrimary is Parse restricted to primary tokens. A renewal token is malformed here.
func (m *SessionManager) ParsePrimary(raw string) (*models.SessionClaims, error) {
	claims, err := m.Parse(raw)
	if err != nil {
		return nil, err
	}
	if claims.Kind != models.TokenPrimary {
		return nil, utils.ErrMalformedToken
	}
	return claims, nil
}
