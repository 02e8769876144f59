package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/catering_api/internal/models"
	"github.com/GTDGit/catering_api/internal/utils"
)

const (
	adminKey   = "admin"
	adminIDKey = "admin_id"
)

// Authenticator resolves a bearer token to an active admin.
// Implemented by service.AdminAuthService.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.AdminUser, *models.SessionClaims, error)
}

// JWTMiddleware guards admin routes with a primary session token.
type JWTMiddleware struct {
	auth Authenticator
}

func NewJWTMiddleware(auth Authenticator) *JWTMiddleware {
	return &JWTMiddleware{auth: auth}
}

// Handle rejects requests without a valid primary token held by an active admin.
func (m *JWTMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.AbortWithError(c, 401, "UNAUTHORIZED", "Missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			utils.AbortWithError(c, 401, "UNAUTHORIZED", "Invalid authorization header")
			return
		}

		admin, _, err := m.auth.Authenticate(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			utils.RespondError(c, err)
			c.Abort()
			return
		}

		c.Set(adminKey, admin)
		c.Set(adminIDKey, admin.ID)
		c.Next()
	}
}

// RequirePermission lets the request through only if the authenticated admin
// holds perm. Must run after Handle.
func RequirePermission(perm models.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin := GetAdmin(c)
		if admin == nil {
			utils.AbortWithError(c, 401, "UNAUTHORIZED", "Authentication required")
			return
		}
		if !admin.Can(perm) {
			utils.RespondError(c, utils.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetAdmin returns the authenticated admin from context.
func GetAdmin(c *gin.Context) *models.AdminUser {
	admin, ok := c.Get(adminKey)
	if !ok {
		return nil
	}
	a, _ := admin.(*models.AdminUser)
	return a
}
