package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/GTDGit/catering_api/internal/middleware"
	"github.com/GTDGit/catering_api/internal/models"
	"github.com/GTDGit/catering_api/internal/service"
	"github.com/GTDGit/catering_api/internal/utils"
)

// AuthHandler serves admin login, profile and password recovery.
type AuthHandler struct {
	authService     *service.AdminAuthService
	recoveryService *service.RecoveryService
}

func NewAuthHandler(authService *service.AdminAuthService, recoveryService *service.RecoveryService) *AuthHandler {
	return &AuthHandler{authService: authService, recoveryService: recoveryService}
}

func invalidBody(c *gin.Context) {
	utils.Error(c, 400, utils.ErrValidation.Error(), "Invalid request body")
}

// Login handles POST /v1/admin/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, 200, "Login successful", gin.H{
		"primaryToken":     result.Session.PrimaryToken,
		"primaryExpiresAt": result.Session.PrimaryExpiresAt,
		"renewalToken":     result.Session.RenewalToken,
		"renewalExpiresAt": result.Session.RenewalExpiresAt,
		"admin":            result.Admin.Summary(),
	})
}

// Profile handles GET /v1/admin/auth/profile
func (h *AuthHandler) Profile(c *gin.Context) {
	admin := middleware.GetAdmin(c)
	utils.Success(c, 200, "Profile retrieved", gin.H{"admin": admin.Summary()})
}

// ForgotPassword handles POST /v1/admin/auth/forgot-password and /resend-otp.
// The response is the same whether or not the email belongs to an admin.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}

	if err := h.recoveryService.RequestReset(c.Request.Context(), req.Email); err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, 200, "If the email is registered, a reset code has been sent", nil)
}

// VerifyOTP handles POST /v1/admin/auth/verify-otp
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
		Code  string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}

	grant, err := h.recoveryService.VerifyCode(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, 200, "Code verified", gin.H{
		"resetToken": grant.Token,
		"expiresAt":  grant.ExpiresAt,
	})
}

// ResetPassword handles POST /v1/admin/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req struct {
		ResetToken  string `json:"resetToken" binding:"required"`
		NewPassword string `json:"newPassword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}

	if err := h.recoveryService.ResetPassword(c.Request.Context(), req.ResetToken, req.NewPassword); err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, 200, "Password has been reset", nil)
}

// CheckPermission handles GET /v1/admin/auth/permissions/:flag. Other services
// call it to ask whether the bearer may use a capability.
func (h *AuthHandler) CheckPermission(c *gin.Context) {
	admin := middleware.GetAdmin(c)
	perm := models.Permission(c.Param("flag"))

	if !admin.Can(perm) {
		utils.RespondError(c, utils.ErrForbidden)
		return
	}
	utils.Success(c, 200, "Permission granted", gin.H{"permission": perm, "granted": true})
}

// ListAdmins handles GET /v1/admin/auth/admins
func (h *AuthHandler) ListAdmins(c *gin.Context) {
	admins, err := h.authService.ListAdmins(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	summaries := make([]models.AdminSummary, 0, len(admins))
	for i := range admins {
		summaries = append(summaries, admins[i].Summary())
	}
	utils.Success(c, 200, "Admins retrieved", summaries)
}
