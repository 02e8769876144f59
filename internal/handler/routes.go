package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/GTDGit/catering_api/internal/middleware"
	"github.com/GTDGit/catering_api/internal/models"
)

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health *HealthHandler
	Auth   *AuthHandler
}

// SetupRoutes registers all routes.
func SetupRoutes(router *gin.Engine, handlers *Handlers, jwtMiddleware *middleware.JWTMiddleware) {
	router.GET("/v1/health", handlers.Health.GetHealth)

	auth := router.Group("/v1/admin/auth")
	{
		auth.POST("/login", handlers.Auth.Login)
		auth.POST("/forgot-password", handlers.Auth.ForgotPassword)
		auth.POST("/resend-otp", handlers.Auth.ForgotPassword)
		auth.POST("/verify-otp", handlers.Auth.VerifyOTP)
		auth.POST("/reset-password", handlers.Auth.ResetPassword)
	}

	protected := auth.Group("")
	protected.Use(jwtMiddleware.Handle())
	{
		protected.GET("/profile", handlers.Auth.Profile)
		protected.GET("/permissions/:flag", handlers.Auth.CheckPermission)
		protected.GET("/admins", middleware.RequirePermission(models.PermManageUsers), handlers.Auth.ListAdmins)
	}
}
