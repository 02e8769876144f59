package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/catering_api/internal/cache"
	"github.com/GTDGit/catering_api/internal/config"
	"github.com/GTDGit/catering_api/internal/database"
	"github.com/GTDGit/catering_api/internal/handler"
	"github.com/GTDGit/catering_api/internal/metrics"
	"github.com/GTDGit/catering_api/internal/middleware"
	"github.com/GTDGit/catering_api/internal/repository"
	"github.com/GTDGit/catering_api/internal/service"
	"github.com/GTDGit/catering_api/pkg/mailer"
)

// main is the entrypoint for the catering admin API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Msg("starting catering api")

	// 3. Connect database
	db, err := database.Connect(&cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3a. Run migrations
	if err := database.RunMigrations(db.DB, cfg.DB.MigrationsPath); err != nil {
		log.Error().Err(err).Msg("migration failed")
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("migrations completed successfully")

	// 3b. Connect to Redis
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Error().Err(err).Msg("redis connection failed")
		fmt.Fprintf(os.Stderr, "redis connection failed: %v\n", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected successfully")

	// 4. Mail collaborator
	var mail service.Mailer
	sesMailer, err := mailer.NewSESMailer(context.Background(), mailer.Options{
		Region:           cfg.Mail.Region,
		From:             cfg.Mail.From,
		ConfigurationSet: cfg.Mail.ConfigurationSet,
	})
	switch {
	case err == nil:
		mail = sesMailer
	case errors.Is(err, mailer.ErrNotConfigured):
		log.Warn().Msg("MAIL_FROM not set - password reset emails will fail to send")
		mail = mailer.Disabled{}
	default:
		log.Error().Err(err).Msg("mailer initialization failed")
		fmt.Fprintf(os.Stderr, "mailer initialization failed: %v\n", err)
		os.Exit(1)
	}

	// 5. Initialize repositories
	adminRepo := repository.NewAdminUserRepository(db)

	// 6. Initialize services
	appMetrics := metrics.New()

	hasher := service.NewBcryptHasher(cfg.Auth.BcryptCost)
	policy := service.PasswordPolicy{MinLength: cfg.Auth.MinPasswordLength}
	sessions := service.NewSessionManager(cfg.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RenewalTTL)
	otpEngine := service.NewOTPEngine(adminRepo, cfg.RecoverySecret, cfg.Auth.OTPTTL)
	resetIssuer := service.NewResetTokenIssuer(adminRepo, hasher, policy, cfg.RecoverySecret, cfg.Auth.ResetTTL)

	adminAuthSvc := service.NewAdminAuthService(adminRepo, hasher, policy, sessions)
	adminAuthSvc.SetMetrics(appMetrics)

	recoveryLock := cache.NewRecoveryLock(redisClient, cfg.Auth.RecoveryLockTTL)
	recoverySvc := service.NewRecoveryService(adminRepo, otpEngine, resetIssuer, mail, recoveryLock, cfg.Mail.Timeout)
	recoverySvc.SetMetrics(appMetrics)

	// 7. Initialize handlers
	handlers := &handler.Handlers{
		Health: handler.NewHealthHandler(db, redisClient),
		Auth:   handler.NewAuthHandler(adminAuthSvc, recoverySvc),
	}

	// 8. Initialize middleware
	jwtMw := middleware.NewJWTMiddleware(adminAuthSvc)

	// 9. Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.CORSAllowedHosts))
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.MetricsMiddleware(appMetrics))
	router.GET("/metrics", gin.WrapH(appMetrics.Handler()))
	handler.SetupRoutes(router, handlers, jwtMw)

	// 10. Start HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 11. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 12. Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
