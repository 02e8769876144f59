package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port             string
	Env              string
	JWTSecret        string
	RecoverySecret   string
	CORSAllowedHosts []string

	DB    DatabaseConfig
	Redis RedisConfig
	Auth  AuthConfig
	Mail  MailConfig
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	Name           string
	SSLMode        string
	MigrationsPath string
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// AuthConfig controls session lifetimes, recovery windows and hashing cost.
type AuthConfig struct {
	AccessTTL         time.Duration
	RenewalTTL        time.Duration
	OTPTTL            time.Duration
	ResetTTL          time.Duration
	BcryptCost        int
	MinPasswordLength int
	RecoveryLockTTL   time.Duration
}

// MailConfig contains settings for the outbound mail collaborator (Amazon SES).
type MailConfig struct {
	Region           string
	From             string
	ConfigurationSet string
	Timeout          time.Duration
}

const (
	// MinBcryptCost is the lowest accepted hashing cost.
	MinBcryptCost = 10

	// RecoveryLockHeadroom is the time a recovery lock must outlive MAIL_TIMEOUT
	// by, covering the code write before the send and the revoke after a failure.
	RecoveryLockHeadroom = 5 * time.Second
)

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Missing .env is fine; production relies on real environment variables.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")
	cfg.JWTSecret = getEnv("JWT_SECRET", "")
	// Keys the one-time code and reset token hashes; shares JWT_SECRET when unset.
	cfg.RecoverySecret = getEnv("RECOVERY_SECRET", cfg.JWTSecret)
	cfg.CORSAllowedHosts = splitList(getEnv("CORS_ALLOWED_HOSTS", "localhost:3000,127.0.0.1:3000"))

	// Database
	cfg.DB = DatabaseConfig{
		Host:           getEnv("DB_HOST", ""),
		Port:           getEnv("DB_PORT", "5432"),
		User:           getEnv("DB_USER", ""),
		Password:       getEnv("DB_PASSWORD", ""),
		Name:           getEnv("DB_NAME", ""),
		SSLMode:        getEnv("DB_SSLMODE", "disable"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "file://migrations"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// Mail
	cfg.Mail = MailConfig{
		Region:           getEnv("MAIL_REGION", "ap-southeast-1"),
		From:             getEnv("MAIL_FROM", ""),
		ConfigurationSet: getEnv("MAIL_CONFIGURATION_SET", ""),
	}

	// Auth
	cfg.Auth.BcryptCost = getEnvInt("AUTH_BCRYPT_COST", 12)
	cfg.Auth.MinPasswordLength = getEnvInt("AUTH_MIN_PASSWORD_LENGTH", 6)

	// Durations
	var err error
	if cfg.Auth.AccessTTL, err = parseDurationEnv("AUTH_ACCESS_TTL", "24h"); err != nil {
		return nil, fmt.Errorf("invalid AUTH_ACCESS_TTL: %w", err)
	}
	if cfg.Auth.RenewalTTL, err = parseDurationEnv("AUTH_RENEWAL_TTL", "168h"); err != nil {
		return nil, fmt.Errorf("invalid AUTH_RENEWAL_TTL: %w", err)
	}
	if cfg.Auth.OTPTTL, err = parseDurationEnv("AUTH_OTP_TTL", "10m"); err != nil {
		return nil, fmt.Errorf("invalid AUTH_OTP_TTL: %w", err)
	}
	if cfg.Auth.ResetTTL, err = parseDurationEnv("AUTH_RESET_TTL", "10m"); err != nil {
		return nil, fmt.Errorf("invalid AUTH_RESET_TTL: %w", err)
	}
	if cfg.Auth.RecoveryLockTTL, err = parseDurationEnv("AUTH_RECOVERY_LOCK_TTL", "30s"); err != nil {
		return nil, fmt.Errorf("invalid AUTH_RECOVERY_LOCK_TTL: %w", err)
	}
	if cfg.Mail.Timeout, err = parseDurationEnv("MAIL_TIMEOUT", "10s"); err != nil {
		return nil, fmt.Errorf("invalid MAIL_TIMEOUT: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DB.Host == "" || c.DB.User == "" || c.DB.Name == "" {
		return errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set for authentication")
	}
	if c.Auth.BcryptCost < MinBcryptCost {
		return fmt.Errorf("AUTH_BCRYPT_COST must be >= %d", MinBcryptCost)
	}
	if c.Auth.MinPasswordLength < 1 {
		return errors.New("AUTH_MIN_PASSWORD_LENGTH must be positive")
	}
	if c.Auth.AccessTTL == 0 || c.Auth.RenewalTTL == 0 || c.Auth.OTPTTL == 0 || c.Auth.ResetTTL == 0 {
		return errors.New("auth lifetimes must be greater than zero")
	}
	if c.Auth.RenewalTTL < c.Auth.AccessTTL {
		return errors.New("AUTH_RENEWAL_TTL must not be shorter than AUTH_ACCESS_TTL")
	}
	if c.Mail.Timeout == 0 {
		return errors.New("MAIL_TIMEOUT must be greater than zero")
	}
	if c.Auth.RecoveryLockTTL == 0 {
		return errors.New("AUTH_RECOVERY_LOCK_TTL must be greater than zero")
	}
	if c.Auth.RecoveryLockTTL < c.Mail.Timeout+RecoveryLockHeadroom {
		return fmt.Errorf("AUTH_RECOVERY_LOCK_TTL must be at least MAIL_TIMEOUT + %s (%s)",
			RecoveryLockHeadroom, c.Mail.Timeout+RecoveryLockHeadroom)
	}
	return nil
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}
