package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/GTDGit/catering_api/internal/config"
	"github.com/GTDGit/catering_api/internal/database"
	"github.com/GTDGit/catering_api/internal/models"
	"github.com/GTDGit/catering_api/internal/repository"
	"github.com/GTDGit/catering_api/internal/service"
)

// adminService is the part of service.AdminAuthService the CLI drives.
type adminService interface {
	CreateAdmin(ctx context.Context, in service.CreateAdminInput) (*models.AdminUser, error)
	SetActive(ctx context.Context, email string, active bool) (*models.AdminUser, error)
	GetByEmail(ctx context.Context, email string) (*models.AdminUser, error)
	ListAdmins(ctx context.Context) ([]models.AdminUser, error)
}

type app struct {
	svc          adminService
	db           *sqlx.DB
	out          io.Writer
	readPassword func(prompt string) (string, error)
}

// connect loads configuration and opens the database, applying migrations.
func (a *app) connect() error {
	if a.svc != nil {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	db, err := database.Connect(&cfg.DB)
	if err != nil {
		return err
	}
	if err := database.RunMigrations(db.DB, cfg.DB.MigrationsPath); err != nil {
		db.Close()
		return err
	}
	a.db = db

	repo := repository.NewAdminUserRepository(db)
	sessions := service.NewSessionManager(cfg.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RenewalTTL)
	a.svc = service.NewAdminAuthService(
		repo,
		service.NewBcryptHasher(cfg.Auth.BcryptCost),
		service.PasswordPolicy{MinLength: cfg.Auth.MinPasswordLength},
		sessions,
	)
	return nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adminctl",
		Short: "Manage catering admin accounts",
		Long: `adminctl provisions administrator accounts for the catering admin panel.

It reads the same environment (or .env file) as the API server and talks to
the database directly. Accounts cannot be created through the HTTP API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.connect()
		},
	}

	cmd.AddCommand(newCreateCmd(a))
	cmd.AddCommand(newSetActiveCmd(a, "activate", true))
	cmd.AddCommand(newSetActiveCmd(a, "deactivate", false))
	cmd.AddCommand(newShowCmd(a))
	cmd.AddCommand(newListCmd(a))

	return cmd
}

// ---------- create ----------

func newCreateCmd(a *app) *cobra.Command {
	var (
		in          service.CreateAdminInput
		role        string
		permissions []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new admin account",
		Example: `  adminctl create --email chef@example.com --username chef --name "Head Chef"
  adminctl create --email root@example.com --username root --role superadmin --password s3cret!`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Role = models.AdminRole(role)
			if cmd.Flags().Changed("permissions") {
				perms, err := parsePermissions(permissions)
				if err != nil {
					return err
				}
				in.Permissions = &perms
			}

			if in.Password == "" {
				pw, err := a.readPassword("Password: ")
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				confirm, err := a.readPassword("Confirm password: ")
				if err != nil {
					return fmt.Errorf("failed to read confirmation: %w", err)
				}
				if pw != confirm {
					return errors.New("passwords do not match")
				}
				in.Password = pw
			}

			user, err := a.svc.CreateAdmin(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created admin %q (id %d, role %s)\n", user.Email, user.ID, user.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&in.Username, "username", "", "Login username (required)")
	cmd.Flags().StringVar(&in.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&role, "role", string(models.RoleAdmin), "Role: superadmin, admin or content_manager")
	cmd.Flags().StringVar(&in.Password, "password", "", "Password (prompted if omitted)")
	cmd.Flags().StringSliceVar(&permissions, "permissions", nil, "Permission flags to grant, replacing the defaults (e.g. manageGallery,manageMedia)")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("username")

	return cmd
}

func parsePermissions(names []string) (models.AdminPermissions, error) {
	var perms models.AdminPermissions
	for _, name := range names {
		switch models.Permission(strings.TrimSpace(name)) {
		case models.PermManageFestivals:
			perms.ManageFestivals = true
		case models.PermManageFoodItems:
			perms.ManageFoodItems = true
		case models.PermManageGallery:
			perms.ManageGallery = true
		case models.PermManageInquiries:
			perms.ManageInquiries = true
		case models.PermManageMedia:
			perms.ManageMedia = true
		case models.PermManageUsers:
			perms.ManageUsers = true
		case "":
		default:
			return perms, fmt.Errorf("unknown permission %q", name)
		}
	}
	return perms, nil
}

// ---------- activate / deactivate ----------

func newSetActiveCmd(a *app, use string, active bool) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   use,
		Short: strings.ToUpper(use[:1]) + use[1:] + " an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.svc.SetActive(cmd.Context(), email, active)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Admin %q is now %s\n", user.Email, activeLabel(user.IsActive))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.MarkFlagRequired("email")
	return cmd
}

// ---------- show ----------

func newShowCmd(a *app) *cobra.Command {
	var (
		email      string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.svc.GetByEmail(cmd.Context(), email)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(user)
			}

			fmt.Fprintf(a.out, "ID:          %d\n", user.ID)
			fmt.Fprintf(a.out, "Email:       %s\n", user.Email)
			fmt.Fprintf(a.out, "Username:    %s\n", user.Username)
			fmt.Fprintf(a.out, "Name:        %s\n", user.Name)
			fmt.Fprintf(a.out, "Role:        %s\n", user.Role)
			fmt.Fprintf(a.out, "Status:      %s\n", activeLabel(user.IsActive))
			fmt.Fprintf(a.out, "Permissions: %s\n", strings.Join(grantedPermissions(user), ", "))
			fmt.Fprintf(a.out, "Last login:  %s\n", formatTime(user.LastLoginAt))
			fmt.Fprintf(a.out, "Recovery:    %s\n", user.Recovery().Phase)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.MarkFlagRequired("email")
	return cmd
}

// ---------- list ----------

func newListCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all admin accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			admins, err := a.svc.ListAdmins(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(admins)
			}

			if len(admins) == 0 {
				fmt.Fprintln(a.out, "No admin accounts. Use 'adminctl create' to create one.")
				return nil
			}

			fmt.Fprintf(a.out, "%-6s %-30s %-16s %-16s %-8s\n", "ID", "EMAIL", "USERNAME", "ROLE", "STATUS")
			for _, u := range admins {
				fmt.Fprintf(a.out, "%-6d %-30s %-16s %-16s %-8s\n", u.ID, u.Email, u.Username, u.Role, activeLabel(u.IsActive))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// ---------- helpers ----------

func activeLabel(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}

func grantedPermissions(u *models.AdminUser) []string {
	all := []models.Permission{
		models.PermManageFestivals,
		models.PermManageFoodItems,
		models.PermManageGallery,
		models.PermManageInquiries,
		models.PermManageMedia,
		models.PermManageUsers,
	}
	var granted []string
	for _, p := range all {
		if u.Can(p) {
			granted = append(granted, string(p))
		}
	}
	if len(granted) == 0 {
		return []string{"(none)"}
	}
	return granted
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}

// promptPassword reads a password without echo when stdin is a terminal,
// otherwise a single line from stdin.
func promptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := stdinReader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

var stdinReader = bufio.NewReader(os.Stdin)
