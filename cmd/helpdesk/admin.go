package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/authpw"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/rbac"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/util"
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account unless the email is taken",
	RunE: func(cmd *cobra.Command, args []string) error {
		address, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		name, _ := cmd.Flags().GetString("name")
		return withStore(cmd.Context(), func(st *store.PostgresStore) error {
			user, created, err := createAdmin(cmd.Context(), st, name, address, password)
			if err != nil {
				return err
			}
			if !created {
				fmt.Fprintln(cmd.OutOrStdout(), "Admin already exists:")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Admin created:")
			}
			printUser(cmd.OutOrStdout(), user)
			return nil
		})
	},
}

var checkAdminCmd = &cobra.Command{
	Use:   "check-admin",
	Short: "Show an administrator account and optionally verify its password",
	RunE: func(cmd *cobra.Command, args []string) error {
		address, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		return withStore(cmd.Context(), func(st *store.PostgresStore) error {
			user, err := st.GetUserByEmail(cmd.Context(), strings.ToLower(strings.TrimSpace(address)))
			if err != nil {
				return fmt.Errorf("admin %s not found: %w", address, err)
			}
			out := cmd.OutOrStdout()
			printUser(out, user)
			fmt.Fprintf(out, "2FA secret: %t\n", user.TwoFactorSecret != "")
			fmt.Fprintf(out, "2FA enabled: %t\n", user.TwoFactorEnabled)
			if password != "" {
				fmt.Fprintf(out, "Password matches: %t\n", authpw.CheckPassword(user.PasswordHash, password))
			}
			return nil
		})
	},
}

var assignOrgCmd = &cobra.Command{
	Use:   "assign-org",
	Short: "Bind users to an organization, creating it if needed",
	RunE: func(cmd *cobra.Command, args []string) error {
		orgName, _ := cmd.Flags().GetString("org")
		orgEmail, _ := cmd.Flags().GetString("org-email")
		emails, _ := cmd.Flags().GetStringSlice("emails")
		return withStore(cmd.Context(), func(st *store.PostgresStore) error {
			org, assigned, err := assignOrganization(cmd.Context(), st, orgName, orgEmail, emails)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Organization %s (%s): %d user(s) updated\n", org.Name, org.ID, assigned)
			return nil
		})
	},
}

func init() {
	createAdminCmd.Flags().String("email", "admin@test.com", "admin email")
	createAdminCmd.Flags().String("password", "", "admin password")
	createAdminCmd.Flags().String("name", "Admin", "display name")
	_ = createAdminCmd.MarkFlagRequired("password")

	checkAdminCmd.Flags().String("email", "admin@test.com", "admin email")
	checkAdminCmd.Flags().String("password", "", "password to verify")

	assignOrgCmd.Flags().String("org", "", "organization name")
	assignOrgCmd.Flags().String("org-email", "", "contact email, used when the organization has to be created")
	assignOrgCmd.Flags().StringSlice("emails", nil, "comma-separated user emails")
	_ = assignOrgCmd.MarkFlagRequired("org")
	_ = assignOrgCmd.MarkFlagRequired("emails")

	rootCmd.AddCommand(createAdminCmd, checkAdminCmd, assignOrgCmd)
}

// withStore opens a migrated database for the duration of fn.
func withStore(ctx context.Context, fn func(st *store.PostgresStore) error) error {
	db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(store.NewPostgresStore(db))
}

// adminStore is what the account commands need from the database.
type adminStore interface {
	authpw.UserStore
	AssignUserOrganization(ctx context.Context, userID, orgID, role string) error
	GetOrganizationByName(ctx context.Context, name string) (store.Organization, error)
	CreateOrganization(ctx context.Context, org store.Organization, adminID string) (store.Organization, error)
}

// createAdmin returns the existing account when the email is taken.
func createAdmin(ctx context.Context, st adminStore, name, address, password string) (store.User, bool, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	if !authpw.ValidEmail(address) {
		return store.User{}, false, fmt.Errorf("invalid email %q", address)
	}
	if existing, err := st.GetUserByEmail(ctx, address); err == nil {
		return existing, false, nil
	} else if !isNoRows(err) {
		return store.User{}, false, err
	}
	if len(password) < authpw.MinPasswordLength {
		return store.User{}, false, fmt.Errorf("password must be at least %d characters", authpw.MinPasswordLength)
	}

	hash, err := authpw.NewService(st, cfg.TOTPIssuer).HashPassword(password)
	if err != nil {
		return store.User{}, false, err
	}
	user, err := st.CreateUser(ctx, store.User{
		ID:           util.NewID(),
		Name:         firstNonEmpty(strings.TrimSpace(name), "Admin"),
		Email:        address,
		PasswordHash: hash,
		Role:         string(rbac.RoleAdmin),
	})
	if err != nil {
		return store.User{}, false, err
	}
	logger.Info("admin created", zap.String("user_id", user.ID), zap.String("email", user.Email))
	return user, true, nil
}

// assignOrganization keeps each user's role and only changes the tenant.
// Unknown emails are logged and skipped.
func assignOrganization(ctx context.Context, st adminStore, orgName, orgEmail string, emails []string) (store.Organization, int, error) {
	orgName = strings.TrimSpace(orgName)
	if orgName == "" {
		return store.Organization{}, 0, errors.New("organization name is required")
	}
	org, err := st.GetOrganizationByName(ctx, orgName)
	if isNoRows(err) {
		orgEmail = strings.ToLower(strings.TrimSpace(orgEmail))
		if !authpw.ValidEmail(orgEmail) {
			return store.Organization{}, 0, fmt.Errorf("organization %q does not exist; pass --org-email to create it", orgName)
		}
		org, err = st.CreateOrganization(ctx, store.Organization{ID: util.NewID(), Name: orgName, Email: orgEmail}, "")
		if err == nil {
			logger.Info("organization created", zap.String("org_id", org.ID), zap.String("name", org.Name))
		}
	}
	if err != nil {
		return store.Organization{}, 0, err
	}

	assigned := 0
	for _, address := range emails {
		address = strings.ToLower(strings.TrimSpace(address))
		if address == "" {
			continue
		}
		user, err := st.GetUserByEmail(ctx, address)
		if isNoRows(err) {
			logger.Warn("user not found", zap.String("email", address))
			continue
		}
		if err != nil {
			return org, assigned, err
		}
		if err := st.AssignUserOrganization(ctx, user.ID, org.ID, string(rbac.Normalize(user.Role))); err != nil {
			return org, assigned, err
		}
		assigned++
	}
	return org, assigned, nil
}

func printUser(out io.Writer, user store.User) {
	fmt.Fprintf(out, "ID: %s\n", user.ID)
	fmt.Fprintf(out, "Email: %s\n", user.Email)
	fmt.Fprintf(out, "Name: %s\n", user.Name)
	fmt.Fprintf(out, "Role: %s\n", user.Role)
	if user.OrganizationID != nil {
		fmt.Fprintf(out, "Organization: %s\n", *user.OrganizationID)
	}
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
