package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/app"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/authpw"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/rbac"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/util"
)

// seedFile is the YAML layout read by the seed command:
//
//	organizations:
//	  - name: Acme
//	    email: office@acme.test
//	    admin: {name: Ada, email: ada@acme.test, password: secret123}
//	    employees:
//	      - {name: Robin, email: robin@acme.test, password: secret123}
//	    tickets:
//	      - {title: Printer jam, priority: high, assignee: robin@acme.test}
//	    articles:
//	      - {title: VPN, content: "Install the client."}
//
// Ticket entries use the same fields as POST /api/tickets. An assignee may be
// given by email.
type seedFile struct {
	Organizations []seedOrganization `yaml:"organizations"`
}

type seedOrganization struct {
	Name      string           `yaml:"name"`
	Email     string           `yaml:"email"`
	Admin     seedUser         `yaml:"admin"`
	Employees []seedUser       `yaml:"employees"`
	Tickets   []map[string]any `yaml:"tickets"`
	Articles  []seedArticle    `yaml:"articles"`
}

type seedUser struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type seedArticle struct {
	Title   string `yaml:"title"`
	Content string `yaml:"content"`
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create organizations, users, tickets and articles from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		data, err := loadSeed(f)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		w, err := buildWiring(cmd.Context())
		if err != nil {
			return err
		}
		defer w.close()
		return applySeed(cmd.Context(), w.store, w.service, data)
	},
}

func init() {
	seedCmd.Flags().String("file", "seed.yaml", "seed file")
	rootCmd.AddCommand(seedCmd)
}

func loadSeed(r io.Reader) (seedFile, error) {
	var data seedFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&data); err != nil && !errors.Is(err, io.EOF) {
		return seedFile{}, err
	}
	for i, org := range data.Organizations {
		if strings.TrimSpace(org.Name) == "" || strings.TrimSpace(org.Email) == "" {
			return seedFile{}, fmt.Errorf("organizations[%d]: name and email are required", i)
		}
		if strings.TrimSpace(org.Admin.Email) == "" {
			return seedFile{}, fmt.Errorf("organizations[%d]: admin email is required", i)
		}
	}
	return data, nil
}

// seedService is the part of the service the seed command drives.
type seedService interface {
	ActingAs(ctx context.Context, userID string) (app.Session, error)
	CreateTicket(ctx context.Context, session app.Session, input app.TicketInput) (map[string]any, error)
	CreateArticle(ctx context.Context, session app.Session, input app.ArticleInput) (map[string]any, error)
}

// applySeed is idempotent for organizations and users: existing rows are
// reused. Tickets and articles are always created.
func applySeed(ctx context.Context, st adminStore, svc seedService, data seedFile) error {
	for _, entry := range data.Organizations {
		org, admin, err := seedOrganizationAdmin(ctx, st, entry)
		if err != nil {
			return fmt.Errorf("organization %s: %w", entry.Name, err)
		}

		emails := map[string]string{strings.ToLower(admin.Email): admin.ID}
		for _, employee := range entry.Employees {
			user, err := seedAccount(ctx, st, employee, string(rbac.RoleEmployee))
			if err != nil {
				return fmt.Errorf("employee %s: %w", employee.Email, err)
			}
			if user.OrgID() != org.ID {
				if err := st.AssignUserOrganization(ctx, user.ID, org.ID, string(rbac.RoleEmployee)); err != nil {
					return err
				}
			}
			emails[strings.ToLower(user.Email)] = user.ID
		}

		session, err := svc.ActingAs(ctx, admin.ID)
		if err != nil {
			return err
		}
		for i, raw := range entry.Tickets {
			input, err := seedTicketInput(raw, emails)
			if err != nil {
				return fmt.Errorf("tickets[%d]: %w", i, err)
			}
			if _, err := svc.CreateTicket(ctx, session, input); err != nil {
				return fmt.Errorf("tickets[%d]: %w", i, err)
			}
		}
		for i, article := range entry.Articles {
			if _, err := svc.CreateArticle(ctx, session, app.ArticleInput{Title: article.Title, Content: article.Content}); err != nil {
				return fmt.Errorf("articles[%d]: %w", i, err)
			}
		}
		logger.Info("organization seeded",
			zap.String("org_id", org.ID),
			zap.String("name", org.Name),
			zap.Int("employees", len(entry.Employees)),
			zap.Int("tickets", len(entry.Tickets)),
			zap.Int("articles", len(entry.Articles)),
		)
	}
	return nil
}

func seedOrganizationAdmin(ctx context.Context, st adminStore, entry seedOrganization) (store.Organization, store.User, error) {
	admin, err := seedAccount(ctx, st, entry.Admin, string(rbac.RoleUser))
	if err != nil {
		return store.Organization{}, store.User{}, err
	}
	org, err := st.GetOrganizationByName(ctx, entry.Name)
	if isNoRows(err) {
		org, err = st.CreateOrganization(ctx, store.Organization{
			ID:    util.NewID(),
			Name:  strings.TrimSpace(entry.Name),
			Email: strings.ToLower(strings.TrimSpace(entry.Email)),
		}, admin.ID)
	}
	if err != nil {
		return store.Organization{}, store.User{}, err
	}
	admin, err = st.GetUserByID(ctx, admin.ID)
	return org, admin, err
}

// seedAccount returns the existing user for the email or creates one.
func seedAccount(ctx context.Context, st adminStore, entry seedUser, role string) (store.User, error) {
	address := strings.ToLower(strings.TrimSpace(entry.Email))
	if existing, err := st.GetUserByEmail(ctx, address); err == nil {
		return existing, nil
	} else if !isNoRows(err) {
		return store.User{}, err
	}
	if !authpw.ValidEmail(address) {
		return store.User{}, fmt.Errorf("invalid email %q", entry.Email)
	}
	password := entry.Password
	if password == "" {
		generated, err := authpw.NewOneTimePassword()
		if err != nil {
			return store.User{}, err
		}
		password = generated
		logger.Info("generated password", zap.String("email", address), zap.String("password", password))
	}
	hash, err := authpw.NewService(st, cfg.TOTPIssuer).HashPassword(password)
	if err != nil {
		return store.User{}, err
	}
	return st.CreateUser(ctx, store.User{
		ID:           util.NewID(),
		Name:         firstNonEmpty(strings.TrimSpace(entry.Name), address),
		Email:        address,
		PasswordHash: hash,
		Role:         role,
	})
}

// seedTicketInput maps a YAML ticket onto the API input, resolving an
// assignee email to the user id.
func seedTicketInput(raw map[string]any, emails map[string]string) (app.TicketInput, error) {
	if assignee, ok := raw["assignee"].(string); ok {
		if id, found := emails[strings.ToLower(strings.TrimSpace(assignee))]; found {
			raw["assignee"] = id
		}
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return app.TicketInput{}, err
	}
	var input app.TicketInput
	if err := json.Unmarshal(payload, &input); err != nil {
		return app.TicketInput{}, err
	}
	return input, nil
}
