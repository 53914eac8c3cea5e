package app

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/authpw"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/email"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/rbac"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/util"
)

// RegisterOrganization creates a tenant with the caller as its admin and
// returns a session whose token carries the new organization.
func (s *Service) RegisterOrganization(ctx context.Context, session Session, name, orgEmail string) (map[string]any, error) {
	name = strings.TrimSpace(name)
	orgEmail = strings.ToLower(strings.TrimSpace(orgEmail))
	problems := map[string]string{}
	if name == "" {
		problems["orgName"] = "organization name is required"
	}
	if orgEmail == "" {
		problems["orgEmail"] = "organization email is required"
	} else if !authpw.ValidEmail(orgEmail) {
		problems["orgEmail"] = "organization email is invalid"
	}
	if len(problems) > 0 {
		return nil, validationFailed(problems)
	}

	taken, err := s.store.OrganizationTaken(ctx, name, orgEmail)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domainError(http.StatusConflict, "ORG_EXISTS", "An organization with this name or email already exists", nil)
	}

	org, err := s.store.CreateOrganization(ctx, store.Organization{ID: util.NewID(), Name: name, Email: orgEmail}, session.UserID)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("organization registered", zap.String("org_id", org.ID), zap.String("admin_id", user.ID))

	payload, err := s.sessionResponse(ctx, user)
	if err != nil {
		return nil, err
	}
	payload["orgId"] = org.ID
	payload["adminId"] = user.ID
	return payload, nil
}

func (s *Service) GetOrganization(ctx context.Context, session Session, orgID string) (map[string]any, error) {
	if session.OrgID != orgID {
		return nil, errNotFound()
	}
	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return s.organizationPayload(ctx, org)
}

func (s *Service) RenameOrganization(ctx context.Context, session Session, orgID, name string) (map[string]any, error) {
	if err := s.requireOrgAdmin(session, orgID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, validationFailed(map[string]string{"name": "name is required"})
	}
	org, err := s.store.RenameOrganization(ctx, orgID, name)
	if err != nil {
		return nil, err
	}
	return s.organizationPayload(ctx, org)
}

// AddEmployee binds an account to the organization. New accounts get a
// one-time password the employee must change on first sign-in; an existing
// account without an organization keeps its password. Members of another
// organization are refused.
func (s *Service) AddEmployee(ctx context.Context, session Session, orgID, address string) (map[string]any, error) {
	if err := s.requireOrgAdmin(session, orgID); err != nil {
		return nil, err
	}
	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" {
		return nil, validationFailed(map[string]string{"email": "email is required"})
	}
	if !authpw.ValidEmail(address) {
		return nil, validationFailed(map[string]string{"email": "email is invalid"})
	}

	existing, err := s.store.GetUserByEmail(ctx, address)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	if err == nil {
		switch existing.OrgID() {
		case orgID:
			return nil, domainError(http.StatusConflict, "EMPLOYEE_EXISTS", "This user is already an employee of the organization", nil)
		case "":
			if err := s.store.BindEmployee(ctx, existing.ID, orgID); err != nil {
				if isNotFound(err) {
					return nil, errMemberOfOtherOrganization()
				}
				return nil, err
			}
			return map[string]any{"email": address, "emailed": false}, nil
		default:
			return nil, errMemberOfOtherOrganization()
		}
	}

	password, err := authpw.NewOneTimePassword()
	if err != nil {
		return nil, err
	}
	hash, err := s.passwords.HashPassword(password)
	if err != nil {
		return nil, err
	}
	org := orgID
	if _, err := s.store.CreateUser(ctx, store.User{
		ID:                 util.NewID(),
		Name:               address,
		Email:              address,
		PasswordHash:       hash,
		Role:               string(rbac.RoleEmployee),
		OrganizationID:     &org,
		MustChangePassword: true,
	}); err != nil {
		return nil, err
	}

	emailed := false
	if s.mailer.IsConfigured() {
		err := s.mailer.SendEmployeeCredentials(ctx, email.CredentialsData{
			OrganizationName: session.OrgName,
			Email:            address,
			Password:         password,
		})
		if err != nil {
			s.logger.Warn("send employee credentials failed", zap.String("org_id", orgID), zap.String("email", address), zap.Error(err))
		} else {
			emailed = true
		}
	}

	return map[string]any{"email": address, "password": password, "emailed": emailed}, nil
}

func errMemberOfOtherOrganization() error {
	return domainError(http.StatusConflict, "USER_IN_OTHER_ORGANIZATION", "This user belongs to another organization", nil)
}

func (s *Service) ListEmployees(ctx context.Context, session Session, orgID string) ([]map[string]any, error) {
	if session.OrgID != orgID {
		return nil, errNotFound()
	}
	users, err := s.store.ListOrganizationUsers(ctx, orgID, string(rbac.RoleEmployee))
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(users))
	for _, user := range users {
		items = append(items, userSummary(user))
	}
	return items, nil
}

// requireOrgAdmin hides foreign organizations and rejects non-admin members.
func (s *Service) requireOrgAdmin(session Session, orgID string) error {
	if session.OrgID != orgID {
		return errNotFound()
	}
	if !s.Can(session.Role, rbac.ActionAdmin) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Organization admin required", nil)
	}
	return nil
}

func (s *Service) organizationPayload(ctx context.Context, org store.Organization) (map[string]any, error) {
	var admin any
	if org.AdminID != nil {
		user, err := s.store.GetUserByID(ctx, *org.AdminID)
		switch {
		case err == nil:
			admin = userSummary(user)
		case !isNotFound(err):
			return nil, err
		}
	}
	return map[string]any{
		"id":        org.ID,
		"name":      org.Name,
		"email":     org.Email,
		"admin":     admin,
		"createdAt": org.CreatedAt,
	}, nil
}
