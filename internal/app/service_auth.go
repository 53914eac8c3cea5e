package app

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/authpw"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/util"
)

// authError turns credential failures into their HTTP shape.
func authError(err error) error {
	var validation *authpw.ValidationError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &validation):
		message := "Validation failed"
		if len(validation.Problems) > 0 {
			message = validation.Problems[0]
		}
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, validation.Problems)
	case errors.Is(err, authpw.ErrEmailExists):
		return domainError(http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	case errors.Is(err, authpw.ErrNotAdmin):
		return domainError(http.StatusForbidden, "NOT_ADMIN", "Administrator account required", nil)
	case errors.Is(err, authpw.ErrTwoFactorEnabled):
		return domainError(http.StatusConflict, "TWO_FACTOR_ENABLED", "Two-factor authentication is already enabled", nil)
	case errors.Is(err, authpw.ErrTwoFactorNotConfigured):
		return domainError(http.StatusBadRequest, "TWO_FACTOR_NOT_CONFIGURED", "Two-factor authentication is not configured", nil)
	case errors.Is(err, authpw.ErrInvalidOTP):
		return domainError(http.StatusUnauthorized, "INVALID_OTP", "Invalid one-time code", nil)
	default:
		return err
	}
}

func (s *Service) Register(ctx context.Context, name, email, password string) (map[string]any, error) {
	user, err := s.passwords.Register(ctx, authpw.RegisterRequest{Name: name, Email: email, Password: password})
	if err != nil {
		return nil, authError(err)
	}
	return s.sessionResponse(ctx, user)
}

func (s *Service) Login(ctx context.Context, email, password string) (map[string]any, error) {
	user, err := s.passwords.Login(ctx, email, password)
	if err != nil {
		return nil, authError(err)
	}
	return s.sessionResponse(ctx, user)
}

func (s *Service) AdminVerify(ctx context.Context, email, password string) (map[string]any, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, validationFailed(map[string]string{"email": "email and password are required"})
	}
	user, err := s.passwords.VerifyAdmin(ctx, email, password)
	if err != nil {
		return nil, authError(err)
	}
	return map[string]any{"message": "Credentials verified", "email": user.Email}, nil
}

func (s *Service) AdminTwoFactorSetup(ctx context.Context, email, password string) (map[string]any, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, validationFailed(map[string]string{"email": "email and password are required"})
	}
	setup, err := s.passwords.SetupTwoFactor(ctx, email, password)
	if err != nil {
		return nil, authError(err)
	}
	return map[string]any{
		"secret":     setup.Secret,
		"otpauthUrl": setup.URL,
		"qr":         setup.QRDataURL,
	}, nil
}

func (s *Service) AdminLogin(ctx context.Context, email, password, otp string) (map[string]any, error) {
	problems := map[string]string{}
	if strings.TrimSpace(email) == "" {
		problems["email"] = "email is required"
	}
	if password == "" {
		problems["password"] = "password is required"
	}
	if strings.TrimSpace(otp) == "" {
		problems["otp"] = "otp is required"
	}
	if len(problems) > 0 {
		return nil, validationFailed(problems)
	}
	user, err := s.passwords.AdminLogin(ctx, email, password, strings.TrimSpace(otp))
	if err != nil {
		return nil, authError(err)
	}
	return s.sessionResponse(ctx, user)
}

func (s *Service) RefreshResponse(ctx context.Context, refreshToken string) (map[string]any, error) {
	session, err := s.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return map[string]any{"token": session.Token, "refreshToken": session.RefreshToken}, nil
}

func (s *Service) Me(ctx context.Context, session Session) (map[string]any, error) {
	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	return userPayload(user), nil
}

// GetUser returns a user of the caller's organization.
func (s *Service) GetUser(ctx context.Context, session Session, userID string) (map[string]any, error) {
	if !session.HasOrganization() {
		return nil, errOrganizationRequired()
	}
	if !util.IsID(userID) {
		return nil, errNotFound()
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, errNotFound()
		}
		return nil, err
	}
	if user.OrgID() != session.OrgID {
		return nil, errNotFound()
	}
	return userPayload(user), nil
}

func (s *Service) ChangePassword(ctx context.Context, session Session, newPassword string) (map[string]any, error) {
	if err := s.passwords.ChangePassword(ctx, session.UserID, newPassword); err != nil {
		return nil, authError(err)
	}
	return map[string]any{"message": "Password changed"}, nil
}

func (s *Service) sessionResponse(ctx context.Context, user store.User) (map[string]any, error) {
	session, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"token":        session.Token,
		"refreshToken": session.RefreshToken,
		"user":         userPayload(user),
	}, nil
}

func errOrganizationRequired() *DomainError {
	return domainError(http.StatusForbidden, "ORGANIZATION_REQUIRED", "Join or register an organization first", nil)
}
