// Package authpw provides email/password accounts, admin two-factor login and
// one-time employee passwords.
package authpw

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/auth"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/rbac"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/util"
)

const MinPasswordLength = 6

var (
	ErrInvalidCredentials     = errors.New("invalid email or password")
	ErrEmailExists            = errors.New("email already registered")
	ErrNotAdmin               = errors.New("account is not an administrator")
	ErrTwoFactorEnabled       = errors.New("two-factor authentication is already enabled")
	ErrTwoFactorNotConfigured = errors.New("two-factor authentication is not configured")
	ErrInvalidOTP             = errors.New("invalid one-time code")
)

// ValidationError lists every problem found in a request.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

// UserStore is the part of the store the account service needs.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) (store.User, error)
	UpdateUserPassword(ctx context.Context, userID, passwordHash string, mustChange bool) error
	SetTwoFactorSecret(ctx context.Context, userID, secret string) error
	EnableTwoFactor(ctx context.Context, userID string) error
}

type Service struct {
	store  UserStore
	issuer string
	cost   int
	now    func() time.Time
}

func NewService(store UserStore, totpIssuer string) *Service {
	return &Service{
		store:  store,
		issuer: totpIssuer,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
}

// WithClock replaces the time source used for TOTP checks.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

type RegisterRequest struct {
	Name     string
	Email    string
	Password string
}

// Register creates a plain user account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (store.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	var problems []string
	if req.Name == "" {
		problems = append(problems, "name is required")
	}
	if !ValidEmail(req.Email) {
		problems = append(problems, "a valid email is required")
	}
	if len(req.Password) < MinPasswordLength {
		problems = append(problems, fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(problems) > 0 {
		return store.User{}, &ValidationError{Problems: problems}
	}

	if _, err := s.store.GetUserByEmail(ctx, req.Email); err == nil {
		return store.User{}, ErrEmailExists
	} else if !errors.Is(err, sql.ErrNoRows) {
		return store.User{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := s.HashPassword(req.Password)
	if err != nil {
		return store.User{}, err
	}
	user, err := s.store.CreateUser(ctx, store.User{
		ID:           util.NewID(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         string(rbac.RoleUser),
	})
	if err != nil {
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login checks email and password. Unknown email and wrong password are indistinguishable.
func (s *Service) Login(ctx context.Context, email, password string) (store.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return store.User{}, ErrInvalidCredentials
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.User{}, ErrInvalidCredentials
		}
		return store.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !CheckPassword(user.PasswordHash, password) {
		return store.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// VerifyAdmin is Login restricted to administrators.
func (s *Service) VerifyAdmin(ctx context.Context, email, password string) (store.User, error) {
	user, err := s.Login(ctx, email, password)
	if err != nil {
		return store.User{}, err
	}
	if rbac.Role(user.Role) != rbac.RoleAdmin {
		return store.User{}, ErrNotAdmin
	}
	return user, nil
}

// SetupTwoFactor returns the enrolment data for an admin, creating the secret
// on first use. Once a code has been accepted the secret is no longer shown.
func (s *Service) SetupTwoFactor(ctx context.Context, email, password string) (auth.TOTPSetup, error) {
	user, err := s.VerifyAdmin(ctx, email, password)
	if err != nil {
		return auth.TOTPSetup{}, err
	}
	if user.TwoFactorEnabled {
		return auth.TOTPSetup{}, ErrTwoFactorEnabled
	}
	if user.TwoFactorSecret != "" {
		return auth.TOTPSetupFor(s.issuer, user.Email, user.TwoFactorSecret)
	}
	setup, err := auth.NewTOTPSetup(s.issuer, user.Email)
	if err != nil {
		return auth.TOTPSetup{}, err
	}
	if err := s.store.SetTwoFactorSecret(ctx, user.ID, setup.Secret); err != nil {
		return auth.TOTPSetup{}, err
	}
	return setup, nil
}

// AdminLogin verifies admin credentials plus a TOTP code.
func (s *Service) AdminLogin(ctx context.Context, email, password, code string) (store.User, error) {
	user, err := s.VerifyAdmin(ctx, email, password)
	if err != nil {
		return store.User{}, err
	}
	if user.TwoFactorSecret == "" {
		return store.User{}, ErrTwoFactorNotConfigured
	}
	if !auth.VerifyTOTP(user.TwoFactorSecret, code, s.now()) {
		return store.User{}, ErrInvalidOTP
	}
	if !user.TwoFactorEnabled {
		if err := s.store.EnableTwoFactor(ctx, user.ID); err != nil {
			return store.User{}, err
		}
		user.TwoFactorEnabled = true
	}
	return user, nil
}

// ChangePassword sets a new password and clears the forced-change flag.
func (s *Service) ChangePassword(ctx context.Context, userID, newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return &ValidationError{Problems: []string{fmt.Sprintf("password must be at least %d characters", MinPasswordLength)}}
	}
	hash, err := s.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.store.UpdateUserPassword(ctx, userID, hash, false)
}

func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return hash != "" && bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidEmail accepts a bare address such as a@b.co.
func ValidEmail(value string) bool {
	addr, err := mail.ParseAddress(value)
	return err == nil && addr.Address == value && strings.Contains(value[strings.LastIndex(value, "@"):], ".")
}

const oneTimeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

// OneTimePasswordLength is the length of generated employee passwords.
const OneTimePasswordLength = 8

// NewOneTimePassword draws a random password without look-alike characters.
func NewOneTimePassword() (string, error) {
	out := make([]byte, OneTimePasswordLength)
	limit := big.NewInt(int64(len(oneTimeAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		out[i] = oneTimeAlphabet[n.Int64()]
	}
	return string(out), nil
}
