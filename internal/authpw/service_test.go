package authpw

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
)

// mockUserStore is an in-memory UserStore keyed by id.
type mockUserStore struct {
	users map[string]store.User
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[string]store.User)}
}

func (m *mockUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	for _, user := range m.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (m *mockUserStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return store.User{}, sql.ErrNoRows
}

func (m *mockUserStore) CreateUser(ctx context.Context, user store.User) (store.User, error) {
	user.CreatedAt = time.Now()
	m.users[user.ID] = user
	return user, nil
}

func (m *mockUserStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string, mustChange bool) error {
	user, ok := m.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.PasswordHash = passwordHash
	user.MustChangePassword = mustChange
	m.users[userID] = user
	return nil
}

func (m *mockUserStore) SetTwoFactorSecret(ctx context.Context, userID, secret string) error {
	user := m.users[userID]
	user.TwoFactorSecret = secret
	m.users[userID] = user
	return nil
}

func (m *mockUserStore) EnableTwoFactor(ctx context.Context, userID string) error {
	user := m.users[userID]
	user.TwoFactorEnabled = true
	m.users[userID] = user
	return nil
}

func newTestService(users *mockUserStore) *Service {
	return NewService(users, "AlwaysHelper").WithCost(bcrypt.MinCost)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	users := newMockUserStore()
	svc := newTestService(users)

	t.Run("successful registration", func(t *testing.T) {
		user, err := svc.Register(ctx, RegisterRequest{Name: "Avery", Email: " Avery@Example.com ", Password: "secret1"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.ID == "" || user.Email != "avery@example.com" || user.Role != "user" {
			t.Fatalf("unexpected user: %+v", user)
		}
		if user.PasswordHash == "secret1" || !CheckPassword(user.PasswordHash, "secret1") {
			t.Fatal("expected bcrypt hash of the password")
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterRequest{Name: "Other", Email: "AVERY@example.com", Password: "secret1"})
		if !errors.Is(err, ErrEmailExists) {
			t.Fatalf("expected ErrEmailExists, got %v", err)
		}
	})

	t.Run("collects every problem", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterRequest{Email: "nope", Password: "123"})
		var validation *ValidationError
		if !errors.As(err, &validation) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if len(validation.Problems) != 3 {
			t.Fatalf("expected 3 problems, got %v", validation.Problems)
		}
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	users := newMockUserStore()
	svc := newTestService(users)
	if _, err := svc.Register(ctx, RegisterRequest{Name: "Avery", Email: "avery@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Login(ctx, "avery@example.com", "secret1"); err != nil {
		t.Fatalf("expected login to succeed, got %v", err)
	}
	if _, err := svc.Login(ctx, "avery@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := svc.Login(ctx, "ghost@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestAdminTwoFactorFlow(t *testing.T) {
	ctx := context.Background()
	users := newMockUserStore()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(users).WithClock(func() time.Time { return now })

	user, err := svc.Register(ctx, RegisterRequest{Name: "Root", Email: "root@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.VerifyAdmin(ctx, "root@example.com", "secret1"); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin for plain user, got %v", err)
	}

	user.Role = "admin"
	users.users[user.ID] = user

	if _, err := svc.AdminLogin(ctx, "root@example.com", "secret1", "123456"); !errors.Is(err, ErrTwoFactorNotConfigured) {
		t.Fatalf("expected ErrTwoFactorNotConfigured, got %v", err)
	}

	setup, err := svc.SetupTwoFactor(ctx, "root@example.com", "secret1")
	if err != nil {
		t.Fatalf("SetupTwoFactor() error = %v", err)
	}
	again, err := svc.SetupTwoFactor(ctx, "root@example.com", "secret1")
	if err != nil || again.Secret != setup.Secret {
		t.Fatalf("expected the stored secret to be reused, got %q, %v", again.Secret, err)
	}

	if _, err := svc.AdminLogin(ctx, "root@example.com", "secret1", "000000x"); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected ErrInvalidOTP, got %v", err)
	}

	code, err := totp.GenerateCode(setup.Secret, now)
	if err != nil {
		t.Fatalf("GenerateCode() error = %v", err)
	}
	admin, err := svc.AdminLogin(ctx, "root@example.com", "secret1", code)
	if err != nil {
		t.Fatalf("AdminLogin() error = %v", err)
	}
	if !admin.TwoFactorEnabled || !users.users[user.ID].TwoFactorEnabled {
		t.Fatal("expected two-factor to be marked enabled")
	}

	if _, err := svc.SetupTwoFactor(ctx, "root@example.com", "secret1"); !errors.Is(err, ErrTwoFactorEnabled) {
		t.Fatalf("expected ErrTwoFactorEnabled after enrolment, got %v", err)
	}
}

func TestChangePasswordClearsFlag(t *testing.T) {
	ctx := context.Background()
	users := newMockUserStore()
	svc := newTestService(users)
	user, _ := svc.Register(ctx, RegisterRequest{Name: "Emp", Email: "emp@example.com", Password: "secret1"})
	user.MustChangePassword = true
	users.users[user.ID] = user

	var validation *ValidationError
	if err := svc.ChangePassword(ctx, user.ID, "123"); !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError for short password, got %v", err)
	}
	if err := svc.ChangePassword(ctx, user.ID, "newsecret"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	updated := users.users[user.ID]
	if updated.MustChangePassword || !CheckPassword(updated.PasswordHash, "newsecret") {
		t.Fatalf("unexpected user after change: %+v", updated)
	}
}

func TestNewOneTimePassword(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		pw, err := NewOneTimePassword()
		if err != nil {
			t.Fatalf("NewOneTimePassword() error = %v", err)
		}
		if len(pw) != OneTimePasswordLength {
			t.Fatalf("expected %d chars, got %q", OneTimePasswordLength, pw)
		}
		if strings.ContainsAny(pw, "0O1lI") {
			t.Fatalf("password contains look-alike characters: %q", pw)
		}
		seen[pw] = true
	}
	if len(seen) < 2 {
		t.Fatal("expected random passwords")
	}
}

func TestValidEmail(t *testing.T) {
	cases := map[string]bool{
		"a@b.co":            true,
		"Name <a@b.co>":     false,
		"user@localhost":    false,
		"":                  false,
		"first.last@x.io":   true,
		"missing-at.sign.x": false,
	}
	for input, want := range cases {
		if got := ValidEmail(input); got != want {
			t.Errorf("ValidEmail(%q) = %v, want %v", input, got, want)
		}
	}
}
