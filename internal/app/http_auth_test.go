package app

import (
	"context"
	"net/http"
	"testing"
)

func TestRegisterReturnsSession(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name":     "  Avery  ",
		"email":    "Avery@Example.test",
		"password": testPassword,
	})

	expectStatus(t, rr, http.StatusCreated)
	payload := decodeObject(t, rr)
	if token, _ := payload["token"].(string); token == "" {
		t.Fatalf("expected token")
	}
	if refresh, _ := payload["refreshToken"].(string); refresh == "" {
		t.Fatalf("expected refreshToken")
	}
	user, _ := payload["user"].(map[string]any)
	if user["name"] != "Avery" || user["email"] != "avery@example.test" {
		t.Fatalf("expected normalized user, got %v", user)
	}
	if user["organization"] != nil {
		t.Fatalf("expected no organization, got %v", user["organization"])
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "Avery", "avery@example.test", "", "user")

	rr := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Other", "email": "avery@example.test", "password": testPassword,
	})

	expectErrorCode(t, rr, http.StatusConflict, "EMAIL_EXISTS")
}

func TestRegisterValidatesInput(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "", "email": "not-an-email", "password": "123",
	})

	expectErrorCode(t, rr, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestRegisterRejectsInvalidBody(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/auth/register", "", `{"name":`)

	expectErrorCode(t, rr, http.StatusBadRequest, "INVALID_BODY")
}

func TestLoginChecksPassword(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "Avery", "avery@example.test", "", "user")

	rr := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email": "avery@example.test", "password": "wrong-password",
	})
	expectErrorCode(t, rr, http.StatusUnauthorized, "INVALID_CREDENTIALS")

	rr = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email": "avery@example.test", "password": testPassword,
	})
	expectStatus(t, rr, http.StatusOK)
	if token, _ := decodeObject(t, rr)["token"].(string); token == "" {
		t.Fatalf("expected token")
	}
}

func TestRefreshEndpoint(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "Avery", "avery@example.test", "", "user")
	session, err := env.service.issueSession(context.Background(), user)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}

	rr := env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]any{"refreshToken": session.RefreshToken})
	expectStatus(t, rr, http.StatusOK)

	rr = env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]any{"refreshToken": "bogus"})
	expectErrorCode(t, rr, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/tickets", "", nil)
	expectErrorCode(t, rr, http.StatusUnauthorized, "UNAUTHORIZED")

	rr = env.do(t, http.MethodGet, "/api/tickets", "not-a-jwt", nil)
	expectErrorCode(t, rr, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestLogoutInvalidatesToken(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "Avery", "avery@example.test", "", "user")
	token := env.token(t, user)

	rr := env.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	expectStatus(t, rr, http.StatusOK)

	rr = env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	expectErrorCode(t, rr, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestUserWithoutOrganizationIsGated(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "Avery", "avery@example.test", "", "user")
	token := env.token(t, user)

	rr := env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	expectStatus(t, rr, http.StatusOK)

	rr = env.do(t, http.MethodGet, "/api/tickets", token, nil)
	expectErrorCode(t, rr, http.StatusForbidden, "ORGANIZATION_REQUIRED")
}

func TestPasswordChangeGate(t *testing.T) {
	env := newTestEnv(t)
	org, _ := env.seedOrg(t, "acme")
	employee := env.seedUser(t, "Sam", "sam@acme.test", org.ID, "employee")
	if err := env.store.UpdateUserPassword(context.Background(), employee.ID, employee.PasswordHash, true); err != nil {
		t.Fatalf("flag password change: %v", err)
	}
	token := env.token(t, employee)

	rr := env.do(t, http.MethodGet, "/api/tickets", token, nil)
	expectErrorCode(t, rr, http.StatusForbidden, "PASSWORD_CHANGE_REQUIRED")

	rr = env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	expectStatus(t, rr, http.StatusOK)
	if flag := decodeObject(t, rr)["mustChangePassword"]; flag != true {
		t.Fatalf("expected mustChangePassword=true, got %v", flag)
	}

	rr = env.do(t, http.MethodPost, "/api/auth/change-password", token, map[string]any{"newPassword": "123"})
	expectErrorCode(t, rr, http.StatusUnprocessableEntity, "VALIDATION_ERROR")

	rr = env.do(t, http.MethodPost, "/api/auth/change-password", token, map[string]any{"newPassword": "a-new-secret"})
	expectStatus(t, rr, http.StatusOK)

	rr = env.do(t, http.MethodGet, "/api/tickets", token, nil)
	expectStatus(t, rr, http.StatusOK)
}

func TestGetUserHidesOtherOrganizations(t *testing.T) {
	env := newTestEnv(t)
	org, admin := env.seedOrg(t, "acme")
	colleague := env.seedUser(t, "Sam", "sam@acme.test", org.ID, "employee")
	_, outsider := env.seedOrg(t, "globex")
	token := env.token(t, admin)

	rr := env.do(t, http.MethodGet, "/api/auth/user/"+colleague.ID, token, nil)
	expectStatus(t, rr, http.StatusOK)
	if name := decodeObject(t, rr)["name"]; name != "Sam" {
		t.Fatalf("expected Sam, got %v", name)
	}

	rr = env.do(t, http.MethodGet, "/api/auth/user/"+outsider.ID, token, nil)
	expectErrorCode(t, rr, http.StatusNotFound, "NOT_FOUND")

	rr = env.do(t, http.MethodGet, "/api/auth/user/not-a-uuid", token, nil)
	expectErrorCode(t, rr, http.StatusNotFound, "NOT_FOUND")
}
