package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/authpw"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/blob"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/config"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/email"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/export"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/gitrepo"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/search"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/util"
)

const testPassword = "secret123"

type fakeExporter struct {
	ticket  export.Ticket
	article export.Article
	err     error
}

func (f *fakeExporter) Ticket(_ context.Context, t export.Ticket, format export.Format) (*export.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.ticket = t
	return &export.Result{Data: []byte("ticket " + t.Key), Filename: t.Key + "." + string(format), MimeType: "application/octet-stream"}, nil
}

func (f *fakeExporter) Article(_ context.Context, a export.Article, format export.Format) (*export.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.article = a
	return &export.Result{Data: []byte(a.Content), Filename: "article." + string(format), MimeType: "text/html; charset=utf-8"}, nil
}

type fakeMailer struct {
	mu          sync.Mutex
	configured  bool
	sendErr     error
	sent        []email.Message
	credentials []email.CredentialsData
}

func (f *fakeMailer) IsConfigured() bool {
	return f.configured
}

func (f *fakeMailer) Send(_ context.Context, msg email.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, msg)
	return "sent-" + util.NewID() + "@helpdesk.test", nil
}

func (f *fakeMailer) SendEmployeeCredentials(_ context.Context, data email.CredentialsData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credentials = append(f.credentials, data)
	return nil
}

type testEnv struct {
	store    *fakeStore
	service  *Service
	server   *HTTPServer
	mailer   *fakeMailer
	exporter *fakeExporter
}

func newTestService(t *testing.T, fs *fakeStore) *Service {
	t.Helper()
	objects, err := blob.NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("blob dir: %v", err)
	}
	return &Service{
		cfg: config.Config{
			JWTSecret:  "test-secret",
			AccessTTL:  time.Hour,
			RefreshTTL: 24 * time.Hour,
		},
		store:     fs,
		sessions:  fs,
		passwords: authpw.NewService(fs, "Helpdesk Test").WithCost(bcrypt.MinCost),
		search:    search.NewService(nil, nil, nil),
		history:   gitrepo.New(t.TempDir()),
		exporter:  &fakeExporter{},
		objects:   objects,
		files:     blob.NewAttacher(objects, fs),
		mailer:    &fakeMailer{},
		logger:    zap.NewNop(),
		now:       time.Now,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	fs := newFakeStore()
	svc := newTestService(t, fs)
	mailer := &fakeMailer{configured: true}
	exporter := &fakeExporter{}
	svc.mailer = mailer
	svc.exporter = exporter
	return &testEnv{
		store:    fs,
		service:  svc,
		server:   NewHTTPServer(svc, "*", 0, zap.NewNop()),
		mailer:   mailer,
		exporter: exporter,
	}
}

// seedUser stores an account with testPassword. An empty orgID leaves the
// user without a tenant.
func (e *testEnv) seedUser(t *testing.T, name, address, orgID, role string) store.User {
	t.Helper()
	hash, err := e.service.passwords.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := store.User{ID: util.NewID(), Name: name, Email: address, PasswordHash: hash, Role: role}
	if orgID != "" {
		org := orgID
		user.OrganizationID = &org
	}
	saved, err := e.store.CreateUser(context.Background(), user)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return saved
}

// seedOrg creates an organization with an admin and returns both.
func (e *testEnv) seedOrg(t *testing.T, name string) (store.Organization, store.User) {
	t.Helper()
	admin := e.seedUser(t, name+" Admin", util.NewID()[:8]+"@"+name+".test", "", "user")
	org, err := e.store.CreateOrganization(context.Background(), store.Organization{ID: util.NewID(), Name: name, Email: "office@" + name + ".test"}, admin.ID)
	if err != nil {
		t.Fatalf("create organization: %v", err)
	}
	admin, err = e.store.GetUserByID(context.Background(), admin.ID)
	if err != nil {
		t.Fatalf("reload admin: %v", err)
	}
	return org, admin
}

func (e *testEnv) token(t *testing.T, user store.User) string {
	t.Helper()
	session, err := e.service.issueSession(context.Background(), user)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	return session.Token
}

func (e *testEnv) session(t *testing.T, user store.User) Session {
	t.Helper()
	session, err := e.service.SessionFromToken(context.Background(), e.token(t, user))
	if err != nil {
		t.Fatalf("session from token: %v", err)
	}
	return session
}

// do sends body as JSON unless it is an io.Reader, which is passed through.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch value := body.(type) {
	case nil:
	case io.Reader:
		reader = value
	case string:
		reader = bytes.NewBufferString(value)
	default:
		raw, err := json.Marshal(value)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rr, req)
	return rr
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d body=%s", status, rr.Code, rr.Body.String())
	}
}

func decodeObject(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
	return payload
}

func decodeList(t *testing.T, rr *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var payload []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
	return payload
}

func expectErrorCode(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	expectStatus(t, rr, status)
	payload := decodeObject(t, rr)
	if payload["code"] != code {
		t.Fatalf("expected code %s, got %v", code, payload["code"])
	}
}

func TestSessionFromTokenReloadsUser(t *testing.T) {
	env := newTestEnv(t)
	org, admin := env.seedOrg(t, "acme")
	token := env.token(t, admin)

	if err := env.store.UpdateUserPassword(context.Background(), admin.ID, admin.PasswordHash, true); err != nil {
		t.Fatalf("update password: %v", err)
	}

	session, err := env.service.SessionFromToken(context.Background(), token)
	if err != nil {
		t.Fatalf("session from token: %v", err)
	}
	if session.OrgID != org.ID || session.OrgName != "acme" {
		t.Fatalf("expected org acme, got %q %q", session.OrgID, session.OrgName)
	}
	if session.Role != "admin" {
		t.Fatalf("expected admin role, got %q", session.Role)
	}
	if !session.MustChangePassword {
		t.Fatalf("expected the password-change flag to be reloaded")
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "Robin", "robin@example.test", "", "user")
	first, err := env.service.issueSession(context.Background(), user)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}

	second, err := env.service.Refresh(context.Background(), first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatalf("expected a new refresh token")
	}

	_, err = env.service.Refresh(context.Background(), first.RefreshToken)
	status, code, _, _ := mapError(err)
	if status != http.StatusUnauthorized || code != "UNAUTHORIZED" {
		t.Fatalf("expected reused refresh token to be rejected, got %d %s", status, code)
	}
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "Robin", "robin@example.test", "", "user")
	session := env.session(t, user)

	if err := env.service.Logout(context.Background(), session, ""); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := env.service.SessionFromToken(context.Background(), session.Token); err == nil {
		t.Fatalf("expected revoked token to be rejected")
	}
}
