package app

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/health", "", nil)

	expectStatus(t, rr, http.StatusOK)
	if ok := decodeObject(t, rr)["ok"]; ok != true {
		t.Errorf("expected ok=true, got %v", ok)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Errorf("expected X-Request-ID header")
	}
}

func TestReadyEndpoint_Success(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/ready", "", nil)

	expectStatus(t, rr, http.StatusOK)
	response := decodeObject(t, rr)
	if status := response["status"]; status != "ready" {
		t.Errorf("expected status=ready, got %v", status)
	}
	checks, ok := response["checks"].(map[string]any)
	if !ok {
		t.Fatalf("expected checks object, got %v", response["checks"])
	}
	dbCheck, ok := checks["database"].(map[string]any)
	if !ok {
		t.Fatalf("expected database check, got %v", checks["database"])
	}
	if dbCheck["status"] != "ok" {
		t.Errorf("expected database status=ok, got %v", dbCheck["status"])
	}
}

func TestReadyEndpoint_DatabaseFailure(t *testing.T) {
	env := newTestEnv(t)
	env.store.pingFn = func(context.Context) error {
		return errors.New("connection refused")
	}

	rr := env.do(t, http.MethodGet, "/api/ready", "", nil)

	expectStatus(t, rr, http.StatusServiceUnavailable)
	response := decodeObject(t, rr)
	if ok := response["ok"]; ok != false {
		t.Errorf("expected ok=false, got %v", ok)
	}
	if status := response["status"]; status != "not_ready" {
		t.Errorf("expected status=not_ready, got %v", status)
	}
	checks, _ := response["checks"].(map[string]any)
	dbCheck, _ := checks["database"].(map[string]any)
	if dbCheck["status"] != "error" || dbCheck["error"] != "connection refused" {
		t.Errorf("expected database error, got %v", dbCheck)
	}
}

func TestPreflightReturnsNoContent(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodOptions, "/api/tickets", "", nil)

	expectStatus(t, rr, http.StatusNoContent)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected CORS origin *, got %q", got)
	}
}

func TestUnknownPathReturnsNotFound(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/nope", "", nil)

	expectErrorCode(t, rr, http.StatusNotFound, "NOT_FOUND")
}
