package util

import (
	"strings"
	"testing"
)

func TestNewIDIsUUID(t *testing.T) {
	id := NewID()
	if !IsID(id) {
		t.Fatalf("expected uuid, got %q", id)
	}
	if NewID() == id {
		t.Fatalf("expected distinct ids")
	}
}

func TestNewTokenPrefix(t *testing.T) {
	token := NewToken("rft")
	if !strings.HasPrefix(token, "rft_") {
		t.Fatalf("expected rft_ prefix, got %q", token)
	}
	if len(strings.TrimPrefix(token, "rft_")) != 48 {
		t.Fatalf("expected 48 hex chars, got %q", token)
	}
	if strings.Contains(NewToken(""), "_") {
		t.Fatalf("expected bare token without prefix")
	}
}

func TestIsIDRejectsTicketKeys(t *testing.T) {
	if IsID("ABC-12345") {
		t.Fatalf("ticket key must not parse as id")
	}
}
