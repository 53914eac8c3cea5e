package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

func TestTOTPRoundTrip(t *testing.T) {
	setup, err := NewTOTPSetup("AlwaysHelper", "admin@example.com")
	if err != nil {
		t.Fatalf("NewTOTPSetup() error = %v", err)
	}
	if setup.Secret == "" || !strings.HasPrefix(setup.URL, "otpauth://totp/") {
		t.Fatalf("unexpected setup: %+v", setup)
	}
	if !strings.HasPrefix(setup.QRDataURL, "data:image/png;base64,") {
		t.Fatalf("expected png data url, got %q", setup.QRDataURL[:32])
	}

	now := time.Now()
	code, err := totp.GenerateCode(setup.Secret, now)
	if err != nil {
		t.Fatalf("GenerateCode() error = %v", err)
	}
	if !VerifyTOTP(setup.Secret, code, now) {
		t.Fatal("expected current code to verify")
	}
	if !VerifyTOTP(setup.Secret, code, now.Add(30*time.Second)) {
		t.Fatal("expected one step of skew to be accepted")
	}
	if VerifyTOTP(setup.Secret, code, now.Add(5*time.Minute)) {
		t.Fatal("expected stale code to be rejected")
	}
	if VerifyTOTP("", code, now) || VerifyTOTP(setup.Secret, "", now) {
		t.Fatal("expected blank inputs to be rejected")
	}
}

func TestTOTPSetupForStoredSecret(t *testing.T) {
	first, err := NewTOTPSetup("AlwaysHelper", "admin@example.com")
	if err != nil {
		t.Fatalf("NewTOTPSetup() error = %v", err)
	}
	again, err := TOTPSetupFor("AlwaysHelper", "admin@example.com", first.Secret)
	if err != nil {
		t.Fatalf("TOTPSetupFor() error = %v", err)
	}
	if again.Secret != first.Secret {
		t.Fatalf("expected stored secret to be preserved, got %q", again.Secret)
	}
	if !strings.Contains(again.URL, "issuer=AlwaysHelper") {
		t.Fatalf("expected issuer in url, got %q", again.URL)
	}
}
