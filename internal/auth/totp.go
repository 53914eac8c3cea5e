package auth

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"net/url"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTPSetup is what an admin needs to enrol an authenticator app.
type TOTPSetup struct {
	Secret    string
	URL       string
	QRDataURL string
}

// NewTOTPSetup generates a fresh base32 secret for account.
func NewTOTPSetup(issuer, account string) (TOTPSetup, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
	})
	if err != nil {
		return TOTPSetup{}, fmt.Errorf("generate totp secret: %w", err)
	}
	return setupFromKey(key)
}

// TOTPSetupFor rebuilds the enrolment data for an already stored secret.
func TOTPSetupFor(issuer, account, secret string) (TOTPSetup, error) {
	values := url.Values{}
	values.Set("secret", secret)
	values.Set("issuer", issuer)
	values.Set("period", "30")
	values.Set("digits", "6")
	values.Set("algorithm", "SHA1")
	raw := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + issuer + ":" + account,
		RawQuery: values.Encode(),
	}
	key, err := otp.NewKeyFromURL(raw.String())
	if err != nil {
		return TOTPSetup{}, fmt.Errorf("parse totp url: %w", err)
	}
	return setupFromKey(key)
}

// VerifyTOTP checks a six digit code allowing one period of clock skew.
func VerifyTOTP(secret, code string, now time.Time) bool {
	code = strings.TrimSpace(code)
	if secret == "" || code == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, now, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func setupFromKey(key *otp.Key) (TOTPSetup, error) {
	img, err := key.Image(200, 200)
	if err != nil {
		return TOTPSetup{}, fmt.Errorf("render totp qr: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return TOTPSetup{}, fmt.Errorf("encode totp qr: %w", err)
	}
	return TOTPSetup{
		Secret:    key.Secret(),
		URL:       key.URL(),
		QRDataURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}
