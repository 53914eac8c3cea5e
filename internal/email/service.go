// Package email sends outbound mail over SMTP.
package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"time"
)

var ErrNotConfigured = errors.New("email not configured")

// Config holds SMTP configuration. Port 465 means implicit TLS; any other
// port uses STARTTLS when the server offers it.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// sendFunc delivers an already composed message.
type sendFunc func(ctx context.Context, from string, to []string, body []byte) error

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
	now    func() time.Time
}

// NewService creates a new email service
func NewService(config Config) *Service {
	s := &Service{
		config: config,
		server: net.JoinHostPort(config.Host, config.Port),
		now:    time.Now,
	}
	if config.Username != "" {
		s.auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	s.send = s.deliver
	return s
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// From returns the sender mailbox address.
func (s *Service) From() string {
	return s.config.From
}

// Send composes msg and delivers it. It returns the Message-ID it assigned.
func (s *Service) Send(ctx context.Context, msg Message) (string, error) {
	if !s.IsConfigured() {
		return "", ErrNotConfigured
	}
	if len(msg.To) == 0 {
		return "", errors.New("email has no recipients")
	}
	body, messageID, err := Compose(s.config.FromName, s.config.From, msg, s.now())
	if err != nil {
		return "", err
	}
	if err := s.send(ctx, s.config.From, msg.To, body); err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}
	return messageID, nil
}

func (s *Service) deliver(ctx context.Context, from string, to []string, body []byte) error {
	if s.config.Port != "465" {
		return smtp.SendMail(s.server, s.auth, from, to, body)
	}

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: 30 * time.Second},
		Config:    &tls.Config{ServerName: s.config.Host, MinVersion: tls.VersionTLS12},
	}
	conn, err := dialer.DialContext(ctx, "tcp", s.server)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.server, err)
	}
	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if s.auth != nil {
		if err := client.Auth(s.auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// CredentialsData fills the employee invitation mail.
type CredentialsData struct {
	AppName          string
	OrganizationName string
	Email            string
	Password         string
}

// SendEmployeeCredentials mails the one-time password of a new employee.
func (s *Service) SendEmployeeCredentials(ctx context.Context, data CredentialsData) error {
	if data.AppName == "" {
		data.AppName = s.config.FromName
	}
	html, err := renderTemplate(credentialsEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render credentials template: %w", err)
	}
	text := fmt.Sprintf("You were added to %s.\n\nLogin: %s\nOne-time password: %s\n\nYou will be asked to choose a new password after signing in.\n",
		data.OrganizationName, data.Email, data.Password)
	_, err = s.Send(ctx, Message{
		To:      []string{data.Email},
		Subject: fmt.Sprintf("Your %s account", data.AppName),
		Text:    text,
		HTML:    html,
	})
	return err
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t := template.Must(template.New("email").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const credentialsEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Your {{.AppName}} account</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .secret { font-family: monospace; font-size: 18px; background: #f4f4f4; padding: 8px 12px; border-radius: 4px; }
        .warning { background: #fff3cd; padding: 12px; border-radius: 4px; margin: 20px 0; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <p>You were added to <strong>{{.OrganizationName}}</strong>.</p>

    <p>Login: {{.Email}}</p>
    <p>One-time password: <span class="secret">{{.Password}}</span></p>

    <div class="warning">
        <strong>Important:</strong> you will be asked to choose a new password after signing in.
    </div>
</body>
</html>`
