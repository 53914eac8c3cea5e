package mailbridge

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// RawMessage is an unparsed message and the UID it was fetched under.
type RawMessage struct {
	UID  uint32
	Body []byte
}

// Mailbox is one logged-in session with the inbox selected.
type Mailbox interface {
	FetchUnseen(ctx context.Context) ([]RawMessage, error)
	MarkSeen(ctx context.Context, uids []uint32) error
	Logout() error
}

type Dialer interface {
	Dial(ctx context.Context) (Mailbox, error)
}

type IMAPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Mailbox  string
	Timeout  time.Duration
}

// IMAPDialer opens implicit-TLS IMAP sessions.
type IMAPDialer struct {
	cfg IMAPConfig
	tls *tls.Config
}

func NewIMAPDialer(cfg IMAPConfig) *IMAPDialer {
	if cfg.Port == "" {
		cfg.Port = "993"
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &IMAPDialer{cfg: cfg, tls: &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}}
}

func (d *IMAPDialer) Dial(ctx context.Context) (Mailbox, error) {
	addr := net.JoinHostPort(d.cfg.Host, d.cfg.Port)
	c, err := client.DialWithDialerTLS(&net.Dialer{Timeout: d.cfg.Timeout}, addr, d.tls)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	c.Timeout = d.cfg.Timeout

	stop := context.AfterFunc(ctx, func() { _ = c.Terminate() })
	defer stop()

	if err := c.Login(d.cfg.Username, d.cfg.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if _, err := c.Select(d.cfg.Mailbox, false); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("select %s: %w", d.cfg.Mailbox, err)
	}
	return &imapMailbox{c: c}, nil
}

type imapMailbox struct {
	c *client.Client
}

// FetchUnseen returns full bodies of unseen messages without setting \Seen.
func (m *imapMailbox) FetchUnseen(ctx context.Context) ([]RawMessage, error) {
	stop := context.AfterFunc(ctx, func() { _ = m.c.Terminate() })
	defer stop()

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := m.c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("search unseen: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- m.c.UidFetch(seqset, items, messages)
	}()

	out := make([]RawMessage, 0, len(uids))
	var readErr error
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		data, err := io.ReadAll(body)
		if err != nil && readErr == nil {
			readErr = fmt.Errorf("read message %d: %w", msg.Uid, err)
			continue
		}
		out = append(out, RawMessage{UID: msg.Uid, Body: data})
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch unseen: %w", err)
	}
	if readErr != nil {
		return nil, readErr
	}
	return out, nil
}

func (m *imapMailbox) MarkSeen(ctx context.Context, uids []uint32) error {
	if len(uids) == 0 {
		return nil
	}
	stop := context.AfterFunc(ctx, func() { _ = m.c.Terminate() })
	defer stop()

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	flags := []interface{}{imap.SeenFlag}
	if err := m.c.UidStore(seqset, imap.FormatFlagsOp(imap.AddFlags, true), flags, nil); err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

func (m *imapMailbox) Logout() error {
	return m.c.Logout()
}
