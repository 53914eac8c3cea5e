package email

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/util"
)

type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Message is an outbound email. HTML is optional; Text is always sent.
type Message struct {
	To          []string
	Subject     string
	Text        string
	HTML        string
	InReplyTo   string
	References  []string
	Attachments []Attachment
}

// Compose renders msg as MIME and returns it with its Message-ID (without
// angle brackets).
func Compose(fromName, fromAddr string, msg Message, now time.Time) ([]byte, string, error) {
	messageID := util.NewID() + "@" + domainOf(fromAddr)

	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{{Name: fromName, Address: fromAddr}})
	to := make([]*mail.Address, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, &mail.Address{Address: addr})
	}
	h.SetAddressList("To", to)
	h.SetSubject(msg.Subject)
	h.SetMessageID(messageID)
	if msg.InReplyTo != "" {
		h.SetMsgIDList("In-Reply-To", []string{msg.InReplyTo})
	}
	if len(msg.References) > 0 {
		h.SetMsgIDList("References", msg.References)
	}

	var buf bytes.Buffer
	w, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, "", fmt.Errorf("create mail writer: %w", err)
	}

	tw, err := w.CreateInline()
	if err != nil {
		return nil, "", fmt.Errorf("create inline part: %w", err)
	}
	if err := writeInline(tw, "text/plain", msg.Text); err != nil {
		return nil, "", err
	}
	if msg.HTML != "" {
		if err := writeInline(tw, "text/html", msg.HTML); err != nil {
			return nil, "", err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, "", fmt.Errorf("close inline part: %w", err)
	}

	for _, att := range msg.Attachments {
		var ah mail.AttachmentHeader
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		ah.SetContentType(contentType, nil)
		ah.SetFilename(att.Name)
		aw, err := w.CreateAttachment(ah)
		if err != nil {
			return nil, "", fmt.Errorf("create attachment %s: %w", att.Name, err)
		}
		if _, err := aw.Write(att.Data); err != nil {
			return nil, "", fmt.Errorf("write attachment %s: %w", att.Name, err)
		}
		if err := aw.Close(); err != nil {
			return nil, "", fmt.Errorf("close attachment %s: %w", att.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close mail writer: %w", err)
	}
	return buf.Bytes(), messageID, nil
}

func writeInline(tw *mail.InlineWriter, contentType, body string) error {
	var th mail.InlineHeader
	th.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	pw, err := tw.CreatePart(th)
	if err != nil {
		return fmt.Errorf("create %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(pw, body); err != nil {
		return fmt.Errorf("write %s part: %w", contentType, err)
	}
	return pw.Close()
}

func domainOf(addr string) string {
	if at := strings.LastIndex(addr, "@"); at >= 0 && at < len(addr)-1 {
		return addr[at+1:]
	}
	return "localhost"
}
