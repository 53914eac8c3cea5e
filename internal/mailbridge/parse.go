package mailbridge

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"
	"unicode"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/net/html"
)

// maxPartBytes bounds a single MIME part read into memory.
const maxPartBytes = 25 << 20

var ErrNoSender = errors.New("message has no sender address")

type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Incoming is a parsed inbound email.
type Incoming struct {
	MessageID   string
	InReplyTo   []string
	References  []string
	FromName    string
	FromAddress string
	Recipients  []string
	Subject     string
	Date        time.Time
	Text        string
	Attachments []Attachment
}

// ThreadIDs returns In-Reply-To followed by References without duplicates.
func (m Incoming) ThreadIDs() []string {
	seen := make(map[string]bool)
	ids := make([]string, 0, len(m.InReplyTo)+len(m.References))
	for _, id := range append(append([]string{}, m.InReplyTo...), m.References...) {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// Parse reads an RFC 5322 message. Unknown charsets are tolerated; the
// affected parts are kept as raw bytes.
func Parse(r io.Reader) (Incoming, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return Incoming{}, fmt.Errorf("read message header: %w", err)
	}
	defer mr.Close()

	var msg Incoming
	from, err := mr.Header.AddressList("From")
	if err != nil || len(from) == 0 || from[0].Address == "" {
		return Incoming{}, ErrNoSender
	}
	msg.FromName = strings.TrimSpace(from[0].Name)
	msg.FromAddress = strings.ToLower(strings.TrimSpace(from[0].Address))

	for _, key := range []string{"To", "Cc"} {
		addrs, _ := mr.Header.AddressList(key)
		for _, addr := range addrs {
			if addr.Address != "" {
				msg.Recipients = append(msg.Recipients, strings.ToLower(addr.Address))
			}
		}
	}

	if subject, err := mr.Header.Subject(); err == nil {
		msg.Subject = strings.TrimSpace(subject)
	} else {
		msg.Subject = strings.TrimSpace(mr.Header.Get("Subject"))
	}
	if date, err := mr.Header.Date(); err == nil {
		msg.Date = date
	}
	if id, err := mr.Header.MessageID(); err == nil {
		msg.MessageID = id
	} else {
		msg.MessageID = strings.Trim(strings.TrimSpace(mr.Header.Get("Message-Id")), "<>")
	}
	msg.InReplyTo, _ = mr.Header.MsgIDList("In-Reply-To")
	msg.References, _ = mr.Header.MsgIDList("References")

	var plain, htmlBody string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return Incoming{}, fmt.Errorf("read message part: %w", err)
		}

		data, err := io.ReadAll(io.LimitReader(part.Body, maxPartBytes))
		if err != nil {
			return Incoming{}, fmt.Errorf("read message part body: %w", err)
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, params, _ := h.ContentType()
			switch {
			case contentType == "text/plain" && plain == "":
				plain = string(data)
			case contentType == "text/html" && htmlBody == "":
				htmlBody = string(data)
			case params["name"] != "":
				msg.Attachments = append(msg.Attachments, Attachment{Filename: params["name"], ContentType: contentType, Data: data})
			}
		case *mail.AttachmentHeader:
			contentType, params, _ := h.ContentType()
			filename, _ := h.Filename()
			if filename == "" {
				filename = params["name"]
			}
			if filename == "" {
				filename = "attachment" + extensionFor(contentType)
			}
			msg.Attachments = append(msg.Attachments, Attachment{Filename: filename, ContentType: contentType, Data: data})
		}
	}

	msg.Text = plain
	if strings.TrimSpace(msg.Text) == "" && htmlBody != "" {
		msg.Text = HTMLToText(htmlBody)
	}
	return msg, nil
}

func extensionFor(contentType string) string {
	exts, err := mime.ExtensionsByType(contentType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "blockquote": true, "pre": true, "hr": true,
	"table": true, "ul": true, "ol": true,
}

// HTMLToText flattens an HTML body into plain text, one line per block.
// Empty lines are dropped.
func HTMLToText(source string) string {
	doc, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return strings.TrimSpace(source)
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "head", "title":
				return
			}
			if blockElements[n.Data] {
				b.WriteString("\n")
			}
		}
		if n.Type == html.TextNode {
			text := strings.Join(strings.Fields(n.Data), " ")
			if text == "" {
				if n.Data != "" {
					b.WriteString(" ")
				}
			} else {
				if strings.TrimLeftFunc(n.Data, unicode.IsSpace) != n.Data {
					b.WriteString(" ")
				}
				b.WriteString(text)
				if strings.TrimRightFunc(n.Data, unicode.IsSpace) != n.Data {
					b.WriteString(" ")
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] && n.Data != "br" {
			b.WriteString("\n")
		}
	}
	walk(doc)

	lines := strings.Split(b.String(), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
