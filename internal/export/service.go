package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/blob"
)

type converter func(ctx context.Context, html string) ([]byte, error)

// Service turns rendered HTML into the requested format.
type Service struct {
	pdf  converter
	docx converter
}

func NewService() *Service {
	return &Service{pdf: renderPDF, docx: renderDOCX}
}

// Ticket exports a ticket; the file is named after its key.
func (s *Service) Ticket(ctx context.Context, t Ticket, format Format) (*Result, error) {
	html, err := RenderTicketHTML(t)
	if err != nil {
		return nil, err
	}
	return s.convert(ctx, html, firstNonEmpty(t.Key, t.Title), format)
}

// Article exports a knowledge base article; the file is named after its title.
func (s *Service) Article(ctx context.Context, a Article, format Format) (*Result, error) {
	html, err := RenderArticleHTML(a)
	if err != nil {
		return nil, err
	}
	return s.convert(ctx, html, a.Title, format)
}

func (s *Service) convert(ctx context.Context, html, name string, format Format) (*Result, error) {
	base := sanitizeFilename(name)
	switch format {
	case FormatHTML:
		return &Result{Data: []byte(html), Filename: base + ".html", MimeType: "text/html; charset=utf-8"}, nil
	case FormatPDF:
		data, err := s.pdf(ctx, html)
		if err != nil {
			return nil, err
		}
		return &Result{Data: data, Filename: base + ".pdf", MimeType: "application/pdf"}, nil
	case FormatDOCX:
		data, err := s.docx(ctx, html)
		if err != nil {
			return nil, err
		}
		return &Result{
			Data:     data,
			Filename: base + ".docx",
			MimeType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// sanitizeFilename latinizes title, turns spaces into hyphens and caps the
// result at 50 bytes.
func sanitizeFilename(title string) string {
	title = strings.Join(strings.Fields(strings.NewReplacer("/", " ", "\\", " ").Replace(title)), "-")
	if title == "" {
		return "export"
	}
	name := blob.LatinName(title)
	if len(name) > 50 {
		name = strings.TrimRight(name[:50], "._-")
	}
	if name == "" || name == "file" {
		return "export"
	}
	return name
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
