// Package export renders tickets and knowledge articles to PDF, DOCX or
// standalone HTML.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatHTML Format = "html"
)

// ParseFormat maps the format query parameter. An empty value means PDF.
func ParseFormat(value string) (Format, error) {
	switch Format(value) {
	case "", FormatPDF:
		return FormatPDF, nil
	case FormatDOCX:
		return FormatDOCX, nil
	case FormatHTML:
		return FormatHTML, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// Comment is a ticket comment as printed in the export.
type Comment struct {
	Author    string
	Text      string
	CreatedAt time.Time
}

// Ticket is everything printed for a ticket. Description is markdown.
type Ticket struct {
	Key              string
	Title            string
	Description      string
	Status           string
	Priority         string
	Type             string
	Reporter         string
	Assignee         string
	ClientName       string
	ClientEmail      string
	Labels           []string
	StoryPoints      *int
	DueDate          *time.Time
	OrganizationName string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Comments         []Comment
}

// Article is a knowledge base article. Content is markdown.
type Article struct {
	Title            string
	Content          string
	Author           string
	OrganizationName string
	Revision         string
	UpdatedAt        time.Time
}

var (
	// ErrUnsupportedFormat is returned for formats other than pdf, docx and html.
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
