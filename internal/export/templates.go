package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("export").Funcs(template.FuncMap{
	"formatDate": formatDate,
	"deref": func(v *int) int {
		if v == nil {
			return 0
		}
		return *v
	},
}).ParseFS(templateFS, "templates/*.html"))

func formatDate(value any, layout string) string {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.UTC().Format(layout)
	case *time.Time:
		if v == nil {
			return ""
		}
		return formatDate(*v, layout)
	default:
		return ""
	}
}

type ticketView struct {
	Ticket
	DescriptionHTML template.HTML
}

type articleView struct {
	Article
	ContentHTML template.HTML
}

// RenderTicketHTML renders a ticket as a standalone HTML page.
func RenderTicketHTML(t Ticket) (string, error) {
	description, err := MarkdownToHTML(t.Description)
	if err != nil {
		return "", err
	}
	return render("ticket.html", ticketView{Ticket: t, DescriptionHTML: description})
}

// RenderArticleHTML renders an article as a standalone HTML page.
func RenderArticleHTML(a Article) (string, error) {
	content, err := MarkdownToHTML(a.Content)
	if err != nil {
		return "", err
	}
	return render("article.html", articleView{Article: a, ContentHTML: content})
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
