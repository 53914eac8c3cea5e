// Package search finds tickets, knowledge articles and communications inside
// one organization. Meilisearch answers when it is reachable; Postgres
// full-text search answers otherwise.
package search

import "context"

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultTicket        ResultType = "ticket"
	ResultArticle       ResultType = "article"
	ResultCommunication ResultType = "communication"
)

// ParseResultType accepts the values of the type query parameter. ok is false
// for anything that is neither empty nor a known type.
func ParseResultType(value string) (ResultType, bool) {
	switch ResultType(value) {
	case "":
		return "", true
	case ResultTicket, ResultArticle, ResultCommunication:
		return ResultType(value), true
	default:
		return "", false
	}
}

// Result is a single search hit returned to the caller.
type Result struct {
	Type           ResultType `json:"type"`
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Snippet        string     `json:"snippet"`
	Key            string     `json:"key,omitempty"`
	Status         string     `json:"status,omitempty"`
	OrganizationID string     `json:"organizationId"`
}

// Query describes a search request. OrganizationID is mandatory.
type Query struct {
	Text           string
	FilterType     ResultType // empty = all types
	OrganizationID string
	Limit          int
	Offset         int
}

const (
	defaultLimit = 20
	maxLimit     = 100
)

func (q Query) limit() int {
	switch {
	case q.Limit <= 0:
		return defaultLimit
	case q.Limit > maxLimit:
		return maxLimit
	default:
		return q.Limit
	}
}

func (q Query) offset() int {
	if q.Offset < 0 {
		return 0
	}
	return q.Offset
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// TicketRecord is the data we index for a ticket.
type TicketRecord struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organizationId"`
	Key            string `json:"key"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	ClientName     string `json:"clientName"`
	ClientEmail    string `json:"clientEmail"`
	Status         string `json:"status"`
	Priority       string `json:"priority"`
}

// ArticleRecord is the data we index for a knowledge base article.
type ArticleRecord struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organizationId"`
	Title          string `json:"title"`
	Content        string `json:"content"`
	AuthorName     string `json:"authorName"`
}

// CommunicationRecord is the data we index for a client thread.
type CommunicationRecord struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organizationId"`
	Subject        string `json:"subject"`
	ClientName     string `json:"clientName"`
	ClientEmail    string `json:"clientEmail"`
	Status         string `json:"status"`
}
