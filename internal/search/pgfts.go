package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher on the generated fts columns.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. Without Postgres nothing else works either.
func (p *PgFTS) Healthy() bool {
	return true
}

const pgTSQuery = "plainto_tsquery('simple', $1)"

// subQuery returns one arm of the union. Every arm selects
// type, id, title, snippet, key, status, organization_id, rank.
func subQuery(rtyp ResultType) string {
	switch rtyp {
	case ResultTicket:
		return fmt.Sprintf(`
			SELECT 'ticket'::text AS type, t.id::text AS id, t.title,
				ts_headline('simple', coalesce(t.description, ''), %[1]s, 'MaxFragments=1,MaxWords=30') AS snippet,
				t.ticket_key AS key, t.status, t.organization_id::text AS organization_id,
				ts_rank(t.fts, %[1]s) AS rank
			FROM tickets t
			WHERE t.organization_id = $2 AND t.fts @@ %[1]s`, pgTSQuery)
	case ResultArticle:
		return fmt.Sprintf(`
			SELECT 'article'::text AS type, a.id::text AS id, a.title,
				ts_headline('simple', coalesce(a.content, ''), %[1]s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS key, ''::text AS status, a.organization_id::text AS organization_id,
				ts_rank(a.fts, %[1]s) AS rank
			FROM knowledge_articles a
			WHERE a.organization_id = $2 AND a.fts @@ %[1]s`, pgTSQuery)
	case ResultCommunication:
		return fmt.Sprintf(`
			SELECT 'communication'::text AS type, c.id::text AS id, c.subject AS title,
				trim(c.client_name || ' ' || c.client_email) AS snippet,
				''::text AS key, c.status, c.organization_id::text AS organization_id,
				ts_rank(c.fts, %[1]s) AS rank
			FROM communications c
			WHERE c.organization_id = $2 AND c.fts @@ %[1]s`, pgTSQuery)
	}
	return ""
}

// Search ranks matches across tickets, knowledge articles and communications
// of one organization with ts_rank and uses ts_headline for snippets.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" || q.OrganizationID == "" {
		return nil, 0, nil
	}

	var arms []string
	for _, rtyp := range []ResultType{ResultTicket, ResultArticle, ResultCommunication} {
		if q.FilterType == "" || q.FilterType == rtyp {
			arms = append(arms, subQuery(rtyp))
		}
	}
	if len(arms) == 0 {
		return nil, 0, nil
	}
	union := strings.Join(arms, " UNION ALL ")
	args := []any{q.Text, q.OrganizationID}

	var total int
	if err := p.db.QueryRowContext(ctx, "SELECT count(*) FROM ("+union+") sub", args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, key, status, organization_id
		FROM (%s) sub
		ORDER BY rank DESC, id
		LIMIT %d OFFSET %d`, union, q.limit(), q.offset())

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.Key, &r.Status, &r.OrganizationID); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// Records holds every searchable entity for a full reindex.
type Records struct {
	Tickets        []TicketRecord
	Articles       []ArticleRecord
	Communications []CommunicationRecord
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) (Records, error) {
	var out Records

	ticketRows, err := p.db.QueryContext(ctx, `
		SELECT id::text, organization_id::text, ticket_key, title, description,
			coalesce(client->>'name', ''), coalesce(client->>'email', ''), status, priority
		FROM tickets
	`)
	if err != nil {
		return Records{}, fmt.Errorf("load tickets: %w", err)
	}
	defer ticketRows.Close()
	for ticketRows.Next() {
		var t TicketRecord
		if err := ticketRows.Scan(&t.ID, &t.OrganizationID, &t.Key, &t.Title, &t.Description, &t.ClientName, &t.ClientEmail, &t.Status, &t.Priority); err != nil {
			return Records{}, fmt.Errorf("scan ticket: %w", err)
		}
		out.Tickets = append(out.Tickets, t)
	}
	if err := ticketRows.Err(); err != nil {
		return Records{}, fmt.Errorf("iterate tickets: %w", err)
	}

	articleRows, err := p.db.QueryContext(ctx, `
		SELECT id::text, organization_id::text, title, content, author_name
		FROM knowledge_articles
	`)
	if err != nil {
		return Records{}, fmt.Errorf("load articles: %w", err)
	}
	defer articleRows.Close()
	for articleRows.Next() {
		var a ArticleRecord
		if err := articleRows.Scan(&a.ID, &a.OrganizationID, &a.Title, &a.Content, &a.AuthorName); err != nil {
			return Records{}, fmt.Errorf("scan article: %w", err)
		}
		out.Articles = append(out.Articles, a)
	}
	if err := articleRows.Err(); err != nil {
		return Records{}, fmt.Errorf("iterate articles: %w", err)
	}

	commRows, err := p.db.QueryContext(ctx, `
		SELECT id::text, organization_id::text, subject, client_name, client_email, status
		FROM communications
	`)
	if err != nil {
		return Records{}, fmt.Errorf("load communications: %w", err)
	}
	defer commRows.Close()
	for commRows.Next() {
		var c CommunicationRecord
		if err := commRows.Scan(&c.ID, &c.OrganizationID, &c.Subject, &c.ClientName, &c.ClientEmail, &c.Status); err != nil {
			return Records{}, fmt.Errorf("scan communication: %w", err)
		}
		out.Communications = append(out.Communications, c)
	}
	if err := commRows.Err(); err != nil {
		return Records{}, fmt.Errorf("iterate communications: %w", err)
	}

	return out, nil
}
