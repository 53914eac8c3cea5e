package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

const (
	idxTickets        = "helpdesk_tickets"
	idxArticles       = "helpdesk_articles"
	idxCommunications = "helpdesk_communications"
)

var errUnhealthy = errors.New("meilisearch unhealthy")

type indexSpec struct {
	uid        string
	rtyp       ResultType
	filterable []string
	searchable []string
}

var indexSpecs = []indexSpec{
	{
		uid:        idxTickets,
		rtyp:       ResultTicket,
		filterable: []string{"organizationId", "status", "priority"},
		searchable: []string{"key", "title", "description", "clientName", "clientEmail"},
	},
	{
		uid:        idxArticles,
		rtyp:       ResultArticle,
		filterable: []string{"organizationId"},
		searchable: []string{"title", "content"},
	},
	{
		uid:        idxCommunications,
		rtyp:       ResultCommunication,
		filterable: []string{"organizationId", "status"},
		searchable: []string{"subject", "clientName", "clientEmail"},
	},
}

// Meili implements Searcher and the index writes via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	logger  *zap.Logger
	healthy atomic.Bool
	done    chan struct{}
	closed  atomic.Bool
}

// NewMeili creates a Meilisearch client and configures indexes. An
// unreachable server is not an error: the client reports unhealthy and the
// background monitor picks it up once it answers.
func NewMeili(url, apiKey string, logger *zap.Logger) *Meili {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		logger: logger.Named("meili"),
		done:   make(chan struct{}),
	}

	if _, err := m.client.Health(); err != nil {
		m.logger.Warn("meilisearch unavailable", zap.String("url", url), zap.Error(err))
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	for _, idx := range indexSpecs {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: idx.uid, PrimaryKey: "id"}); err != nil {
			m.logger.Debug("create index", zap.String("index", idx.uid), zap.Error(err))
		}

		index := m.client.Index(idx.uid)
		filterable := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterable[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			m.logger.Warn("update filterable attributes", zap.String("index", idx.uid), zap.Error(err))
		}
		searchable := idx.searchable
		if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
			m.logger.Warn("update searchable attributes", zap.String("index", idx.uid), zap.Error(err))
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Swap(err == nil)
			switch {
			case err == nil && !wasHealthy:
				m.logger.Info("meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			case err != nil && wasHealthy:
				m.logger.Warn("meilisearch went away", zap.Error(err))
			}
		}
	}
}

// Close stops the background health monitor. It is safe to call twice.
func (m *Meili) Close() {
	if m.closed.CompareAndSwap(false, true) {
		close(m.done)
	}
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the three indexes (or the one named by FilterType) with an
// organizationId filter and merges the hits.
func (m *Meili) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, errUnhealthy
	}
	if strings.TrimSpace(q.Text) == "" || q.OrganizationID == "" {
		return nil, 0, nil
	}

	var queries []*meili.SearchRequest
	for _, idx := range indexSpecs {
		if q.FilterType != "" && q.FilterType != idx.rtyp {
			continue
		}
		queries = append(queries, &meili.SearchRequest{
			IndexUID:              idx.uid,
			Query:                 q.Text,
			Limit:                 int64(q.limit()),
			Offset:                int64(q.offset()),
			Filter:                []string{orgFilter(q.OrganizationID)},
			AttributesToHighlight: []string{"*"},
			AttributesToCrop:      []string{"description", "content"},
			CropLength:            30,
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		})
	}
	if len(queries) == 0 {
		return nil, 0, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{Queries: queries})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}
	return results, total, nil
}

func orgFilter(orgID string) string {
	return fmt.Sprintf("organizationId = %q", orgID)
}

func indexToResultType(uid string) ResultType {
	for _, idx := range indexSpecs {
		if idx.uid == uid {
			return idx.rtyp
		}
	}
	return ""
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{
		Type:           rtyp,
		ID:             decodeString(hit, "id"),
		OrganizationID: decodeString(hit, "organizationId"),
		Status:         decodeString(hit, "status"),
	}
	formatted := decodeFormatted(hit)

	switch rtyp {
	case ResultTicket:
		r.Key = decodeString(hit, "key")
		r.Title = firstNonBlank(formatted["title"], decodeString(hit, "title"))
		r.Snippet = firstNonBlank(formatted["description"], formatted["clientName"], decodeString(hit, "clientName"))
	case ResultArticle:
		r.Title = firstNonBlank(formatted["title"], decodeString(hit, "title"))
		r.Snippet = firstNonBlank(formatted["content"], decodeString(hit, "content"))
	case ResultCommunication:
		r.Title = firstNonBlank(formatted["subject"], decodeString(hit, "subject"))
		r.Snippet = firstNonBlank(formatted["clientName"], decodeString(hit, "clientName"), decodeString(hit, "clientEmail"))
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// decodeFormatted returns the string fields of the _formatted object.
// Non-string values are skipped.
func decodeFormatted(hit meili.Hit) map[string]string {
	out := map[string]string{}
	raw, ok := hit["_formatted"]
	if !ok {
		return out
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return out
	}
	for key, value := range fields {
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			out[key] = strings.TrimSpace(s)
		}
	}
	return out
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func addDocuments[T any](m *Meili, uid string, docs []T) error {
	if len(docs) == 0 {
		return nil
	}
	if _, err := m.client.Index(uid).AddDocuments(docs, nil); err != nil {
		return fmt.Errorf("add documents to %s: %w", uid, err)
	}
	return nil
}

func (m *Meili) deleteDocument(uid, id string) error {
	if _, err := m.client.Index(uid).DeleteDocument(id, nil); err != nil {
		return fmt.Errorf("delete %s from %s: %w", id, uid, err)
	}
	return nil
}

func (m *Meili) IndexTickets(items []TicketRecord) error {
	return addDocuments(m, idxTickets, items)
}

func (m *Meili) IndexArticles(items []ArticleRecord) error {
	return addDocuments(m, idxArticles, items)
}

func (m *Meili) IndexCommunications(items []CommunicationRecord) error {
	return addDocuments(m, idxCommunications, items)
}

func (m *Meili) DeleteTicket(id string) error {
	return m.deleteDocument(idxTickets, id)
}

func (m *Meili) DeleteArticle(id string) error {
	return m.deleteDocument(idxArticles, id)
}

func (m *Meili) DeleteCommunication(id string) error {
	return m.deleteDocument(idxCommunications, id)
}
