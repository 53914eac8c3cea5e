package search

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type indexBackend interface {
	Searcher
	IndexTickets(items []TicketRecord) error
	IndexArticles(items []ArticleRecord) error
	IndexCommunications(items []CommunicationRecord) error
	DeleteTicket(id string) error
	DeleteArticle(id string) error
	DeleteCommunication(id string) error
}

type fallbackBackend interface {
	Searcher
	LoadAllRecords(ctx context.Context) (Records, error)
}

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	index    indexBackend
	fallback fallbackBackend
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewService creates a search service. meili may be nil when Meilisearch is
// not configured.
func NewService(meili *Meili, pgfts *PgFTS, logger *zap.Logger) *Service {
	var index indexBackend
	if meili != nil {
		index = meili
	}
	var fallback fallbackBackend
	if pgfts != nil {
		fallback = pgfts
	}
	return newService(index, fallback, logger)
}

func newService(index indexBackend, fallback fallbackBackend, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{index: index, fallback: fallback, logger: logger.Named("search")}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS. A
// failing backend yields an empty response, never an error.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.index != nil && s.index.Healthy() {
		results, total, err := s.index.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn("meilisearch failed, falling back to postgres", zap.Error(err))
	}
	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}

	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.logger.Error("postgres full-text search failed", zap.Error(err))
		return Response{Results: []Result{}, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// async runs fn in the background when the index is reachable.
func (s *Service) async(what, id string, fn func(indexBackend) error) {
	if s.index == nil || !s.index.Healthy() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := fn(s.index); err != nil {
			s.logger.Warn("index update failed", zap.String("op", what), zap.String("id", id), zap.Error(err))
		}
	}()
}

func (s *Service) IndexTicket(item TicketRecord) {
	s.async("index ticket", item.ID, func(b indexBackend) error { return b.IndexTickets([]TicketRecord{item}) })
}

func (s *Service) IndexArticle(item ArticleRecord) {
	s.async("index article", item.ID, func(b indexBackend) error { return b.IndexArticles([]ArticleRecord{item}) })
}

func (s *Service) IndexCommunication(item CommunicationRecord) {
	s.async("index communication", item.ID, func(b indexBackend) error {
		return b.IndexCommunications([]CommunicationRecord{item})
	})
}

func (s *Service) DeleteTicket(id string) {
	s.async("delete ticket", id, func(b indexBackend) error { return b.DeleteTicket(id) })
}

func (s *Service) DeleteArticle(id string) {
	s.async("delete article", id, func(b indexBackend) error { return b.DeleteArticle(id) })
}

func (s *Service) DeleteCommunication(id string) {
	s.async("delete communication", id, func(b indexBackend) error { return b.DeleteCommunication(id) })
}

// Wait blocks until queued index updates have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// ReindexAllFromPG pushes every searchable entity from Postgres into
// Meilisearch. serve calls it once at start.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.index == nil || !s.index.Healthy() || s.fallback == nil {
		return
	}
	records, err := s.fallback.LoadAllRecords(ctx)
	if err != nil {
		s.logger.Error("reindex load failed", zap.Error(err))
		return
	}
	if err := s.index.IndexTickets(records.Tickets); err != nil {
		s.logger.Warn("reindex tickets", zap.Error(err))
	}
	if err := s.index.IndexArticles(records.Articles); err != nil {
		s.logger.Warn("reindex articles", zap.Error(err))
	}
	if err := s.index.IndexCommunications(records.Communications); err != nil {
		s.logger.Warn("reindex communications", zap.Error(err))
	}
	s.logger.Info("search index rebuilt",
		zap.Int("tickets", len(records.Tickets)),
		zap.Int("articles", len(records.Articles)),
		zap.Int("communications", len(records.Communications)),
	)
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
