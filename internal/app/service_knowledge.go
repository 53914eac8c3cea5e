package app

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/blob"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/export"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/gitrepo"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/search"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/util"
)

const (
	maxImageBytes = 5 << 20
	historyLimit  = 100
)

var imageTypes = map[string]bool{"image/jpeg": true, "image/png": true}

type ArticleInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Message string `json:"message"`
}

func (s *Service) ListArticles(ctx context.Context, session Session) ([]map[string]any, error) {
	articles, err := s.store.ListArticles(ctx, session.OrgID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(articles))
	for _, article := range articles {
		items = append(items, articlePayload(article))
	}
	return items, nil
}

func (s *Service) GetArticle(ctx context.Context, session Session, articleID string) (map[string]any, error) {
	article, err := s.getArticle(ctx, session, articleID)
	if err != nil {
		return nil, err
	}
	return articlePayload(article), nil
}

func (s *Service) CreateArticle(ctx context.Context, session Session, input ArticleInput) (map[string]any, error) {
	title, content, err := validateArticle(input)
	if err != nil {
		return nil, err
	}
	article := store.Article{
		ID:             util.NewID(),
		OrganizationID: session.OrgID,
		Title:          title,
		Content:        content,
		AuthorName:     actorName(session, systemActor),
	}
	if session.UserID != "" {
		author := session.UserID
		article.AuthorID = &author
	}
	created, err := s.store.CreateArticle(ctx, article)
	if err != nil {
		return nil, err
	}
	message := input.Message
	if strings.TrimSpace(message) == "" {
		message = "Create " + created.Title
	}
	s.recordRevision(created, actorName(session, systemActor), message)
	s.search.IndexArticle(search.ArticleRecordFrom(created))
	return articlePayload(created), nil
}

func (s *Service) UpdateArticle(ctx context.Context, session Session, articleID string, input ArticleInput) (map[string]any, error) {
	article, err := s.getArticle(ctx, session, articleID)
	if err != nil {
		return nil, err
	}
	title, content, err := validateArticle(input)
	if err != nil {
		return nil, err
	}
	article.Title = title
	article.Content = content
	updated, err := s.store.UpdateArticle(ctx, article)
	if err != nil {
		return nil, err
	}
	s.recordRevision(updated, actorName(session, systemActor), input.Message)
	s.search.IndexArticle(search.ArticleRecordFrom(updated))
	return articlePayload(updated), nil
}

func (s *Service) DeleteArticle(ctx context.Context, session Session, articleID string) error {
	article, err := s.getArticle(ctx, session, articleID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteArticle(ctx, session.OrgID, article.ID); err != nil {
		return err
	}
	if err := s.history.Remove(article.ID); err != nil {
		s.logger.Warn("remove article history failed", zap.String("article_id", article.ID), zap.Error(err))
	}
	s.search.DeleteArticle(article.ID)
	return nil
}

func (s *Service) ArticleHistory(ctx context.Context, session Session, articleID string) ([]map[string]any, error) {
	article, err := s.getArticle(ctx, session, articleID)
	if err != nil {
		return nil, err
	}
	commits, err := s.history.History(article.ID, historyLimit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(commits))
	for _, commit := range commits {
		items = append(items, commitPayload(commit))
	}
	return items, nil
}

func (s *Service) ArticleRevision(ctx context.Context, session Session, articleID, hash string) (map[string]any, error) {
	article, err := s.getArticle(ctx, session, articleID)
	if err != nil {
		return nil, err
	}
	rev, commit, err := s.history.RevisionAt(article.ID, hash)
	if err != nil {
		if isNotFound(err) {
			return nil, errNotFound()
		}
		return nil, err
	}
	payload := commitPayload(commit)
	payload["title"] = rev.Title
	payload["content"] = rev.Content
	return payload, nil
}

func (s *Service) ExportArticle(ctx context.Context, session Session, articleID, format string) (*export.Result, error) {
	parsed, err := parseExportFormat(format)
	if err != nil {
		return nil, err
	}
	article, err := s.getArticle(ctx, session, articleID)
	if err != nil {
		return nil, err
	}
	doc := export.Article{
		Title:            article.Title,
		Content:          article.Content,
		Author:           article.AuthorName,
		OrganizationName: session.OrgName,
		UpdatedAt:        article.UpdatedAt,
	}
	if commits, err := s.history.History(article.ID, 1); err == nil && len(commits) > 0 {
		doc.Revision = commits[0].Hash
	}
	result, err := s.exporter.Article(ctx, doc, parsed)
	if err != nil {
		return nil, exportError(err)
	}
	return result, nil
}

// UploadImage stores an article image and returns its public URL.
func (s *Service) UploadImage(ctx context.Context, session Session, file blob.File) (map[string]any, error) {
	contentType := strings.ToLower(strings.TrimSpace(strings.SplitN(file.ContentType, ";", 2)[0]))
	if !imageTypes[contentType] {
		return nil, domainError(http.StatusBadRequest, "INVALID_FILE_TYPE", "Only JPEG and PNG images are allowed", nil)
	}
	if file.Size > maxImageBytes {
		return nil, domainError(http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Images are limited to 5 MB", nil)
	}
	file.ContentType = contentType
	saved, err := s.saveFiles(ctx, session, store.OwnerKnowledge, session.OrgID, []blob.File{file})
	if err != nil {
		return nil, err
	}
	return map[string]any{"url": "/uploads/" + saved[0].Filename}, nil
}

// recordRevision commits the article to its history repository. The row is
// already stored, so a failing commit is logged and the request succeeds.
func (s *Service) recordRevision(article store.Article, author, message string) {
	_, err := s.history.Commit(article.ID, gitrepo.Revision{Title: article.Title, Content: article.Content}, author, message)
	if err != nil {
		s.logger.Error("commit article revision failed", zap.String("article_id", article.ID), zap.Error(err))
	}
}

func (s *Service) getArticle(ctx context.Context, session Session, articleID string) (store.Article, error) {
	if !util.IsID(articleID) {
		return store.Article{}, errNotFound()
	}
	article, err := s.store.GetArticle(ctx, session.OrgID, articleID)
	if err != nil {
		if isNotFound(err) {
			return store.Article{}, errNotFound()
		}
		return store.Article{}, err
	}
	return article, nil
}

func validateArticle(input ArticleInput) (string, string, error) {
	title := strings.TrimSpace(input.Title)
	content := input.Content
	problems := map[string]string{}
	if title == "" {
		problems["title"] = "title is required"
	}
	if strings.TrimSpace(content) == "" {
		problems["content"] = "content is required"
	}
	if len(problems) > 0 {
		return "", "", validationFailed(problems)
	}
	return title, content, nil
}

func commitPayload(commit gitrepo.Commit) map[string]any {
	return map[string]any{
		"hash":      commit.Hash,
		"message":   commit.Message,
		"author":    commit.Author,
		"createdAt": commit.CreatedAt,
	}
}
