package store

import (
	"context"
	"fmt"
)

const articleSelect = `
	SELECT id, organization_id, title, content, author_id, author_name, created_at, updated_at
	FROM knowledge_articles
`

func scanArticle(row rowScanner) (Article, error) {
	var item Article
	err := row.Scan(&item.ID, &item.OrganizationID, &item.Title, &item.Content, &item.AuthorID, &item.AuthorName, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Article{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListArticles(ctx context.Context, orgID string) ([]Article, error) {
	rows, err := s.db.QueryContext(ctx, articleSelect+` WHERE organization_id=$1 ORDER BY updated_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	items := make([]Article, 0)
	for rows.Next() {
		item, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetArticle(ctx context.Context, orgID, articleID string) (Article, error) {
	return scanArticle(s.db.QueryRowContext(ctx, articleSelect+` WHERE organization_id=$1 AND id=$2`, orgID, articleID))
}

func (s *PostgresStore) CreateArticle(ctx context.Context, item Article) (Article, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO knowledge_articles (id, organization_id, title, content, author_id, author_name)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, item.ID, item.OrganizationID, item.Title, item.Content, item.AuthorID, item.AuthorName).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Article{}, fmt.Errorf("insert article: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) UpdateArticle(ctx context.Context, item Article) (Article, error) {
	return scanArticle(s.db.QueryRowContext(ctx, `
		UPDATE knowledge_articles SET title=$3, content=$4, updated_at=NOW()
		WHERE organization_id=$1 AND id=$2
		RETURNING id, organization_id, title, content, author_id, author_name, created_at, updated_at
	`, item.OrganizationID, item.ID, item.Title, item.Content))
}

func (s *PostgresStore) DeleteArticle(ctx context.Context, orgID, articleID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM knowledge_articles WHERE organization_id=$1 AND id=$2`, orgID, articleID)
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	return requireAffected(result, "delete article")
}
