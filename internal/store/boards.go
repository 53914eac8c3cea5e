package store

import (
	"context"
	"fmt"
)

const boardSelect = `SELECT id, organization_id, name, columns, stickers, owner_id, created_at, updated_at FROM boards`

func scanBoard(row rowScanner) (Board, error) {
	var item Board
	var columns, stickers []byte
	if err := row.Scan(&item.ID, &item.OrganizationID, &item.Name, &columns, &stickers, &item.OwnerID, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return Board{}, err
	}
	if err := decodeJSON(columns, &item.Columns); err != nil {
		return Board{}, fmt.Errorf("decode board columns: %w", err)
	}
	if err := decodeJSON(stickers, &item.Stickers); err != nil {
		return Board{}, fmt.Errorf("decode board stickers: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListBoards(ctx context.Context, orgID string) ([]Board, error) {
	rows, err := s.db.QueryContext(ctx, boardSelect+` WHERE organization_id=$1 ORDER BY created_at ASC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()

	items := make([]Board, 0)
	for rows.Next() {
		item, err := scanBoard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate boards: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetBoard(ctx context.Context, orgID, boardID string) (Board, error) {
	return scanBoard(s.db.QueryRowContext(ctx, boardSelect+` WHERE organization_id=$1 AND id=$2`, orgID, boardID))
}

func (s *PostgresStore) CreateBoard(ctx context.Context, item Board) (Board, error) {
	columns, err := jsonList(item.Columns)
	if err != nil {
		return Board{}, fmt.Errorf("encode board columns: %w", err)
	}
	stickers, err := jsonList(item.Stickers)
	if err != nil {
		return Board{}, fmt.Errorf("encode board stickers: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO boards (id, organization_id, name, columns, stickers, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, item.ID, item.OrganizationID, item.Name, columns, stickers, item.OwnerID).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Board{}, fmt.Errorf("insert board: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) UpdateBoard(ctx context.Context, item Board) (Board, error) {
	columns, err := jsonList(item.Columns)
	if err != nil {
		return Board{}, fmt.Errorf("encode board columns: %w", err)
	}
	stickers, err := jsonList(item.Stickers)
	if err != nil {
		return Board{}, fmt.Errorf("encode board stickers: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		UPDATE boards SET name=$3, columns=$4, stickers=$5, updated_at=NOW()
		WHERE organization_id=$1 AND id=$2
		RETURNING updated_at
	`, item.OrganizationID, item.ID, item.Name, columns, stickers).Scan(&item.UpdatedAt)
	if err != nil {
		return Board{}, err
	}
	return item, nil
}

func (s *PostgresStore) DeleteBoard(ctx context.Context, orgID, boardID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM boards WHERE organization_id=$1 AND id=$2`, orgID, boardID)
	if err != nil {
		return fmt.Errorf("delete board: %w", err)
	}
	return requireAffected(result, "delete board")
}
