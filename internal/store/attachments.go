package store

import (
	"context"
	"database/sql"
	"fmt"
)

const attachmentSelect = `
	SELECT id, organization_id, owner_type, owner_id, filename, original_name, content_type, size, uploaded_by, created_at
	FROM attachments
`

func scanAttachment(row rowScanner) (Attachment, error) {
	var item Attachment
	err := row.Scan(&item.ID, &item.OrganizationID, &item.OwnerType, &item.OwnerID, &item.Filename, &item.OriginalName,
		&item.ContentType, &item.Size, &item.UploadedBy, &item.CreatedAt)
	if err != nil {
		return Attachment{}, err
	}
	return item, nil
}

// InsertAttachments records already stored objects.
func (s *PostgresStore) InsertAttachments(ctx context.Context, items []Attachment) ([]Attachment, error) {
	if len(items) == 0 {
		return []Attachment{}, nil
	}
	saved := make([]Attachment, 0, len(items))
	err := s.inTx(ctx, "insert attachments", func(tx *sql.Tx) error {
		for _, item := range items {
			if err := tx.QueryRowContext(ctx, `
				INSERT INTO attachments (id, organization_id, owner_type, owner_id, filename, original_name, content_type, size, uploaded_by)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				RETURNING created_at
			`, item.ID, item.OrganizationID, item.OwnerType, item.OwnerID, item.Filename, item.OriginalName,
				item.ContentType, item.Size, item.UploadedBy).Scan(&item.CreatedAt); err != nil {
				return fmt.Errorf("insert attachment: %w", err)
			}
			saved = append(saved, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// ListAttachments returns the attachments of the given owners, oldest first.
func (s *PostgresStore) ListAttachments(ctx context.Context, ownerType string, ownerIDs ...string) ([]Attachment, error) {
	if len(ownerIDs) == 0 {
		return []Attachment{}, nil
	}
	rows, err := s.db.QueryContext(ctx, attachmentSelect+`
		WHERE owner_type=$1 AND owner_id::text = ANY($2)
		ORDER BY created_at ASC
	`, ownerType, ownerIDs)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	items := make([]Attachment, 0)
	for rows.Next() {
		item, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attachments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetAttachmentByFilename(ctx context.Context, filename string) (Attachment, error) {
	return scanAttachment(s.db.QueryRowContext(ctx, attachmentSelect+` WHERE filename=$1`, filename))
}
