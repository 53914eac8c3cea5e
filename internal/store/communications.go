package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const communicationSelect = `
	SELECT c.id, c.organization_id, c.client_name, c.client_email, c.client_phone, c.subject, c.status,
		c.created_at, c.updated_at
	FROM communications c
`

func scanCommunication(row rowScanner) (Communication, error) {
	var item Communication
	err := row.Scan(&item.ID, &item.OrganizationID, &item.ClientName, &item.ClientEmail, &item.ClientPhone,
		&item.Subject, &item.Status, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Communication{}, err
	}
	return item, nil
}

func collectCommunications(rows *sql.Rows) ([]Communication, error) {
	defer rows.Close()
	items := make([]Communication, 0)
	for rows.Next() {
		item, err := scanCommunication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan communication: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate communications: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListCommunications(ctx context.Context, orgID string) ([]Communication, error) {
	rows, err := s.db.QueryContext(ctx, communicationSelect+` WHERE c.organization_id=$1 ORDER BY c.created_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list communications: %w", err)
	}
	return collectCommunications(rows)
}

func (s *PostgresStore) GetCommunication(ctx context.Context, orgID, communicationID string) (Communication, error) {
	return scanCommunication(s.db.QueryRowContext(ctx, communicationSelect+` WHERE c.organization_id=$1 AND c.id=$2`, orgID, communicationID))
}

// ListCommunicationsByClientEmail returns the tenant's threads with that client, most recently updated first.
func (s *PostgresStore) ListCommunicationsByClientEmail(ctx context.Context, orgID, email string) ([]Communication, error) {
	rows, err := s.db.QueryContext(ctx, communicationSelect+`
		WHERE c.organization_id=$1 AND LOWER(c.client_email)=LOWER($2)
		ORDER BY c.updated_at DESC
	`, orgID, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("list client communications: %w", err)
	}
	return collectCommunications(rows)
}

// FindCommunicationByEmailMessageIDs returns the thread holding any of the given Message-IDs.
func (s *PostgresStore) FindCommunicationByEmailMessageIDs(ctx context.Context, orgID string, messageIDs []string) (Communication, error) {
	if len(messageIDs) == 0 {
		return Communication{}, sql.ErrNoRows
	}
	return scanCommunication(s.db.QueryRowContext(ctx, communicationSelect+`
		JOIN communication_messages m ON m.communication_id = c.id
		WHERE c.organization_id=$1 AND m.email_message_id = ANY($2)
		ORDER BY m.created_at DESC
		LIMIT 1
	`, orgID, messageIDs))
}

func (s *PostgresStore) CommunicationMessageExists(ctx context.Context, emailMessageID string) (bool, error) {
	if emailMessageID == "" {
		return false, nil
	}
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM communication_messages WHERE email_message_id=$1)`, emailMessageID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email message: %w", err)
	}
	return exists, nil
}

// CreateCommunication inserts the thread with its first message.
func (s *PostgresStore) CreateCommunication(ctx context.Context, item Communication, first CommunicationMessage) (Communication, CommunicationMessage, error) {
	err := s.inTx(ctx, "create communication", func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO communications (id, organization_id, client_name, client_email, client_phone, subject, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at, updated_at
		`, item.ID, item.OrganizationID, item.ClientName, item.ClientEmail, item.ClientPhone, item.Subject, item.Status).
			Scan(&item.CreatedAt, &item.UpdatedAt); err != nil {
			return fmt.Errorf("insert communication: %w", err)
		}
		first.CommunicationID = item.ID
		created, err := insertCommunicationMessage(ctx, tx, first)
		if err != nil {
			return err
		}
		first = created
		return nil
	})
	if err != nil {
		return Communication{}, CommunicationMessage{}, err
	}
	return item, first, nil
}

// AppendCommunicationMessage adds a message and bumps the thread. A non-empty
// status replaces the thread status in the same transaction.
func (s *PostgresStore) AppendCommunicationMessage(ctx context.Context, message CommunicationMessage, status string) (CommunicationMessage, error) {
	err := s.inTx(ctx, "append communication message", func(tx *sql.Tx) error {
		created, err := insertCommunicationMessage(ctx, tx, message)
		if err != nil {
			return err
		}
		message = created
		result, err := tx.ExecContext(ctx, `
			UPDATE communications SET status=COALESCE(NULLIF($2, ''), status), updated_at=NOW()
			WHERE id=$1
		`, message.CommunicationID, status)
		if err != nil {
			return fmt.Errorf("touch communication: %w", err)
		}
		return requireAffected(result, "touch communication")
	})
	if err != nil {
		return CommunicationMessage{}, err
	}
	return message, nil
}

func insertCommunicationMessage(ctx context.Context, tx *sql.Tx, message CommunicationMessage) (CommunicationMessage, error) {
	if message.CreatedAt.IsZero() {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO communication_messages (id, communication_id, author, author_type, text, email_message_id)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at
		`, message.ID, message.CommunicationID, message.Author, message.AuthorType, message.Text, message.EmailMessageID).
			Scan(&message.CreatedAt)
		if err != nil {
			return CommunicationMessage{}, fmt.Errorf("insert communication message: %w", err)
		}
		return message, nil
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO communication_messages (id, communication_id, author, author_type, text, email_message_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, message.ID, message.CommunicationID, message.Author, message.AuthorType, message.Text, message.EmailMessageID, message.CreatedAt)
	if err != nil {
		return CommunicationMessage{}, fmt.Errorf("insert communication message: %w", err)
	}
	return message, nil
}

func (s *PostgresStore) ListCommunicationMessages(ctx context.Context, communicationID string) ([]CommunicationMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, communication_id, author, author_type, text, email_message_id, created_at
		FROM communication_messages
		WHERE communication_id=$1
		ORDER BY created_at ASC, id ASC
	`, communicationID)
	if err != nil {
		return nil, fmt.Errorf("list communication messages: %w", err)
	}
	defer rows.Close()

	items := make([]CommunicationMessage, 0)
	for rows.Next() {
		var item CommunicationMessage
		if err := rows.Scan(&item.ID, &item.CommunicationID, &item.Author, &item.AuthorType, &item.Text, &item.EmailMessageID, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan communication message: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate communication messages: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) SetCommunicationStatus(ctx context.Context, orgID, communicationID, status string) (Communication, error) {
	return scanCommunication(s.db.QueryRowContext(ctx, `
		UPDATE communications c SET status=$3, updated_at=NOW()
		WHERE c.organization_id=$1 AND c.id=$2
		RETURNING c.id, c.organization_id, c.client_name, c.client_email, c.client_phone, c.subject, c.status,
			c.created_at, c.updated_at
	`, orgID, communicationID, status))
}

func (s *PostgresStore) DeleteCommunication(ctx context.Context, orgID, communicationID string) error {
	return s.inTx(ctx, "delete communication", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM attachments WHERE owner_type='communication' AND owner_id=$1`, communicationID); err != nil {
			return fmt.Errorf("delete communication files: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM communications WHERE organization_id=$1 AND id=$2`, orgID, communicationID)
		if err != nil {
			return fmt.Errorf("delete communication: %w", err)
		}
		return requireAffected(result, "delete communication")
	})
}
