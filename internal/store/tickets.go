package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const ticketSelect = `
	SELECT id, organization_id, ticket_key, title, description, status, priority, type, reporter,
		assignee_id, client, labels, auto_assign, custom_fields, time_tracking, story_points,
		due_date, sprint_id, dependencies, created_at, updated_at
	FROM tickets
`

func scanTicket(row rowScanner) (Ticket, error) {
	var item Ticket
	var client, labels, autoAssign, custom, tracking, deps []byte
	err := row.Scan(
		&item.ID, &item.OrganizationID, &item.Key, &item.Title, &item.Description, &item.Status, &item.Priority,
		&item.Type, &item.Reporter, &item.AssigneeID, &client, &labels, &autoAssign, &custom, &tracking,
		&item.StoryPoints, &item.DueDate, &item.SprintID, &deps, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return Ticket{}, err
	}
	if len(client) > 0 && string(client) != "null" {
		item.Client = &TicketClient{}
		if err := decodeJSON(client, item.Client); err != nil {
			return Ticket{}, fmt.Errorf("decode ticket client: %w", err)
		}
	}
	if len(tracking) > 0 && string(tracking) != "null" {
		item.TimeTracking = &TimeTracking{}
		if err := decodeJSON(tracking, item.TimeTracking); err != nil {
			return Ticket{}, fmt.Errorf("decode time tracking: %w", err)
		}
	}
	if err := decodeJSON(labels, &item.Labels); err != nil {
		return Ticket{}, fmt.Errorf("decode labels: %w", err)
	}
	if err := decodeJSON(autoAssign, &item.AutoAssign); err != nil {
		return Ticket{}, fmt.Errorf("decode auto assign: %w", err)
	}
	if err := decodeJSON(custom, &item.CustomFields); err != nil {
		return Ticket{}, fmt.Errorf("decode custom fields: %w", err)
	}
	if err := decodeJSON(deps, &item.Dependencies); err != nil {
		return Ticket{}, fmt.Errorf("decode dependencies: %w", err)
	}
	return item, nil
}

type ticketDocs struct {
	client, labels, autoAssign, custom, tracking, deps any
}

func encodeTicketDocs(item Ticket) (ticketDocs, error) {
	var docs ticketDocs
	var err error
	if item.Client != nil {
		if docs.client, err = jsonValue(item.Client); err != nil {
			return docs, err
		}
	}
	if item.TimeTracking != nil {
		if docs.tracking, err = jsonValue(item.TimeTracking); err != nil {
			return docs, err
		}
	}
	if docs.labels, err = jsonList(item.Labels); err != nil {
		return docs, err
	}
	rules := item.AutoAssign
	if rules.Rules == nil {
		rules.Rules = []AutoAssignRule{}
	}
	if docs.autoAssign, err = jsonValue(rules); err != nil {
		return docs, err
	}
	if docs.custom, err = jsonList(item.CustomFields); err != nil {
		return docs, err
	}
	if docs.deps, err = jsonList(item.Dependencies); err != nil {
		return docs, err
	}
	return docs, nil
}

var ticketSortColumns = map[string]string{
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
	"title":       "LOWER(title)",
	"dueDate":     "due_date",
	"storyPoints": "story_points",
	"priority":    "CASE priority WHEN 'low' THEN 0 WHEN 'medium' THEN 1 WHEN 'high' THEN 2 ELSE 3 END",
	"status":      "CASE status WHEN 'backlog' THEN 0 WHEN 'todo' THEN 1 WHEN 'in_progress' THEN 2 WHEN 'review' THEN 3 ELSE 4 END",
}

func (s *PostgresStore) ListTickets(ctx context.Context, orgID string, filter TicketFilter) ([]Ticket, error) {
	where := []string{"organization_id = $1"}
	args := []any{orgID}
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.Priority != "" {
		add("priority = $%d", filter.Priority)
	}
	if filter.Type != "" {
		add("type = $%d", filter.Type)
	}
	if filter.Assignee != "" {
		add("assignee_id::text = $%d", filter.Assignee)
	}
	if filter.Sprint != "" {
		add("sprint_id::text = $%d", filter.Sprint)
	}
	if filter.Client != "" {
		add(`LOWER(COALESCE(client->>'name', '')) LIKE $%d`, "%"+escapeLike(strings.ToLower(filter.Client))+"%")
	}
	if filter.Search != "" {
		args = append(args, "%"+escapeLike(strings.ToLower(filter.Search))+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(`(
			LOWER(title) LIKE $%[1]d OR LOWER(description) LIKE $%[1]d OR LOWER(ticket_key) LIKE $%[1]d
			OR LOWER(COALESCE(client->>'name', '')) LIKE $%[1]d OR LOWER(COALESCE(client->>'email', '')) LIKE $%[1]d
		)`, n))
	}

	order := "created_at DESC"
	if column, ok := ticketSortColumns[filter.SortBy]; ok {
		direction := "ASC"
		if strings.EqualFold(filter.SortOrder, "desc") {
			direction = "DESC"
		}
		order = column + " " + direction + " NULLS LAST, created_at DESC"
	}

	rows, err := s.db.QueryContext(ctx, ticketSelect+" WHERE "+strings.Join(where, " AND ")+" ORDER BY "+order, args...)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return collectTickets(rows)
}

func collectTickets(rows *sql.Rows) ([]Ticket, error) {
	defer rows.Close()
	items := make([]Ticket, 0)
	for rows.Next() {
		item, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tickets: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetTicket(ctx context.Context, orgID, ticketID string) (Ticket, error) {
	return scanTicket(s.db.QueryRowContext(ctx, ticketSelect+` WHERE organization_id=$1 AND id=$2`, orgID, ticketID))
}

func (s *PostgresStore) GetTicketByKey(ctx context.Context, orgID, key string) (Ticket, error) {
	return scanTicket(s.db.QueryRowContext(ctx, ticketSelect+` WHERE organization_id=$1 AND ticket_key=$2`, orgID, strings.ToUpper(key)))
}

func (s *PostgresStore) TicketKeyExists(ctx context.Context, key string) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE ticket_key=$1)`, key).Scan(&exists); err != nil {
		return false, fmt.Errorf("check ticket key: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListSprintTickets(ctx context.Context, sprintID string) ([]Ticket, error) {
	rows, err := s.db.QueryContext(ctx, ticketSelect+` WHERE sprint_id=$1 ORDER BY created_at ASC`, sprintID)
	if err != nil {
		return nil, fmt.Errorf("list sprint tickets: %w", err)
	}
	return collectTickets(rows)
}

// CreateTicket inserts the ticket and its initial history in one transaction.
func (s *PostgresStore) CreateTicket(ctx context.Context, item Ticket, history []TicketHistory) (Ticket, error) {
	docs, err := encodeTicketDocs(item)
	if err != nil {
		return Ticket{}, fmt.Errorf("encode ticket: %w", err)
	}
	err = s.inTx(ctx, "create ticket", func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO tickets (
				id, organization_id, ticket_key, title, description, status, priority, type, reporter,
				assignee_id, client, labels, auto_assign, custom_fields, time_tracking, story_points,
				due_date, sprint_id, dependencies
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
			RETURNING created_at, updated_at
		`, item.ID, item.OrganizationID, item.Key, item.Title, item.Description, item.Status, item.Priority, item.Type,
			item.Reporter, item.AssigneeID, docs.client, docs.labels, docs.autoAssign, docs.custom, docs.tracking,
			item.StoryPoints, item.DueDate, item.SprintID, docs.deps,
		).Scan(&item.CreatedAt, &item.UpdatedAt); err != nil {
			return fmt.Errorf("insert ticket: %w", err)
		}
		return insertTicketHistory(ctx, tx, item.ID, history)
	})
	if err != nil {
		return Ticket{}, err
	}
	return item, nil
}

// UpdateTicket writes every mutable column and appends history entries.
func (s *PostgresStore) UpdateTicket(ctx context.Context, item Ticket, history []TicketHistory) (Ticket, error) {
	docs, err := encodeTicketDocs(item)
	if err != nil {
		return Ticket{}, fmt.Errorf("encode ticket: %w", err)
	}
	err = s.inTx(ctx, "update ticket", func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `
			UPDATE tickets SET
				title=$3, description=$4, status=$5, priority=$6, type=$7, assignee_id=$8, client=$9,
				labels=$10, auto_assign=$11, custom_fields=$12, time_tracking=$13, story_points=$14,
				due_date=$15, sprint_id=$16, dependencies=$17, updated_at=NOW()
			WHERE organization_id=$1 AND id=$2
			RETURNING updated_at
		`, item.OrganizationID, item.ID, item.Title, item.Description, item.Status, item.Priority, item.Type,
			item.AssigneeID, docs.client, docs.labels, docs.autoAssign, docs.custom, docs.tracking, item.StoryPoints,
			item.DueDate, item.SprintID, docs.deps,
		).Scan(&item.UpdatedAt); err != nil {
			return err
		}
		return insertTicketHistory(ctx, tx, item.ID, history)
	})
	if err != nil {
		return Ticket{}, err
	}
	return item, nil
}

func insertTicketHistory(ctx context.Context, tx *sql.Tx, ticketID string, history []TicketHistory) error {
	for _, entry := range history {
		oldValue, err := jsonValue(entry.OldValue)
		if err != nil {
			return fmt.Errorf("encode history value: %w", err)
		}
		newValue, err := jsonValue(entry.NewValue)
		if err != nil {
			return fmt.Errorf("encode history value: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ticket_history (ticket_id, field, old_value, new_value, changed_by)
			VALUES ($1, $2, $3, $4, $5)
		`, ticketID, entry.Field, oldValue, newValue, entry.ChangedBy); err != nil {
			return fmt.Errorf("insert ticket history: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListTicketHistory(ctx context.Context, ticketID string) ([]TicketHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ticket_id, field, old_value, new_value, changed_by, changed_at
		FROM ticket_history
		WHERE ticket_id=$1
		ORDER BY changed_at ASC, id ASC
	`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list ticket history: %w", err)
	}
	defer rows.Close()

	items := make([]TicketHistory, 0)
	for rows.Next() {
		var entry TicketHistory
		var oldValue, newValue []byte
		if err := rows.Scan(&entry.ID, &entry.TicketID, &entry.Field, &oldValue, &newValue, &entry.ChangedBy, &entry.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan ticket history: %w", err)
		}
		if err := decodeJSON(oldValue, &entry.OldValue); err != nil {
			return nil, fmt.Errorf("decode history value: %w", err)
		}
		if err := decodeJSON(newValue, &entry.NewValue); err != nil {
			return nil, fmt.Errorf("decode history value: %w", err)
		}
		items = append(items, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ticket history: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertTicketComment(ctx context.Context, comment TicketComment) (TicketComment, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO ticket_comments (id, ticket_id, author_id, author_name, text)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, comment.ID, comment.TicketID, comment.AuthorID, comment.AuthorName, comment.Text).Scan(&comment.CreatedAt)
	if err != nil {
		return TicketComment{}, fmt.Errorf("insert ticket comment: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE tickets SET updated_at=NOW() WHERE id=$1`, comment.TicketID); err != nil {
		return TicketComment{}, fmt.Errorf("touch ticket: %w", err)
	}
	return comment, nil
}

func (s *PostgresStore) ListTicketComments(ctx context.Context, ticketID string) ([]TicketComment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ticket_id, author_id, author_name, text, created_at
		FROM ticket_comments
		WHERE ticket_id=$1
		ORDER BY created_at ASC
	`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list ticket comments: %w", err)
	}
	defer rows.Close()

	items := make([]TicketComment, 0)
	for rows.Next() {
		var item TicketComment
		if err := rows.Scan(&item.ID, &item.TicketID, &item.AuthorID, &item.AuthorName, &item.Text, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ticket comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ticket comments: %w", err)
	}
	return items, nil
}

// DeleteTicket removes the ticket with its comments, history and attachment rows.
func (s *PostgresStore) DeleteTicket(ctx context.Context, orgID, ticketID string) error {
	return s.inTx(ctx, "delete ticket", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM attachments WHERE owner_type='ticket' AND owner_id=$1`, ticketID); err != nil {
			return fmt.Errorf("delete ticket attachments: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM tickets WHERE organization_id=$1 AND id=$2`, orgID, ticketID)
		if err != nil {
			return fmt.Errorf("delete ticket: %w", err)
		}
		return requireAffected(result, "delete ticket")
	})
}
