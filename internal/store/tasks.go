package store

import (
	"context"
	"database/sql"
	"fmt"
)

const taskSelect = `
	SELECT id, organization_id, title, description, status, priority, author, assignee, tags, due_date,
		created_at, updated_at
	FROM tasks
`

func scanTask(row rowScanner) (Task, error) {
	var item Task
	var tags []byte
	err := row.Scan(&item.ID, &item.OrganizationID, &item.Title, &item.Description, &item.Status, &item.Priority,
		&item.Author, &item.Assignee, &tags, &item.DueDate, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Task{}, err
	}
	if err := decodeJSON(tags, &item.Tags); err != nil {
		return Task{}, fmt.Errorf("decode task tags: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context, orgID string, filter TaskFilter) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, taskSelect+`
		WHERE organization_id=$1
			AND ($2 = '' OR status = $2)
			AND ($3 = '' OR priority = $3)
			AND ($4 = '' OR assignee = $4)
			AND ($5 = '' OR author = $5)
			AND ($6 = '' OR tags ? $6)
		ORDER BY created_at DESC
	`, orgID, filter.Status, filter.Priority, filter.Assignee, filter.Author, filter.Tag)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	items := make([]Task, 0)
	for rows.Next() {
		item, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetTask(ctx context.Context, orgID, taskID string) (Task, error) {
	return scanTask(s.db.QueryRowContext(ctx, taskSelect+` WHERE organization_id=$1 AND id=$2`, orgID, taskID))
}

func (s *PostgresStore) CreateTask(ctx context.Context, item Task) (Task, error) {
	tags, err := jsonList(item.Tags)
	if err != nil {
		return Task{}, fmt.Errorf("encode task tags: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO tasks (id, organization_id, title, description, status, priority, author, assignee, tags, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, item.ID, item.OrganizationID, item.Title, item.Description, item.Status, item.Priority, item.Author,
		item.Assignee, tags, item.DueDate).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) UpdateTask(ctx context.Context, item Task, history []TaskHistory) (Task, error) {
	tags, err := jsonList(item.Tags)
	if err != nil {
		return Task{}, fmt.Errorf("encode task tags: %w", err)
	}
	err = s.inTx(ctx, "update task", func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `
			UPDATE tasks SET
				title=$3, description=$4, status=$5, priority=$6, assignee=$7, tags=$8, due_date=$9, updated_at=NOW()
			WHERE organization_id=$1 AND id=$2
			RETURNING updated_at
		`, item.OrganizationID, item.ID, item.Title, item.Description, item.Status, item.Priority, item.Assignee,
			tags, item.DueDate).Scan(&item.UpdatedAt); err != nil {
			return err
		}
		for _, entry := range history {
			entry.TaskID = item.ID
			if err := insertTaskHistory(ctx, tx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Task{}, err
	}
	return item, nil
}

// InsertTaskHistory records an action that does not change the task row itself.
func (s *PostgresStore) InsertTaskHistory(ctx context.Context, entry TaskHistory) error {
	return s.inTx(ctx, "insert task history", func(tx *sql.Tx) error {
		if err := insertTaskHistory(ctx, tx, entry); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE tasks SET updated_at=NOW() WHERE id=$1`, entry.TaskID)
		return err
	})
}

func insertTaskHistory(ctx context.Context, tx *sql.Tx, entry TaskHistory) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO task_history (task_id, action, author, from_value, to_value)
		VALUES ($1, $2, $3, $4, $5)
	`, entry.TaskID, entry.Action, entry.Author, entry.From, entry.To); err != nil {
		return fmt.Errorf("insert task history: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTaskHistory(ctx context.Context, taskID string) ([]TaskHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, action, author, from_value, to_value, created_at
		FROM task_history
		WHERE task_id=$1
		ORDER BY created_at ASC, id ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list task history: %w", err)
	}
	defer rows.Close()

	items := make([]TaskHistory, 0)
	for rows.Next() {
		var item TaskHistory
		if err := rows.Scan(&item.ID, &item.TaskID, &item.Action, &item.Author, &item.From, &item.To, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task history: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task history: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertTaskComment(ctx context.Context, comment TaskComment) (TaskComment, error) {
	mentions, err := jsonList(comment.Mentions)
	if err != nil {
		return TaskComment{}, fmt.Errorf("encode mentions: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO task_comments (id, task_id, author, text, mentions)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, comment.ID, comment.TaskID, comment.Author, comment.Text, mentions).Scan(&comment.CreatedAt)
	if err != nil {
		return TaskComment{}, fmt.Errorf("insert task comment: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE tasks SET updated_at=NOW() WHERE id=$1`, comment.TaskID); err != nil {
		return TaskComment{}, fmt.Errorf("touch task: %w", err)
	}
	return comment, nil
}

// ListTaskComments returns comments oldest first. Attachments are not loaded.
func (s *PostgresStore) ListTaskComments(ctx context.Context, taskID string) ([]TaskComment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, author, text, mentions, created_at
		FROM task_comments
		WHERE task_id=$1
		ORDER BY created_at ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list task comments: %w", err)
	}
	defer rows.Close()

	items := make([]TaskComment, 0)
	for rows.Next() {
		var item TaskComment
		var mentions []byte
		if err := rows.Scan(&item.ID, &item.TaskID, &item.Author, &item.Text, &mentions, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task comment: %w", err)
		}
		if err := decodeJSON(mentions, &item.Mentions); err != nil {
			return nil, fmt.Errorf("decode mentions: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task comments: %w", err)
	}
	return items, nil
}

// DeleteTask removes the task, its comments and the attachment rows of both.
func (s *PostgresStore) DeleteTask(ctx context.Context, orgID, taskID string) error {
	return s.inTx(ctx, "delete task", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM attachments
			WHERE (owner_type='task' AND owner_id=$1)
				OR (owner_type='task_comment' AND owner_id IN (SELECT id FROM task_comments WHERE task_id=$1))
		`, taskID); err != nil {
			return fmt.Errorf("delete task attachments: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE organization_id=$1 AND id=$2`, orgID, taskID)
		if err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return requireAffected(result, "delete task")
	})
}
