package store

import (
	"context"
	"database/sql"
	"fmt"
)

const sprintSelect = `
	SELECT id, organization_id, name, description, start_date, end_date, status, goals, velocity,
		created_by, created_at, updated_at
	FROM sprints
`

func scanSprint(row rowScanner) (Sprint, error) {
	var item Sprint
	var goals []byte
	err := row.Scan(&item.ID, &item.OrganizationID, &item.Name, &item.Description, &item.StartDate, &item.EndDate,
		&item.Status, &goals, &item.Velocity, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Sprint{}, err
	}
	if err := decodeJSON(goals, &item.Goals); err != nil {
		return Sprint{}, fmt.Errorf("decode sprint goals: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListSprints(ctx context.Context, orgID string) ([]Sprint, error) {
	rows, err := s.db.QueryContext(ctx, sprintSelect+` WHERE organization_id=$1 ORDER BY start_date DESC, created_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list sprints: %w", err)
	}
	defer rows.Close()

	items := make([]Sprint, 0)
	for rows.Next() {
		item, err := scanSprint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sprint: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sprints: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetSprint(ctx context.Context, orgID, sprintID string) (Sprint, error) {
	return scanSprint(s.db.QueryRowContext(ctx, sprintSelect+` WHERE organization_id=$1 AND id=$2`, orgID, sprintID))
}

// GetActiveSprint returns the most recently started active sprint.
func (s *PostgresStore) GetActiveSprint(ctx context.Context, orgID string) (Sprint, error) {
	return scanSprint(s.db.QueryRowContext(ctx, sprintSelect+`
		WHERE organization_id=$1 AND status='active'
		ORDER BY start_date DESC
		LIMIT 1
	`, orgID))
}

func (s *PostgresStore) CreateSprint(ctx context.Context, item Sprint) (Sprint, error) {
	goals, err := jsonList(item.Goals)
	if err != nil {
		return Sprint{}, fmt.Errorf("encode sprint goals: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO sprints (id, organization_id, name, description, start_date, end_date, status, goals, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING velocity, created_at, updated_at
	`, item.ID, item.OrganizationID, item.Name, item.Description, item.StartDate, item.EndDate, item.Status, goals, item.CreatedBy).
		Scan(&item.Velocity, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Sprint{}, fmt.Errorf("insert sprint: %w", err)
	}
	return item, nil
}

// UpdateSprint stores the sprint. When moveUnfinished is set, every ticket of
// the sprint that is not done goes back to the backlog with a status history
// entry by changedBy. Velocity is always recomputed from the story points of
// the sprint's tickets. The ids of moved tickets are returned.
func (s *PostgresStore) UpdateSprint(ctx context.Context, item Sprint, moveUnfinished bool, changedBy string) (Sprint, []string, error) {
	goals, err := jsonList(item.Goals)
	if err != nil {
		return Sprint{}, nil, fmt.Errorf("encode sprint goals: %w", err)
	}
	var moved []string
	err = s.inTx(ctx, "update sprint", func(tx *sql.Tx) error {
		if moveUnfinished {
			if moved, err = backlogSprintTickets(ctx, tx, item.ID, false, changedBy); err != nil {
				return err
			}
		}
		return tx.QueryRowContext(ctx, `
			UPDATE sprints SET
				name=$3, description=$4, start_date=$5, end_date=$6, status=$7, goals=$8,
				velocity=(SELECT COALESCE(SUM(story_points), 0) FROM tickets WHERE sprint_id=$2),
				updated_at=NOW()
			WHERE organization_id=$1 AND id=$2
			RETURNING velocity, updated_at
		`, item.OrganizationID, item.ID, item.Name, item.Description, item.StartDate, item.EndDate, item.Status, goals).
			Scan(&item.Velocity, &item.UpdatedAt)
	})
	if err != nil {
		return Sprint{}, nil, err
	}
	return item, moved, nil
}

// DeleteSprint detaches the sprint's tickets into the backlog, recording the
// change in their history, and removes the sprint. It returns the detached ids.
func (s *PostgresStore) DeleteSprint(ctx context.Context, orgID, sprintID, changedBy string) ([]string, error) {
	var detached []string
	err := s.inTx(ctx, "delete sprint", func(tx *sql.Tx) error {
		var err error
		if detached, err = backlogSprintTickets(ctx, tx, sprintID, true, changedBy); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM sprints WHERE organization_id=$1 AND id=$2`, orgID, sprintID)
		if err != nil {
			return fmt.Errorf("delete sprint: %w", err)
		}
		return requireAffected(result, "delete sprint")
	})
	if err != nil {
		return nil, err
	}
	return detached, nil
}

// backlogSprintTickets moves tickets of a sprint to the backlog. Without
// detach only unfinished tickets move and they stay in the sprint.
func backlogSprintTickets(ctx context.Context, tx *sql.Tx, sprintID string, detach bool, changedBy string) ([]string, error) {
	query := `SELECT id, status FROM tickets WHERE sprint_id=$1 AND status <> 'done' FOR UPDATE`
	if detach {
		query = `SELECT id, status FROM tickets WHERE sprint_id=$1 FOR UPDATE`
	}
	rows, err := tx.QueryContext(ctx, query, sprintID)
	if err != nil {
		return nil, fmt.Errorf("select sprint tickets: %w", err)
	}
	type row struct{ id, status string }
	var tickets []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.status); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan sprint ticket: %w", err)
		}
		tickets = append(tickets, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sprint tickets: %w", err)
	}

	update := `UPDATE tickets SET status='backlog', updated_at=NOW() WHERE id=$1`
	if detach {
		update = `UPDATE tickets SET sprint_id=NULL, status='backlog', updated_at=NOW() WHERE id=$1`
	}
	ids := make([]string, 0, len(tickets))
	for _, ticket := range tickets {
		if _, err := tx.ExecContext(ctx, update, ticket.id); err != nil {
			return nil, fmt.Errorf("return ticket to backlog: %w", err)
		}
		var history []TicketHistory
		if ticket.status != "backlog" {
			history = append(history, TicketHistory{Field: "status", OldValue: ticket.status, NewValue: "backlog", ChangedBy: changedBy})
		}
		if detach {
			history = append(history, TicketHistory{Field: "sprint", OldValue: sprintID, NewValue: nil, ChangedBy: changedBy})
		}
		if err := insertTicketHistory(ctx, tx, ticket.id, history); err != nil {
			return nil, err
		}
		ids = append(ids, ticket.id)
	}
	return ids, nil
}
