package store

import (
	"context"
	"database/sql"
	"fmt"
)

const channelSelect = `SELECT id, organization_id, name, type, participants, created_at FROM channels`

func scanChannel(row rowScanner) (Channel, error) {
	var item Channel
	var participants []byte
	if err := row.Scan(&item.ID, &item.OrganizationID, &item.Name, &item.Type, &participants, &item.CreatedAt); err != nil {
		return Channel{}, err
	}
	if err := decodeJSON(participants, &item.Participants); err != nil {
		return Channel{}, fmt.Errorf("decode participants: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListChannels(ctx context.Context, orgID string) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx, channelSelect+` WHERE organization_id=$1 ORDER BY created_at ASC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	items := make([]Channel, 0)
	for rows.Next() {
		item, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetChannel(ctx context.Context, orgID, channelID string) (Channel, error) {
	return scanChannel(s.db.QueryRowContext(ctx, channelSelect+` WHERE organization_id=$1 AND id=$2`, orgID, channelID))
}

// FindDirectChannel returns the dm channel whose participants are exactly the two users.
func (s *PostgresStore) FindDirectChannel(ctx context.Context, orgID, userA, userB string) (Channel, error) {
	return scanChannel(s.db.QueryRowContext(ctx, channelSelect+`
		WHERE organization_id=$1 AND type='dm'
			AND jsonb_array_length(participants) = 2
			AND participants ? $2 AND participants ? $3
		ORDER BY created_at ASC
		LIMIT 1
	`, orgID, userA, userB))
}

func (s *PostgresStore) CreateChannel(ctx context.Context, item Channel) (Channel, error) {
	participants, err := jsonList(item.Participants)
	if err != nil {
		return Channel{}, fmt.Errorf("encode participants: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO channels (id, organization_id, name, type, participants)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, item.ID, item.OrganizationID, item.Name, item.Type, participants).Scan(&item.CreatedAt)
	if err != nil {
		return Channel{}, fmt.Errorf("insert channel: %w", err)
	}
	return item, nil
}

// ListMessages returns the channel's messages oldest first with their replies.
func (s *PostgresStore) ListMessages(ctx context.Context, channelID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, channel_id, author, avatar, text, time, created_at
		FROM messages
		WHERE channel_id=$1
		ORDER BY created_at ASC
	`, channelID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	items := make([]Message, 0)
	index := map[string]int{}
	for rows.Next() {
		var item Message
		if err := rows.Scan(&item.ID, &item.ChannelID, &item.Author, &item.Avatar, &item.Text, &item.Time, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		item.Replies = []MessageReply{}
		index[item.ID] = len(items)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	if len(items) == 0 {
		return items, nil
	}

	replyRows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.message_id, r.author, r.avatar, r.text, r.time, r.created_at
		FROM message_replies r
		JOIN messages m ON m.id = r.message_id
		WHERE m.channel_id=$1
		ORDER BY r.created_at ASC
	`, channelID)
	if err != nil {
		return nil, fmt.Errorf("list channel replies: %w", err)
	}
	replies, err := collectReplies(replyRows)
	if err != nil {
		return nil, err
	}
	for _, reply := range replies {
		if i, ok := index[reply.MessageID]; ok {
			items[i].Replies = append(items[i].Replies, reply)
		}
	}
	return items, nil
}

// GetMessage loads a message only when its channel belongs to orgID.
func (s *PostgresStore) GetMessage(ctx context.Context, orgID, messageID string) (Message, error) {
	var item Message
	err := s.db.QueryRowContext(ctx, `
		SELECT m.id, m.channel_id, m.author, m.avatar, m.text, m.time, m.created_at
		FROM messages m
		JOIN channels c ON c.id = m.channel_id
		WHERE m.id=$1 AND c.organization_id=$2
	`, messageID, orgID).Scan(&item.ID, &item.ChannelID, &item.Author, &item.Avatar, &item.Text, &item.Time, &item.CreatedAt)
	if err != nil {
		return Message{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertMessage(ctx context.Context, item Message) (Message, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, channel_id, author, avatar, text, time)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, item.ID, item.ChannelID, item.Author, item.Avatar, item.Text, item.Time).Scan(&item.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	item.Replies = []MessageReply{}
	return item, nil
}

func (s *PostgresStore) ListReplies(ctx context.Context, messageID string) ([]MessageReply, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, author, avatar, text, time, created_at
		FROM message_replies
		WHERE message_id=$1
		ORDER BY created_at ASC
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	return collectReplies(rows)
}

func collectReplies(rows *sql.Rows) ([]MessageReply, error) {
	defer rows.Close()
	items := make([]MessageReply, 0)
	for rows.Next() {
		var item MessageReply
		if err := rows.Scan(&item.ID, &item.MessageID, &item.Author, &item.Avatar, &item.Text, &item.Time, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reply: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate replies: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertReply(ctx context.Context, item MessageReply) (MessageReply, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO message_replies (id, message_id, author, avatar, text, time)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, item.ID, item.MessageID, item.Author, item.Avatar, item.Text, item.Time).Scan(&item.CreatedAt)
	if err != nil {
		return MessageReply{}, fmt.Errorf("insert reply: %w", err)
	}
	return item, nil
}
