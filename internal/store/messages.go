package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"muhabet/internal/models"
)

// CreateMessage appends a message; id and created_at are assigned here.
// The sender must already exist (see UpsertUser).
func (s *Service) CreateMessage(ctx context.Context, body, senderID, channelID string) (*models.Message, error) {
	if senderID == "" || channelID == "" {
		return nil, wrap("create message", errors.New("sender and channel are required"))
	}
	id, err := newMessageID()
	if err != nil {
		return nil, wrap("create message", fmt.Errorf("message id: %w", err))
	}
	now := s.timestamp()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, body, sender_id, channel_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, body, senderID, channelID, now,
	); err != nil {
		return nil, wrap("create message", err)
	}

	var username string
	if err := s.db.QueryRowContext(ctx,
		`SELECT username FROM users WHERE id = ?`, senderID,
	).Scan(&username); err != nil {
		return nil, wrap("resolve sender", err)
	}
	return &models.Message{
		ID:        id,
		Body:      body,
		SenderID:  senderID,
		ChannelID: channelID,
		Username:  username,
		CreatedAt: now,
	}, nil
}

// QueryMessages returns up to limit messages of the channel created strictly before
// `before` (when set). The newest page is selected and returned oldest-first.
func (s *Service) QueryMessages(ctx context.Context, channelID string, limit int, before *time.Time) ([]*models.Message, error) {
	if limit <= 0 {
		return []*models.Message{}, nil
	}
	query := `SELECT m.id, m.body, m.sender_id, m.channel_id, u.username, m.created_at
		FROM messages m JOIN users u ON u.id = m.sender_id
		WHERE m.channel_id = ?`
	args := []any{channelID}
	if before != nil {
		query += ` AND m.created_at < ?`
		args = append(args, before.UTC())
	}
	query += ` ORDER BY m.created_at DESC, m.id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("query messages", err)
	}
	defer rows.Close()

	messages := make([]*models.Message, 0, limit)
	for rows.Next() {
		m := new(models.Message)
		if err := rows.Scan(&m.ID, &m.Body, &m.SenderID, &m.ChannelID, &m.Username, &m.CreatedAt); err != nil {
			return nil, wrap("scan message", err)
		}
		m.CreatedAt = m.CreatedAt.UTC()
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("query messages", err)
	}
	return lo.Reverse(messages), nil
}
