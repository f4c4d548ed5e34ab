package store

import (
	"context"
	"errors"
	"strings"
)

// UpsertUser creates the user row keyed by id or refreshes its username.
func (s *Service) UpsertUser(ctx context.Context, id, username string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return wrap("upsert user", errors.New("user id is required"))
	}
	now := s.timestamp()
	query := `INSERT INTO users (id, username, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET username = excluded.username, updated_at = excluded.updated_at`
	if s.isMySQL() {
		query = `INSERT INTO users (id, username, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE username = VALUES(username), updated_at = VALUES(updated_at)`
	}
	if _, err := s.db.ExecContext(ctx, query, id, username, now, now); err != nil {
		return wrap("upsert user", err)
	}
	return nil
}
