package store

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/google/uuid"

	"muhabet/internal/models"
)

// FindGlobalChannelID returns the id of the GLOBAL channel or ErrChannelNotFound.
func (s *Service) FindGlobalChannelID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM channels WHERE kind = ? ORDER BY created_at ASC LIMIT 1`,
		string(models.ChannelKindGlobal),
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrChannelNotFound
		}
		return "", wrap("find global channel", err)
	}
	return id, nil
}

// EnsureGlobalChannel provisions the GLOBAL channel if it is missing.
func (s *Service) EnsureGlobalChannel(ctx context.Context) (string, bool, error) {
	id, err := s.FindGlobalChannelID(ctx)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, ErrChannelNotFound) {
		return "", false, err
	}
	id = uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO channels (id, kind, created_at) VALUES (?, ?, ?)`,
		id, string(models.ChannelKindGlobal), s.timestamp(),
	); err != nil {
		return "", false, wrap("create global channel", err)
	}
	return id, true, nil
}

type channelFinder interface {
	FindGlobalChannelID(ctx context.Context) (string, error)
}

// ChannelResolver caches the global channel id for the lifetime of the process.
// There is no invalidation: renaming or replacing the channel requires a restart.
// Failed lookups are not cached.
type ChannelResolver struct {
	finder channelFinder

	mu sync.Mutex
	id string
}

func NewChannelResolver(finder channelFinder) *ChannelResolver {
	return &ChannelResolver{finder: finder}
}

func (r *ChannelResolver) Resolve(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.id != "" {
		return r.id, nil
	}
	id, err := r.finder.FindGlobalChannelID(ctx)
	if err != nil {
		return "", err
	}
	r.id = id
	return id, nil
}
