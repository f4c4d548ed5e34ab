package history

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"muhabet/internal/models"
	"muhabet/internal/redis"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

type MessageQuerier interface {
	QueryMessages(ctx context.Context, channelID string, limit int, before *time.Time) ([]*models.Message, error)
}

type ChannelResolver interface {
	Resolve(ctx context.Context) (string, error)
}

// Service serves paginated history of the global channel, oldest first.
type Service struct {
	store    MessageQuerier
	channels ChannelResolver
	cache    *pageCache
}

// NewService builds the history service. client may be nil, in which case only
// the in-process cache tier is used.
func NewService(store MessageQuerier, channels ChannelResolver, client *redis.Client, ttl time.Duration) *Service {
	return &Service{
		store:    store,
		channels: channels,
		cache:    newPageCache(client, ttl),
	}
}

// Recent returns up to limit messages older than before (or the newest ones when before is nil).
func (s *Service) Recent(ctx context.Context, limit int, before *time.Time) ([]*models.Message, error) {
	limit = ClampLimit(limit)
	channelID, err := s.channels.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve global channel: %w", err)
	}
	var gen uint64
	if before == nil {
		if page, ok := s.cache.load(ctx, channelID, limit); ok {
			return page, nil
		}
		gen = s.cache.generation(channelID)
	}
	messages, err := s.store.QueryMessages(ctx, channelID, limit, before)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	if messages == nil {
		messages = []*models.Message{}
	}
	if before == nil {
		s.cache.store(ctx, channelID, limit, gen, messages)
	}
	return messages, nil
}

// MessageCreated invalidates cached pages. It is meant to be the realtime engine's hook and
// must finish before the message is announced, so a reader never caches a page missing it.
func (s *Service) MessageCreated(msg *models.Message) {
	if msg == nil {
		return
	}
	s.cache.invalidate(msg.ChannelID)
}

// Listen follows invalidations published by sibling processes until ctx is done.
func (s *Service) Listen(ctx context.Context) error {
	return s.cache.listen(ctx)
}

// ClampLimit forces limit into 1..MaxLimit, using DefaultLimit for anything non-positive.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// ParseLimit reads a query value; non-numeric input falls back to DefaultLimit.
func ParseLimit(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultLimit
	}
	return ClampLimit(n)
}

// ParseBefore reads an RFC 3339 cursor. Empty or malformed input yields nil.
func ParseBefore(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil
	}
	return &t
}
