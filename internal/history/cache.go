package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"muhabet/internal/models"
	"muhabet/internal/redis"
)

const (
	invalidateChannel = "history:invalidate"
	redisOpTimeout    = 500 * time.Millisecond
)

type invalidateMessage struct {
	Origin    string `json:"origin"`
	ChannelID string `json:"channel_id"`
}

type localPage struct {
	messages []*models.Message
	expires  time.Time
}

// pageCache keeps the newest history page per limit in process memory and in redis.
// Writes invalidate both tiers and tell sibling processes to drop their memory tier.
type pageCache struct {
	client *redis.Client
	ttl    time.Duration
	origin string

	mu    sync.Mutex
	local map[string]localPage
	gens  map[string]uint64 // bumped by every invalidation of a channel
}

func newPageCache(client *redis.Client, ttl time.Duration) *pageCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &pageCache{
		client: client,
		ttl:    ttl,
		origin: uuid.NewString(),
		local:  make(map[string]localPage),
		gens:   make(map[string]uint64),
	}
}

// generation is read before querying the store; store skips a page read under an older generation.
func (c *pageCache) generation(channelID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[channelID]
}

func (c *pageCache) current(channelID string, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[channelID] == gen
}

func pageKey(channelID string, limit int) string {
	return fmt.Sprintf("history:%s:latest:%d", channelID, limit)
}

func (c *pageCache) load(ctx context.Context, channelID string, limit int) ([]*models.Message, bool) {
	key := pageKey(channelID, limit)

	c.mu.Lock()
	page, ok := c.local[key]
	if ok && time.Now().After(page.expires) {
		delete(c.local, key)
		ok = false
	}
	c.mu.Unlock()
	if ok {
		return page.messages, true
	}

	if c.client == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	raw, err := c.client.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			log.Printf("history load page rdb failed: %v", err)
		}
		return nil, false
	}
	var messages []*models.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		log.Printf("history decode page rdb failed: %v", err)
		return nil, false
	}
	c.remember(key, messages)
	return messages, true
}

func (c *pageCache) store(ctx context.Context, channelID string, limit int, gen uint64, messages []*models.Message) {
	key := pageKey(channelID, limit)
	c.mu.Lock()
	if c.gens[channelID] != gen {
		c.mu.Unlock()
		return
	}
	c.local[key] = localPage{messages: messages, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	if c.client == nil {
		return
	}
	data, err := json.Marshal(messages)
	if err != nil {
		log.Printf("history page marshal failed: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := c.client.Set(ctx, key, data, c.ttl); err != nil {
		log.Printf("history store page rdb failed: %v", err)
		return
	}
	// an invalidation that ran while the page was being written would miss it
	if !c.current(channelID, gen) {
		if err := c.client.Del(ctx, key); err != nil {
			log.Printf("history drop stale page rdb failed: %v", err)
		}
	}
}

func (c *pageCache) remember(key string, messages []*models.Message) {
	c.mu.Lock()
	c.local[key] = localPage{messages: messages, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *pageCache) dropLocal(channelID string) {
	c.mu.Lock()
	clear(c.local)
	c.gens[channelID]++
	c.mu.Unlock()
}

// invalidate drops every cached page of the channel and notifies siblings.
func (c *pageCache) invalidate(channelID string) {
	c.dropLocal(channelID)
	if c.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := c.client.DelPattern(ctx, fmt.Sprintf("history:%s:*", channelID)); err != nil {
		log.Printf("history invalidate rdb failed: %v", err)
	}
	payload, err := json.Marshal(invalidateMessage{Origin: c.origin, ChannelID: channelID})
	if err != nil {
		log.Printf("history invalidation marshal failed: %v", err)
		return
	}
	if err := c.client.Publish(ctx, invalidateChannel, payload); err != nil {
		log.Printf("history publish invalidation failed: %v", err)
	}
}

// listen drops the memory tier whenever a sibling process publishes an invalidation.
// It returns when ctx is done.
func (c *pageCache) listen(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	sub, err := c.client.Subscribe(ctx, invalidateChannel)
	if err != nil {
		return err
	}
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var inv invalidateMessage
			if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil {
				log.Printf("history invalidation decode failed: %v", err)
				continue
			}
			if inv.Origin == c.origin {
				continue
			}
			c.dropLocal(inv.ChannelID)
		}
	}
}
