package history

import (
	"context"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"

	"muhabet/internal/config"
	"muhabet/internal/models"
	"muhabet/internal/redis"
)

func TestPageCacheSharedThroughRedis(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	channelID := "test-" + uuid.NewString()
	writer := newPageCache(client, time.Minute)
	reader := newPageCache(client, time.Minute)

	page := []*models.Message{{ID: "m1", Body: "hi", SenderID: "u1", Username: "guest-1234", CreatedAt: time.Now().UTC().Truncate(time.Millisecond)}}
	writer.store(ctx, channelID, 50, writer.generation(channelID), page)

	got, ok := reader.load(ctx, channelID, 50)
	if !ok || len(got) != 1 || got[0].ID != "m1" || !got[0].CreatedAt.Equal(page[0].CreatedAt) {
		t.Fatalf("expected page through redis, got %+v", got)
	}
	if _, ok := reader.load(ctx, channelID, 10); ok {
		t.Fatalf("pages are per limit")
	}

	listenCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go reader.listen(listenCtx)
	time.Sleep(100 * time.Millisecond)

	writer.invalidate(channelID)
	deadline := time.Now().Add(2 * time.Second)
	for {
		reader.mu.Lock()
		n := len(reader.local)
		reader.mu.Unlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("sibling memory tier not invalidated")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, ok := reader.load(ctx, channelID, 50); ok {
		t.Fatalf("redis tier not invalidated")
	}
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed history tests")
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("atoi port: %v", err)
	}
	cfg := &config.Config{Redis: config.RedisConfig{Enabled: true, Host: host, Port: port}}
	client, err := redis.NewRedisClient(cfg)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}
