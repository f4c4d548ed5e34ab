package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"muhabet/internal/models"
	"muhabet/internal/store"
)

type provisionedChannel struct {
	mu    sync.Mutex
	ready bool
	calls int
}

func (c *provisionedChannel) Resolve(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if !c.ready {
		return "", store.ErrChannelNotFound
	}
	return "global", nil
}

func (c *provisionedChannel) provision() {
	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()
}

func (c *provisionedChannel) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestMissingGlobalChannelDropsMessagesUntilProvisioned(t *testing.T) {
	messages := newFakeStore()
	channels := &provisionedChannel{}
	e := startEngine(t, messages, channels, Options{})
	a := newFakeClient("A")
	mustConnect(t, e, a)

	e.Submit("A", []byte(`"lost"`))
	waitFor(t, func() bool { return channels.callCount() == 1 })

	// the engine keeps serving while the channel is missing
	b := newFakeClient("B")
	mustConnect(t, e, b)
	if n := len(a.ofType(TypeMessageCreated)); n != 0 {
		t.Fatalf("message must not be broadcast without a channel, got %d", n)
	}
	if n := len(a.ofType(TypeMessageRejected)); n != 0 {
		t.Fatalf("rejections are silent by default, got %d notices", n)
	}

	channels.provision()
	e.Submit("A", []byte(`"kept"`))
	waitFor(t, func() bool { return len(b.ofType(TypeMessageCreated)) == 1 })

	created := a.ofType(TypeMessageCreated)
	if len(created) != 1 || decodeMessage(t, created[0])["body"] != "kept" {
		t.Fatalf("expected only the message sent after provisioning, got %d", len(created))
	}
	if got := messages.created(); len(got) != 1 || got[0] != "kept" {
		t.Fatalf("unexpected persisted bodies %v", got)
	}
}

func TestMessageCreatedHookRunsOffTheHubBeforeBroadcast(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	e := startEngine(t, newFakeStore(), fixedChannel("global"), Options{OnMessageCreated: func(*models.Message) {
		once.Do(func() { close(entered) })
		<-release
	}})
	a := newFakeClient("A")
	mustConnect(t, e, a)

	e.Submit("A", []byte(`"hi"`))
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("hook was not called")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c := newFakeClient("C")
	if _, err := e.Connect(ctx, c); err != nil {
		t.Fatalf("hub should stay responsive while the hook runs: %v", err)
	}
	if n := len(a.ofType(TypeMessageCreated)); n != 0 {
		t.Fatalf("message announced before the hook finished")
	}

	close(release)
	waitFor(t, func() bool {
		return len(a.ofType(TypeMessageCreated)) == 1 && len(c.ofType(TypeMessageCreated)) == 1
	})
}

func TestConnectFailsWhenHelloCannotBeDelivered(t *testing.T) {
	e := startEngine(t, newFakeStore(), fixedChannel("global"), Options{})
	a := newFakeClient("A")
	mustConnect(t, e, a)

	dead := newFakeClient("dead")
	dead.Close()
	if _, err := e.Connect(context.Background(), dead); !errors.Is(err, ErrClientUnavailable) {
		t.Fatalf("expected ErrClientUnavailable, got %v", err)
	}
	if n := len(a.ofType(TypeUserJoined)); n != 1 {
		t.Fatalf("dead client must not be announced, A saw %d joins", n)
	}
	if n := len(a.ofType(TypeUserLeft)); n != 0 {
		t.Fatalf("dead client must not produce user_left, A saw %d", n)
	}
	if users := e.ActiveUsers(); len(users) != 1 || users[0].ID != "A" {
		t.Fatalf("dead client leaked into presence: %+v", users)
	}
	e.Disconnect(dead)
	if n := len(a.ofType(TypeUserLeft)); n != 0 {
		t.Fatalf("disconnecting a never-active client must be a no-op")
	}
}
