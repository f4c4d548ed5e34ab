package presence

import (
	"sync"
	"testing"

	"muhabet/internal/models"
)

func TestRegistryRegisterRemoveList(t *testing.T) {
	r := NewRegistry()
	r.Register("a", models.Identity{ID: "a", Username: "guest-2000"})
	r.Register("b", models.Identity{ID: "b", Username: "guest-1000"})

	list := r.List()
	if len(list) != 2 || list[0].ID != "b" || list[1].ID != "a" {
		t.Fatalf("unexpected snapshot: %#v", list)
	}

	got, ok := r.Remove("a")
	if !ok || got.Username != "guest-2000" {
		t.Fatalf("remove returned %#v, %v", got, ok)
	}
	if _, ok := r.Remove("a"); ok {
		t.Fatalf("second remove should report absence")
	}
	if r.Len() != 1 {
		t.Fatalf("expected one entry, got %d", r.Len())
	}
}

func TestRegistryRegisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Register("a", models.Identity{ID: "a", Username: "guest-1111"})
	r.Register("a", models.Identity{ID: "a", Username: "guest-2222"})
	list := r.List()
	if len(list) != 1 {
		t.Fatalf("duplicate registration produced %d entries", len(list))
	}
	if list[0].Username != "guest-2222" {
		t.Fatalf("register should overwrite, got %s", list[0].Username)
	}
}

func TestRegistrySnapshotIsDetached(t *testing.T) {
	r := NewRegistry()
	r.Register("a", models.Identity{ID: "a", Username: "guest-1111"})
	list := r.List()
	list[0].Username = "mutated"
	if got, _ := r.Get("a"); got.Username != "guest-1111" {
		t.Fatalf("snapshot aliases registry state")
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('A' + i%26))
			r.Register(id, models.Identity{ID: id, Username: "guest"})
			_ = r.List()
			r.Remove(id)
		}(i)
	}
	wg.Wait()
	r.Reset()
	if r.Len() != 0 {
		t.Fatalf("reset left %d entries", r.Len())
	}
}
