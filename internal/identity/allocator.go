package identity

import (
	"fmt"
	"math/rand/v2"
	"sync"
)

const (
	Prefix    = "guest-"
	minSuffix = 1000
	maxSuffix = 9999
)

// Allocator hands out ephemeral display names. Names are not unique across live sessions.
type Allocator struct {
	mu   sync.Mutex
	intn func(n int) int
}

// NewAllocator returns an allocator backed by the global random source.
func NewAllocator() *Allocator {
	return &Allocator{intn: rand.IntN}
}

// NewSeededAllocator returns a deterministic allocator, useful in tests.
func NewSeededAllocator(seed uint64) *Allocator {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return &Allocator{intn: r.IntN}
}

// Allocate returns a name like "guest-4821".
func (a *Allocator) Allocate() string {
	a.mu.Lock()
	n := minSuffix + a.intn(maxSuffix-minSuffix+1)
	a.mu.Unlock()
	return fmt.Sprintf("%s%d", Prefix, n)
}
