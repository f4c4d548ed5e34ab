package worker

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestDispatcherRunsJobsInOrderPerConnection(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = map[string][]string{}
	)
	handler := HandlerFunc(func(sub Submission) {
		time.Sleep(time.Millisecond)
		mu.Lock()
		seen[sub.ConnectionID] = append(seen[sub.ConnectionID], sub.Body)
		mu.Unlock()
	})
	d := NewDispatcher(Options{MinWorkers: 2, MaxWorkers: 4, QueueSize: 64}, handler)
	defer d.Stop()

	for i := 0; i < 10; i++ {
		for _, conn := range []string{"a", "b", "c"} {
			if err := d.Submit(Submission{ConnectionID: conn, Body: fmt.Sprint(i)}); err != nil {
				t.Fatalf("submit: %v", err)
			}
		}
	}

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen["a"]) == 10 && len(seen["b"]) == 10 && len(seen["c"]) == 10
	})

	mu.Lock()
	defer mu.Unlock()
	for conn, bodies := range seen {
		for i, body := range bodies {
			if body != fmt.Sprint(i) {
				t.Fatalf("connection %s out of order: %v", conn, bodies)
			}
		}
	}
}

func TestDispatcherSerializesJobsOfOneConnection(t *testing.T) {
	var inFlight, maxInFlight, done int32
	handler := HandlerFunc(func(sub Submission) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&maxInFlight)
			if n <= old || atomic.CompareAndSwapInt32(&maxInFlight, old, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		atomic.AddInt32(&done, 1)
	})
	d := NewDispatcher(Options{MinWorkers: 4, MaxWorkers: 4, QueueSize: 32}, handler)
	defer d.Stop()

	for i := 0; i < 20; i++ {
		if err := d.Submit(Submission{ConnectionID: "solo"}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	waitFor(t, 2*time.Second, func() bool { return atomic.LoadInt32(&done) == 20 })
	waitFor(t, time.Second, func() bool { return d.Pending("solo") == 0 })
	if got := atomic.LoadInt32(&maxInFlight); got != 1 {
		t.Fatalf("expected one job in flight per connection, saw %d", got)
	}
}

func TestDispatcherSubmitReportsBusy(t *testing.T) {
	block := make(chan struct{})
	handler := HandlerFunc(func(sub Submission) { <-block })
	d := NewDispatcher(Options{MinWorkers: 1, MaxWorkers: 1, QueueSize: 1}, handler)
	defer d.Stop()
	defer close(block)

	var busy bool
	for i := 0; i < 50; i++ {
		if err := d.Submit(Submission{ConnectionID: fmt.Sprint(i)}); err == ErrDispatcherBusy {
			busy = true
			break
		}
	}
	if !busy {
		t.Fatalf("expected ErrDispatcherBusy once the queue filled")
	}
}

func TestDispatcherRejectsAfterStop(t *testing.T) {
	d := NewDispatcher(Options{MinWorkers: 1, MaxWorkers: 1, QueueSize: 4}, HandlerFunc(func(Submission) {}))
	d.Stop()
	d.Stop()
	if err := d.Submit(Submission{ConnectionID: "x"}); err != ErrDispatcherStopped {
		t.Fatalf("expected ErrDispatcherStopped, got %v", err)
	}
}

func TestPoolRetiresIdleWorkersDownToMin(t *testing.T) {
	p := newJobChannelPool(1, 3, 20*time.Millisecond, HandlerFunc(func(Submission) {}))
	defer p.close()

	var chans []chan Job
	for i := 0; i < 3; i++ {
		chans = append(chans, p.acquire())
	}
	if running, _ := p.size(); running != 3 {
		t.Fatalf("expected 3 running workers, got %d", running)
	}
	for _, ch := range chans {
		p.Release(ch)
	}
	waitFor(t, 2*time.Second, func() bool {
		running, _ := p.size()
		return running == 1
	})
}

func TestDispatcherCapsBacklogPerConnection(t *testing.T) {
	block := make(chan struct{})
	var done int32
	handler := HandlerFunc(func(sub Submission) {
		<-block
		atomic.AddInt32(&done, 1)
	})
	d := NewDispatcher(Options{MinWorkers: 4, MaxWorkers: 4, QueueSize: 3}, handler)
	defer d.Stop()

	accepted := 0
	for i := 0; i < 1000; i++ {
		err := d.Submit(Submission{ConnectionID: "flood"})
		switch err {
		case nil:
			accepted++
		case ErrDispatcherBusy:
		default:
			t.Fatalf("unexpected submit error: %v", err)
		}
	}
	if accepted != 3 {
		t.Fatalf("expected backlog capped at 3, accepted %d", accepted)
	}
	if got := d.Pending("flood"); got != 3 {
		t.Fatalf("expected 3 pending for the connection, got %d", got)
	}

	// other connections are not starved by the flooding one
	waitFor(t, time.Second, func() bool { return d.Submit(Submission{ConnectionID: "quiet"}) == nil })

	close(block)
	waitFor(t, 2*time.Second, func() bool { return atomic.LoadInt32(&done) == 4 })
	waitFor(t, time.Second, func() bool { return d.Pending("flood") == 0 })
	if err := d.Submit(Submission{ConnectionID: "flood"}); err != nil {
		t.Fatalf("drained connection should be accepted again: %v", err)
	}
}
