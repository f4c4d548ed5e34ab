package worker

import (
	"container/list"
	"errors"
	"sync"
	"time"
)

// ErrDispatcherBusy is returned by Submit when the inbound queue is full.
var ErrDispatcherBusy = errors.New("dispatcher queue full")

// ErrDispatcherStopped is returned by Submit after Stop.
var ErrDispatcherStopped = errors.New("dispatcher stopped")

type Options struct {
	MinWorkers  int
	MaxWorkers  int
	QueueSize   int
	IdleTimeout time.Duration
}

type connQueue struct {
	jobs     []Job
	enqueued bool // waiting in the ready list
	running  bool // a job of this connection is on a worker
}

// Dispatcher fans persist jobs out to an elastic worker pool. Connections take
// turns in LRU order and each connection has at most one job in flight.
type Dispatcher struct {
	pool     *jobChannelPool
	JobQueue chan Job // interface for outer jobs get in the dispatcher

	mu        sync.Mutex
	queues    map[string]*connQueue // job queue for each connection
	ready     *list.List            // LRU queue storing connection IDs
	positions map[string]*list.Element
	accepted  map[string]int // jobs taken by Submit and not finished yet, per connection
	perConn   int
	wake      chan struct{}
	quit      chan struct{}
	stopOnce  sync.Once
	stopped   bool
}

func NewDispatcher(opts Options, handler Handler) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}
	pool := newJobChannelPool(opts.MinWorkers, opts.MaxWorkers, opts.IdleTimeout, handler)

	d := &Dispatcher{
		queues:    make(map[string]*connQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
		pool:      pool,
		JobQueue:  make(chan Job, opts.QueueSize),
		accepted:  make(map[string]int),
		perConn:   opts.QueueSize,
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
	}

	for i := 0; i < pool.min; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

// Submit enqueues a persist job without blocking. A connection may have at most
// QueueSize jobs accepted and unfinished; beyond that, or when the inbound queue is
// full, it returns ErrDispatcherBusy.
func (d *Dispatcher) Submit(sub Submission) error {
	key := sub.ConnectionID

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return ErrDispatcherStopped
	}
	if d.accepted[key] >= d.perConn {
		d.mu.Unlock()
		return ErrDispatcherBusy
	}
	d.accepted[key]++
	d.mu.Unlock()

	select {
	case d.JobQueue <- Job{Type: Persist, Submission: sub}:
		return nil
	default:
		d.mu.Lock()
		d.releaseLocked(key)
		d.mu.Unlock()
		return ErrDispatcherBusy
	}
}

func (d *Dispatcher) releaseLocked(key string) {
	if d.accepted[key] <= 1 {
		delete(d.accepted, key)
		return
	}
	d.accepted[key]--
}

// Stop halts dispatching and shuts the workers down. Jobs already on a worker finish.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		d.mu.Unlock()
		close(d.quit)
		d.pool.close()
	})
}

func (d *Dispatcher) run() {
	for {
		// dispatch one job of the connection in the front of LRU queue
		if d.dispatchOne() {
			select {
			case job := <-d.JobQueue: // non-congestion
				d.enqueueJob(job)
			case <-d.quit:
				return
			default:
			}
			continue
		}
		select {
		case job := <-d.JobQueue:
			d.enqueueJob(job)
		case <-d.wake:
		case <-d.quit:
			return
		}
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	key := job.key()

	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[key]
	if q == nil {
		q = &connQueue{}
		d.queues[key] = q
	}
	q.jobs = append(q.jobs, job)
	d.markReadyLocked(key, q)
}

// markReadyLocked puts the connection at the back of the LRU queue when it has
// pending work and nothing running.
func (d *Dispatcher) markReadyLocked(key string, q *connQueue) {
	if q.enqueued || q.running || len(q.jobs) == 0 {
		return
	}
	q.enqueued = true
	d.positions[key] = d.ready.PushBack(key)
}

// dispatchOne get first connection in LRU and dispatch its job
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	elem := d.ready.Front()
	if elem == nil {
		d.mu.Unlock()
		return false
	}
	key := elem.Value.(string)
	q := d.queues[key]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	q.enqueued = false
	q.running = true
	d.ready.Remove(elem)
	delete(d.positions, key)
	d.mu.Unlock()

	job.finish = func() { d.finish(key) }

	workerChan := d.pool.acquire()
	if workerChan == nil {
		return false
	}
	debugLog("[dispatcher] assign %s job for connection %s to worker-%d", job.Type, key, d.pool.workerID(workerChan))
	select {
	case workerChan <- job:
		return true
	case <-d.quit:
		return false
	}
}

// finish runs on the worker once a job is done and re-queues the connection if it has more.
func (d *Dispatcher) finish(key string) {
	d.mu.Lock()
	d.releaseLocked(key)
	q := d.queues[key]
	if q != nil {
		q.running = false
		if len(q.jobs) == 0 {
			delete(d.queues, key)
		} else {
			d.markReadyLocked(key, q)
		}
	}
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Pending reports how many jobs of a connection are accepted and not finished.
func (d *Dispatcher) Pending(key string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.accepted[key]
}
