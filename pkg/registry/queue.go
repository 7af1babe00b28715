package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/abcxyz/pkg/logging"
)

// DefaultQueueCapacity is the update-queue's bounded FIFO size (spec §3,
// §9 "magic numbers preserved from the reference design; expose them as
// configuration").
const DefaultQueueCapacity = 10_000

// DefaultWatchdogTimeout is how stale the drain task's liveness beacon
// must be, at enqueue time, before the task is interrupted and restarted
// (spec §4.E, §9 "Watchdog restart").
const DefaultWatchdogTimeout = 2 * time.Hour

// updateQueue is the bounded FIFO of package names plus its single drain
// task: a mutex, a condition variable, a liveness beacon, and a "current
// package" field, per spec §4.E/§5/§9.
type updateQueue struct {
	mu   sync.Mutex
	cond *sync.Cond

	capacity int
	timeout  time.Duration
	process  func(ctx context.Context, name string)

	entries []string
	inQueue map[string]bool
	current string

	beacon  time.Time
	running bool
	cancel  context.CancelFunc
	stopped chan struct{} // closed when the running drain goroutine exits
}

func newUpdateQueue(capacity int, timeout time.Duration, process func(ctx context.Context, name string)) *updateQueue {
	q := &updateQueue{
		capacity: capacity,
		timeout:  timeout,
		process:  process,
		inQueue:  make(map[string]bool),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// trigger enqueues name iff it is not already present (set-like
// membership over the FIFO, spec §4.E). If the drain task's beacon has
// gone stale it is interrupted and a fresh one started in its place;
// otherwise a task is started only if none is currently running.
func (q *updateQueue) trigger(ctx context.Context, name string) error {
	q.mu.Lock()

	if !q.inQueue[name] {
		if len(q.entries) >= q.capacity {
			q.mu.Unlock()
			return fmt.Errorf("registry: update queue is full (capacity %d)", q.capacity)
		}
		q.entries = append(q.entries, name)
		q.inQueue[name] = true
	}

	stale := q.running && !q.beacon.IsZero() && time.Since(q.beacon) > q.timeout
	var awaitStop chan struct{}
	if stale {
		q.cancel()
		// Wake a drain task idling in cond.Wait so it sees the cancellation.
		q.cond.Broadcast()
		awaitStop = q.stopped
	}
	start := !q.running && !stale
	q.mu.Unlock()

	if awaitStop != nil {
		<-awaitStop
		start = true
	}
	if start {
		q.start(ctx)
	}

	q.cond.Signal()
	return nil
}

// start launches a fresh drain goroutine; it is a no-op if one is already
// running (e.g. lost a race against another trigger call).
func (q *updateQueue) start(parent context.Context) {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(parent))
	stopped := make(chan struct{})
	q.cancel = cancel
	q.stopped = stopped
	q.running = true
	q.mu.Unlock()

	go q.drain(runCtx, stopped)
}

// drain is the single long-running worker: it stamps the liveness beacon,
// blocks on the condition variable while the queue is empty, pops the
// head, and runs process() for it outside the lock (spec §4.E, §5). A
// cancelled context makes it unwind without dequeuing further, so the
// still-queued names are left for the replacement task started by
// trigger(); the interrupted package itself is not re-queued.
func (q *updateQueue) drain(ctx context.Context, stopped chan struct{}) {
	logger := logging.FromContext(ctx)
	defer func() {
		q.mu.Lock()
		q.running = false
		q.cancel = nil
		q.mu.Unlock()
		close(stopped)
	}()

	for {
		q.mu.Lock()
		q.beacon = time.Now()
		for len(q.entries) == 0 && ctx.Err() == nil {
			q.cond.Wait()
		}
		if ctx.Err() != nil {
			q.mu.Unlock()
			return
		}

		name := q.entries[0]
		q.entries = q.entries[1:]
		delete(q.inQueue, name)
		q.current = name
		q.mu.Unlock()

		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "panic while reconciling package", "package", name, "panic", r)
				}
			}()
			q.process(ctx, name)
		}()

		q.mu.Lock()
		q.current = ""
		q.mu.Unlock()
	}
}

// position implements getUpdateQueuePosition (spec §4.E): 0 if name is
// currently being processed, the 1-based index if it's queued, -1
// otherwise.
func (q *updateQueue) position(name string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current == name {
		return 0
	}
	for i, n := range q.entries {
		if n == name {
			return i + 1
		}
	}
	return -1
}

// isScheduled reports whether name is queued or currently being
// processed.
func (q *updateQueue) isScheduled(name string) bool {
	return q.position(name) >= 0
}
