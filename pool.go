package threadpool

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Swind/go-thread-pool/core"
)

// ThreadPool executes prioritized tasks on a bounded, self-sizing set of
// workers.
//
// Workers are spawned on demand up to MaxThreads, park as idle when the
// queue is empty, and retire after RetireTimeout without work. Retired
// worker slots are reused by later spawns. Reserve sets capacity aside for
// work running outside the pool.
//
// A ThreadPool is meant to be created once by the program's composition
// root and shared by reference; there is no package-level instance.
type ThreadPool struct {
	id           string
	maxThreads   int
	lockOSThread bool
	cpuAffinity  bool

	logger              core.Logger
	metrics             core.Metrics
	taskErrorHandler    core.TaskErrorHandler
	rejectedTaskHandler core.RejectedTaskHandler

	mu            sync.Mutex
	slots         []*worker // arena; len(slots) is the total spawned count
	retiredSlots  []int     // indices of retired slots, reused LIFO
	waiters       []*worker // idle workers, woken LIFO
	idle          int
	retired       int
	reserved      int // set by Reserve
	acquired      int // sum of live Reservation grants
	exiting       bool
	retireTimeout time.Duration
	queue         *core.PriorityTaskQueue
	generation    uint64 // bumped on every goroutine launch

	// activeHint mirrors activeLocked for the StartNow fast path.
	activeHint atomic.Int64

	executed atomic.Uint64
	failed   atomic.Uint64
}

// NewThreadPool creates a pool configured by opts.
func NewThreadPool(opts ...Option) *ThreadPool {
	cfg := &core.PoolConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return NewThreadPoolWithConfig(cfg)
}

// NewThreadPoolWithConfig creates a pool from cfg. Zero fields take their
// defaults; cfg itself is not modified.
func NewThreadPoolWithConfig(cfg *core.PoolConfig) *ThreadPool {
	var c core.PoolConfig
	if cfg != nil {
		c = *cfg
	}
	c.FillDefaults(runtime.NumCPU())

	return &ThreadPool{
		id:                  c.ID,
		maxThreads:          c.MaxThreads,
		lockOSThread:        c.LockOSThread,
		cpuAffinity:         c.CPUAffinity,
		logger:              c.Logger,
		metrics:             c.Metrics,
		taskErrorHandler:    c.TaskErrorHandler,
		rejectedTaskHandler: c.RejectedTaskHandler,
		retireTimeout:       c.RetireTimeout,
		queue:               core.NewPriorityTaskQueue(),
	}
}

// ID returns the ID of the thread pool
func (p *ThreadPool) ID() string {
	return p.id
}

// MaxThreads returns the fixed ideal parallelism.
func (p *ThreadPool) MaxThreads() int {
	return p.maxThreads
}

// =============================================================================
// Dispatch
// =============================================================================

// Start runs task at TaskPriorityBestEffort. See StartWithPriority.
func (p *ThreadPool) Start(task core.Task) bool {
	return p.StartWithPriority(task, core.TaskPriorityBestEffort)
}

// StartWithPriority dispatches task to a worker if capacity is free and
// queues it otherwise. It never blocks on task execution and reports false
// only for a nil task. A queued task runs once capacity frees up.
//
// The caller must not reuse or dispose a task while it is queued.
func (p *ThreadPool) StartWithPriority(task core.Task, priority core.TaskPriority) bool {
	if core.IsNilTask(task) {
		p.reject(core.RejectNilTask)
		return false
	}

	e := core.NewQueueEntry(task, priority)

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.tryStartLocked(e) {
		p.enqueueLocked(e)
	}
	return true
}

// StartNow dispatches task only if capacity is free right now. On false the
// task was not queued and the caller keeps responsibility for it.
func (p *ThreadPool) StartNow(task core.Task) bool {
	if core.IsNilTask(task) {
		p.reject(core.RejectNilTask)
		return false
	}

	// Racy fast path; tryStartLocked checks again under the lock.
	if p.activeHint.Load() >= int64(p.maxThreads) {
		p.reject(core.RejectSaturated)
		return false
	}

	p.mu.Lock()
	ok := p.tryStartLocked(core.NewQueueEntry(task, core.TaskPriorityBestEffort))
	p.mu.Unlock()

	if !ok {
		p.reject(core.RejectSaturated)
	}
	return ok
}

// tryStartLocked hands e to an idle worker, a reused retired slot, or a new
// worker, in that order. It fails when the pool is saturated.
func (p *ThreadPool) tryStartLocked(e core.QueueEntry) bool {
	if p.activeLocked() >= p.maxThreads {
		return false
	}

	// Hand-off through the queue: the woken worker pops the entry itself.
	if p.idle > 0 {
		p.enqueueLocked(e)
		return true
	}

	if n := len(p.retiredSlots); n > 0 {
		idx := p.retiredSlots[n-1]
		p.retiredSlots = p.retiredSlots[:n-1]
		w := p.slots[idx]
		if w.state != slotRetired {
			panic(fmt.Sprintf("threadpool: invariant: reused slot %d is %s, want retired", idx, w.state))
		}
		p.retired--
		p.launchLocked(w, e)
		p.metrics.RecordWorkerEvent(p.id, core.WorkerReused)
		p.logger.Debug("worker slot reused", core.F("pool", p.id), core.F("worker", w.id))
		return true
	}

	w := newWorker(len(p.slots))
	p.slots = append(p.slots, w)
	p.launchLocked(w, e)
	p.metrics.RecordWorkerEvent(p.id, core.WorkerSpawned)
	p.logger.Debug("worker spawned", core.F("pool", p.id), core.F("worker", w.id))
	return true
}

// enqueueLocked queues e and wakes exactly one idle worker, if any.
func (p *ThreadPool) enqueueLocked(e core.QueueEntry) {
	p.queue.PushEntry(e)
	p.metrics.RecordQueueDepth(p.id, p.queue.Len())
	p.wakeOneLocked()
}

func (p *ThreadPool) launchLocked(w *worker, e core.QueueEntry) {
	w.state = slotActive
	w.done = make(chan struct{})
	p.generation++
	p.publishLocked()
	go p.run(w, e, w.done)
}

func (p *ThreadPool) reject(reason string) {
	p.metrics.RecordTaskRejected(p.id, reason)
	p.rejectedTaskHandler.HandleRejectedTask(p.id, reason)
}

// =============================================================================
// Capacity accounting
// =============================================================================

// activeLocked counts threads charged against capacity, reserved and
// acquired ones included.
func (p *ThreadPool) activeLocked() int {
	return len(p.slots) + p.reserved + p.acquired - p.retired - p.idle
}

// overworkingLocked reports whether a Reserve call pushed the pool past its
// ceiling. Workers finishing a task in this state retire instead of pulling
// more work.
func (p *ThreadPool) overworkingLocked() bool {
	return p.activeLocked() > p.maxThreads
}

func (p *ThreadPool) publishLocked() {
	p.activeHint.Store(int64(p.activeLocked()))
}

// Reserve sets aside n threads of capacity (clamped to MaxThreads) for work
// running outside the pool. Raising the reservation while tasks run may
// leave the pool overworking until running workers finish and retire.
// Lowering it tries to start one queued task on the returned capacity; if
// that fails the task goes back to the queue. Capacity held through Acquire
// is accounted separately and is not affected.
func (p *ThreadPool) Reserve(n uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reserveLocked(int(min(n, uint(p.maxThreads))))
}

func (p *ThreadPool) reserveLocked(n int) {
	n = max(0, min(n, p.maxThreads))
	prev := p.reserved
	p.reserved = n
	p.publishLocked()

	if n < prev {
		p.dispatchFreedLocked()
	}
}

// dispatchFreedLocked tries to start one queued task after capacity was
// returned. On failure the task goes back with its original place.
func (p *ThreadPool) dispatchFreedLocked() {
	if e, ok := p.queue.Pop(); ok {
		if !p.tryStartLocked(e) {
			p.queue.PushEntry(e)
		}
		p.metrics.RecordQueueDepth(p.id, p.queue.Len())
	}
}

// SetRetireTimeout changes how long idle workers wait before retiring.
// Workers already waiting keep the timeout they started with.
func (p *ThreadPool) SetRetireTimeout(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retireTimeout = max(d, 0)
}

// RetireTimeout returns the timeout applied to future idle waits.
func (p *ThreadPool) RetireTimeout() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.retireTimeout
}

// =============================================================================
// Shutdown
// =============================================================================

// Wait drains the pool back to zero workers. Running tasks, and queued tasks
// that live workers pick up on the way out, finish normally; idle workers
// are woken and exit. Wait loops until no worker was spawned while it was
// joining, so concurrent Start calls are tolerated.
//
// Reserved capacity is kept. Tasks still queued when Wait returns (possible
// when reservations left no capacity to run them) stay queued and are not
// dispatched until a later Start or Reserve frees capacity for them; call
// Wait only once no further work is expected, or accept that. Wait is
// idempotent.
func (p *ThreadPool) Wait() {
	p.mu.Lock()
	for {
		p.exiting = true
		for p.wakeOneLocked() {
		}

		gen := p.generation
		pending := make([]chan struct{}, 0, len(p.slots))
		for _, w := range p.slots {
			if w.done != nil {
				pending = append(pending, w.done)
			}
		}

		p.mu.Unlock()
		for _, done := range pending {
			<-done
		}
		p.mu.Lock()

		if gen == p.generation {
			break
		}
	}

	p.slots = nil
	p.retiredSlots = nil
	p.waiters = nil
	p.idle = 0
	p.retired = 0
	p.exiting = false
	p.publishLocked()
	p.logger.Info("pool drained", core.F("pool", p.id), core.F("queued", p.queue.Len()))
	p.mu.Unlock()
}

// =============================================================================
// Accessors (point-in-time snapshots)
// =============================================================================

// ActiveThreads returns spawned + reserved + acquired - retired - idle.
func (p *ThreadPool) ActiveThreads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeLocked()
}

// IdleThreads returns the number of workers parked waiting for work.
func (p *ThreadPool) IdleThreads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idle
}

// RetiredThreads returns the number of retired, reusable worker slots.
func (p *ThreadPool) RetiredThreads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.retired
}

// ReservedThreads returns the capacity currently reserved for outside work.
func (p *ThreadPool) ReservedThreads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reserved
}

// AcquiredThreads returns the capacity held by unreleased Reservations.
func (p *ThreadPool) AcquiredThreads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquired
}

// Queued returns the number of tasks waiting in the priority queue.
func (p *ThreadPool) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Len()
}

// Stats returns a consistent snapshot of the pool's accounting.
func (p *ThreadPool) Stats() core.PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return core.PoolStats{
		ID:         p.id,
		MaxThreads: p.maxThreads,
		Active:     p.activeLocked(),
		Idle:       p.idle,
		Retired:    p.retired,
		Reserved:   p.reserved,
		Acquired:   p.acquired,
		Workers:    len(p.slots) - p.retired,
		Queued:     p.queue.Len(),
		Executed:   p.executed.Load(),
		Failed:     p.failed.Load(),
	}
}
