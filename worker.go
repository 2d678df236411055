package threadpool

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"slices"
	"time"

	"github.com/Swind/go-thread-pool/core"
)

type slotState uint8

const (
	slotActive slotState = iota
	slotIdle
	slotRetired
)

func (s slotState) String() string {
	switch s {
	case slotActive:
		return "active"
	case slotIdle:
		return "idle"
	case slotRetired:
		return "retired"
	default:
		return fmt.Sprintf("slotState(%d)", uint8(s))
	}
}

// worker is one slot of the pool's arena. A slot outlives the goroutines
// that occupy it: after retirement it may be reused by a later spawn.
// All fields are guarded by ThreadPool.mu.
type worker struct {
	id    int
	state slotState

	// wake carries at most one token, sent by whoever removes the worker
	// from the waiter list.
	wake chan struct{}

	// done is closed when the current goroutine of this slot exits.
	done chan struct{}
}

func newWorker(id int) *worker {
	return &worker{
		id:   id,
		wake: make(chan struct{}, 1),
	}
}

// run is the body of a worker goroutine. It enters bound to e and leaves
// with the slot tagged retired.
func (p *ThreadPool) run(w *worker, e core.QueueEntry, done chan struct{}) {
	defer close(done)

	if p.lockOSThread {
		// Never unlocked: the OS thread terminates with the goroutine.
		runtime.LockOSThread()
		if p.cpuAffinity {
			cpu := w.id % runtime.NumCPU()
			if err := pinToCPU(cpu); err != nil {
				p.logger.Warn("cpu pinning failed",
					core.F("pool", p.id), core.F("worker", w.id), core.F("cpu", cpu), core.F("error", err))
			}
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		for e.Task != nil {
			p.mu.Unlock()
			p.execute(w, e)
			p.mu.Lock()

			e = core.QueueEntry{}
			if p.overworkingLocked() {
				break
			}
			e = p.popLocked()
		}

		if p.exiting {
			p.retireLocked(w, core.WorkerExited)
			return
		}
		if p.overworkingLocked() {
			p.retireLocked(w, core.WorkerRetired)
			return
		}

		signaled := p.idleLocked(w)

		if !p.overworkingLocked() {
			if e = p.popLocked(); e.Task != nil {
				continue
			}
		}
		if !signaled {
			p.retireLocked(w, core.WorkerRetired)
			return
		}
		// Woken with nothing to do: the entry went to a busier worker, or
		// Wait is draining. Re-evaluate from the top.
	}
}

// popLocked returns the next queued entry, or a zero entry.
func (p *ThreadPool) popLocked() core.QueueEntry {
	e, ok := p.queue.Pop()
	if !ok {
		return core.QueueEntry{}
	}
	p.metrics.RecordQueueDepth(p.id, p.queue.Len())
	return e
}

// idleLocked parks w until it is signalled or its retire timeout elapses.
// The lock is released while parked. It reports whether w was signalled;
// either way w is active again on return.
func (p *ThreadPool) idleLocked(w *worker) bool {
	w.state = slotIdle
	p.idle++
	p.waiters = append(p.waiters, w)
	p.publishLocked()
	timeout := p.retireTimeout
	p.mu.Unlock()

	timer := time.NewTimer(timeout)
	signaled := false
	select {
	case <-w.wake:
		signaled = true
	case <-timer.C:
	}
	timer.Stop()

	p.mu.Lock()
	if signaled {
		return true
	}
	if p.removeWaiterLocked(w) {
		p.idle--
		w.state = slotActive
		p.publishLocked()
		return false
	}
	// A signaller claimed w between the timeout and the relock; its token
	// is already buffered.
	<-w.wake
	return true
}

// wakeOneLocked hands the most recently parked waiter a wake token. The
// caller of this method, not the woken worker, takes it off the idle count.
func (p *ThreadPool) wakeOneLocked() bool {
	n := len(p.waiters)
	if n == 0 {
		return false
	}
	w := p.waiters[n-1]
	p.waiters[n-1] = nil
	p.waiters = p.waiters[:n-1]
	p.idle--
	w.state = slotActive
	p.publishLocked()
	w.wake <- struct{}{}
	return true
}

func (p *ThreadPool) removeWaiterLocked(w *worker) bool {
	i := slices.Index(p.waiters, w)
	if i < 0 {
		return false
	}
	p.waiters = slices.Delete(p.waiters, i, i+1)
	return true
}

func (p *ThreadPool) retireLocked(w *worker, event string) {
	if w.state != slotActive {
		panic(fmt.Sprintf("threadpool: invariant: retiring slot %d in state %s", w.id, w.state))
	}
	w.state = slotRetired
	p.retired++
	p.retiredSlots = append(p.retiredSlots, w.id)
	p.publishLocked()
	p.metrics.RecordWorkerEvent(p.id, event)
	p.logger.Debug("worker "+event, core.F("pool", p.id), core.F("worker", w.id))
}

// execute runs one task outside the lock. Failures are contained here and
// only reach the configured handler, metrics and logger.
func (p *ThreadPool) execute(w *worker, e core.QueueEntry) {
	start := time.Now()
	err := runTask(e.Task)
	p.metrics.RecordTaskDuration(p.id, e.Priority, time.Since(start))
	p.executed.Add(1)

	if err != nil {
		p.failed.Add(1)
		p.metrics.RecordTaskFailure(p.id, err)
		p.logger.Warn("task failed",
			core.F("pool", p.id),
			core.F("worker", w.id),
			core.F("priority", e.Priority.String()),
			core.F("error", err))
		p.reportTaskError(w.id, e.Priority, err)
	}

	p.dispose(e.Task)
}

func runTask(t core.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &core.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return t.Start()
}

func (p *ThreadPool) reportTaskError(workerID int, priority core.TaskPriority, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task error handler panicked",
				core.F("pool", p.id), core.F("worker", workerID), core.F("panic", r))
		}
	}()
	p.taskErrorHandler.HandleTaskError(p.id, workerID, priority, err)
}

func (p *ThreadPool) dispose(t core.Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task dispose panicked", core.F("pool", p.id), core.F("panic", r))
		}
	}()
	if !t.AutoDelete() {
		return
	}
	if d, ok := t.(core.Disposer); ok {
		d.Dispose()
	}
}
