package threadpool

import (
	"errors"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Swind/go-thread-pool/core"
)

// TestThreadPool_Defaults verifies construction without options
// Given: NewThreadPool with no options
// When: Accessors are read
// Then: ID, MaxThreads and RetireTimeout have their defaults and nothing is running
func TestThreadPool_Defaults(t *testing.T) {
	// Arrange and Act
	p := NewThreadPool()

	// Assert
	if p.ID() != core.DefaultPoolID {
		t.Errorf("ID() = %q, want %q", p.ID(), core.DefaultPoolID)
	}
	if p.MaxThreads() != runtime.NumCPU() {
		t.Errorf("MaxThreads() = %d, want %d", p.MaxThreads(), runtime.NumCPU())
	}
	if p.RetireTimeout() != core.DefaultRetireTimeout {
		t.Errorf("RetireTimeout() = %v, want %v", p.RetireTimeout(), core.DefaultRetireTimeout)
	}
	if got := p.Stats(); got != (core.PoolStats{ID: core.DefaultPoolID, MaxThreads: runtime.NumCPU()}) {
		t.Errorf("Stats() = %+v, want empty", got)
	}
}

// TestThreadPool_WithConfig verifies the config constructor
// Given: A PoolConfig with an ID and MaxThreads
// When: NewThreadPoolWithConfig is called
// Then: The pool uses them and the config is not modified
func TestThreadPool_WithConfig(t *testing.T) {
	// Arrange
	cfg := &core.PoolConfig{ID: "cfg", MaxThreads: 3}

	// Act
	p := NewThreadPoolWithConfig(cfg)

	// Assert
	if p.ID() != "cfg" || p.MaxThreads() != 3 {
		t.Errorf("pool = (%q, %d), want (cfg, 3)", p.ID(), p.MaxThreads())
	}
	if cfg.Logger != nil || cfg.RetireTimeout != 0 {
		t.Errorf("config was modified: %+v", cfg)
	}
	if NewThreadPoolWithConfig(nil).ID() != core.DefaultPoolID {
		t.Error("nil config did not get defaults")
	}
}

// TestThreadPool_StartRunsTask verifies a task runs and its worker idles
// Given: A pool with two threads
// When: One task is started
// Then: It runs, the worker becomes idle, and ActiveThreads drops to zero
func TestThreadPool_StartRunsTask(t *testing.T) {
	// Arrange
	p := NewThreadPool(WithMaxThreads(2))
	defer p.Wait()
	done := make(chan struct{})

	// Act
	ok := p.Start(TaskFunc(func() error {
		close(done)
		return nil
	}))

	// Assert
	if !ok {
		t.Fatal("Start() = false, want true")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
	assertEventually(t, 2*time.Second, func() bool {
		return p.IdleThreads() == 1 && p.ActiveThreads() == 0
	})
}

// TestThreadPool_NilTask verifies invalid-argument handling
// Given: A pool with a rejected-task handler and metrics
// When: nil tasks are passed to Start, StartWithPriority and StartNow
// Then: Every call returns false, nothing is queued, and rejections are reported
func TestThreadPool_NilTask(t *testing.T) {
	// Arrange
	metrics := newRecordingMetrics()
	handler := &recordingRejectedHandler{}
	p := NewThreadPool(WithMaxThreads(1), WithMetrics(metrics), WithRejectedTaskHandler(handler))
	var nilFunc TaskFunc

	// Act and Assert
	if p.Start(nil) {
		t.Error("Start(nil) = true, want false")
	}
	if p.StartWithPriority(nilFunc, TaskPriorityUserBlocking) {
		t.Error("StartWithPriority(nil TaskFunc) = true, want false")
	}
	if p.StartNow(nil) {
		t.Error("StartNow(nil) = true, want false")
	}
	if p.Queued() != 0 || p.ActiveThreads() != 0 {
		t.Errorf("Queued() = %d, ActiveThreads() = %d; want 0, 0", p.Queued(), p.ActiveThreads())
	}
	if got := handler.all(); !slices.Equal(got, []string{core.RejectNilTask, core.RejectNilTask, core.RejectNilTask}) {
		t.Errorf("rejections = %v, want three %q", got, core.RejectNilTask)
	}
	if metrics.rejections(core.RejectNilTask) != 3 {
		t.Errorf("nil_task metric = %d, want 3", metrics.rejections(core.RejectNilTask))
	}
}

// TestThreadPool_StartNowSaturated verifies dispatch-only semantics
// Given: A single-thread pool whose worker is busy
// When: StartNow is called
// Then: It returns false, does not queue, and reports saturation
func TestThreadPool_StartNowSaturated(t *testing.T) {
	// Arrange
	metrics := newRecordingMetrics()
	p := NewThreadPool(WithMaxThreads(1), WithMetrics(metrics))
	defer p.Wait()
	gate := newGatedTask()
	if !p.StartNow(gate) {
		t.Fatal("StartNow() on empty pool = false, want true")
	}
	gate.waitStarted(t)

	// Act
	ran := atomic.Bool{}
	ok := p.StartNow(TaskFunc(func() error { ran.Store(true); return nil }))

	// Assert
	if ok {
		t.Error("StartNow() on saturated pool = true, want false")
	}
	if p.Queued() != 0 {
		t.Errorf("Queued() = %d, want 0", p.Queued())
	}
	if metrics.rejections(core.RejectSaturated) != 1 {
		t.Errorf("saturated metric = %d, want 1", metrics.rejections(core.RejectSaturated))
	}

	gate.open()
	p.Wait()
	if ran.Load() {
		t.Error("rejected task ran")
	}
}

// TestThreadPool_StartNowUsesIdleWorker verifies hand-off to an idle worker
// Given: A single-thread pool whose worker has finished and is idle
// When: StartNow is called
// Then: The idle worker runs the task without a new spawn
func TestThreadPool_StartNowUsesIdleWorker(t *testing.T) {
	// Arrange
	metrics := newRecordingMetrics()
	p := NewThreadPool(WithMaxThreads(1), WithMetrics(metrics))
	defer p.Wait()
	p.Start(TaskFunc(func() error { return nil }))
	assertEventually(t, 2*time.Second, func() bool { return p.IdleThreads() == 1 })

	// Act
	done := make(chan struct{})
	ok := p.StartNow(TaskFunc(func() error { close(done); return nil }))

	// Assert
	if !ok {
		t.Fatal("StartNow() with idle worker = false, want true")
	}
	<-done
	if got := metrics.event(core.WorkerSpawned); got != 1 {
		t.Errorf("spawned = %d, want 1", got)
	}
}

// TestThreadPool_CapacityBound verifies concurrent execution never exceeds MaxThreads
// Given: A pool with three threads
// When: Fifty tasks are started from several goroutines
// Then: At most three run at once and ActiveThreads never exceeds three
func TestThreadPool_CapacityBound(t *testing.T) {
	// Arrange
	const maxThreads = 3
	p := NewThreadPool(WithMaxThreads(maxThreads))
	var running, peak atomic.Int32
	var observedActive atomic.Int32

	task := TaskFunc(func() error {
		n := running.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		if a := int32(p.ActiveThreads()); a > observedActive.Load() {
			observedActive.Store(a)
		}
		time.Sleep(2 * time.Millisecond)
		running.Add(-1)
		return nil
	})

	// Act
	var wg sync.WaitGroup
	for g := 0; g < 5; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				p.Start(task)
			}
		}()
	}
	wg.Wait()
	p.Wait()

	// Assert
	if peak.Load() > maxThreads {
		t.Errorf("peak concurrency = %d, want <= %d", peak.Load(), maxThreads)
	}
	if observedActive.Load() > maxThreads {
		t.Errorf("ActiveThreads() peaked at %d, want <= %d", observedActive.Load(), maxThreads)
	}
}

// TestThreadPool_PriorityOrdering verifies queued tasks drain by priority
// Given: A saturated single-thread pool
// When: Tasks with distinct priorities are queued in shuffled order
// Then: They run in strictly descending priority order
func TestThreadPool_PriorityOrdering(t *testing.T) {
	// Arrange
	p := NewThreadPool(WithMaxThreads(1))
	gate := newGatedTask()
	p.Start(gate)
	gate.waitStarted(t)
	log := &orderLog{}

	// Act
	for _, prio := range []int{3, 7, 1, 9, 5, 2} {
		p.StartWithPriority(TaskFunc(func() error {
			log.add(prio)
			return nil
		}), TaskPriority(prio))
	}
	if p.Queued() != 6 {
		t.Fatalf("Queued() = %d, want 6", p.Queued())
	}
	gate.open()
	p.Wait()

	// Assert
	want := []int{9, 7, 5, 3, 2, 1}
	if got := log.snapshot(); !slices.Equal(got, want) {
		t.Errorf("execution order = %v, want %v", got, want)
	}
}

// TestThreadPool_EqualPriorityFIFO verifies submission order among equal priorities
// Given: A saturated single-thread pool
// When: Five tasks of the same priority are queued
// Then: They run in submission order
func TestThreadPool_EqualPriorityFIFO(t *testing.T) {
	// Arrange
	p := NewThreadPool(WithMaxThreads(1))
	gate := newGatedTask()
	p.Start(gate)
	gate.waitStarted(t)
	log := &orderLog{}

	// Act
	for i := 1; i <= 5; i++ {
		p.StartWithPriority(TaskFunc(func() error { log.add(i); return nil }), TaskPriorityUserVisible)
	}
	gate.open()
	p.Wait()

	// Assert
	if got := log.snapshot(); !slices.Equal(got, []int{1, 2, 3, 4, 5}) {
		t.Errorf("execution order = %v, want [1 2 3 4 5]", got)
	}
}

// TestThreadPool_MixedPriorityScenario verifies dispatch waves on two threads
// Given: A two-thread pool
// When: Tasks with priorities 1,5,3,2,4 are started, each sleeping 50ms before logging
// Then: 1 and 5 run first, then 4 and 3, then 2
func TestThreadPool_MixedPriorityScenario(t *testing.T) {
	// Arrange
	p := NewThreadPool(WithMaxThreads(2))
	log := &orderLog{}

	// Act
	for _, prio := range []int{1, 5, 3, 2, 4} {
		p.StartWithPriority(TaskFunc(func() error {
			time.Sleep(50 * time.Millisecond)
			log.add(prio)
			return nil
		}), TaskPriority(prio))
	}
	p.Wait()

	// Assert - Waves of two, compared as sets within each wave
	got := log.snapshot()
	if len(got) != 5 {
		t.Fatalf("log = %v, want 5 entries", got)
	}
	waves := [][]int{{1, 5}, {3, 4}, {2}}
	start := 0
	for i, want := range waves {
		wave := slices.Clone(got[start : start+len(want)])
		slices.Sort(wave)
		if !slices.Equal(wave, want) {
			t.Errorf("wave %d = %v, want %v (log %v)", i, wave, want, got)
		}
		start += len(want)
	}
}

// TestThreadPool_NoTaskLost verifies every started task runs exactly once
// Given: A four-thread pool
// When: 1000 tasks with mixed priorities are started concurrently
// Then: After Wait, each task ran exactly once and nothing is queued
func TestThreadPool_NoTaskLost(t *testing.T) {
	// Arrange
	const n = 1000
	p := NewThreadPool(WithMaxThreads(4))
	var counts [n]atomic.Int32

	// Act
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := g; i < n; i += 4 {
				p.StartWithPriority(TaskFunc(func() error {
					counts[i].Add(1)
					return nil
				}), TaskPriority(i%3))
			}
		}(g)
	}
	wg.Wait()
	p.Wait()

	// Assert
	for i := range counts {
		if c := counts[i].Load(); c != 1 {
			t.Fatalf("task %d ran %d times, want 1", i, c)
		}
	}
	if p.Queued() != 0 {
		t.Errorf("Queued() = %d, want 0", p.Queued())
	}
	if got := p.Stats().Executed; got != n {
		t.Errorf("Executed = %d, want %d", got, n)
	}
}

// TestThreadPool_IdleReuse verifies an idle worker is reused
// Given: A single-thread pool with a long retire timeout
// When: Task B is started after task A finished
// Then: The same worker runs B and no second worker is spawned
func TestThreadPool_IdleReuse(t *testing.T) {
	// Arrange
	metrics := newRecordingMetrics()
	p := NewThreadPool(WithMaxThreads(1), WithRetireTimeout(time.Minute), WithMetrics(metrics))
	defer p.Wait()
	var workers []int
	var mu sync.Mutex
	record := func() error {
		mu.Lock()
		defer mu.Unlock()
		workers = append(workers, p.spawnedSlots())
		return nil
	}

	// Act
	p.Start(TaskFunc(record))
	assertEventually(t, 2*time.Second, func() bool { return p.IdleThreads() == 1 })
	p.Start(TaskFunc(record))
	assertEventually(t, 2*time.Second, func() bool { return p.Stats().Executed == 2 })

	// Assert
	if got := metrics.event(core.WorkerSpawned); got != 1 {
		t.Errorf("spawned = %d, want 1", got)
	}
	if got := p.spawnedSlots(); got != 1 {
		t.Errorf("slots = %d, want 1", got)
	}
	if p.RetiredThreads() != 0 {
		t.Errorf("RetiredThreads() = %d, want 0", p.RetiredThreads())
	}
	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(workers, []int{1, 1}) {
		t.Errorf("slots seen by tasks = %v, want [1 1]", workers)
	}
}

// TestThreadPool_Retirement verifies idle workers retire and their slots are reused
// Given: A pool with a 20ms retire timeout
// When: A task finishes and no new work arrives
// Then: The worker retires; a later task reuses the retired slot
func TestThreadPool_Retirement(t *testing.T) {
	// Arrange
	metrics := newRecordingMetrics()
	p := NewThreadPool(WithMaxThreads(2), WithRetireTimeout(20*time.Millisecond), WithMetrics(metrics))
	defer p.Wait()

	// Act
	p.Start(TaskFunc(func() error { return nil }))

	// Assert - Worker retires
	assertEventually(t, 2*time.Second, func() bool {
		return p.RetiredThreads() == 1 && p.IdleThreads() == 0 && p.ActiveThreads() == 0
	})
	if got := metrics.event(core.WorkerRetired); got != 1 {
		t.Errorf("retired events = %d, want 1", got)
	}

	// Act - Start again
	done := make(chan struct{})
	p.Start(TaskFunc(func() error { close(done); return nil }))
	<-done

	// Assert - Slot reused
	if got := metrics.event(core.WorkerReused); got != 1 {
		t.Errorf("reused events = %d, want 1", got)
	}
	if got := p.spawnedSlots(); got != 1 {
		t.Errorf("slots = %d, want 1", got)
	}
}

// TestThreadPool_SetRetireTimeout verifies reconfiguring the idle timeout
// Given: A pool with the default retire timeout
// When: SetRetireTimeout is called with a negative and then a zero duration
// Then: The timeout is clamped to zero and new idle workers retire immediately
func TestThreadPool_SetRetireTimeout(t *testing.T) {
	// Arrange
	p := NewThreadPool(WithMaxThreads(1))
	defer p.Wait()

	// Act
	p.SetRetireTimeout(-time.Second)

	// Assert
	if p.RetireTimeout() != 0 {
		t.Errorf("RetireTimeout() = %v, want 0", p.RetireTimeout())
	}
	p.Start(TaskFunc(func() error { return nil }))
	assertEventually(t, 2*time.Second, func() bool { return p.RetiredThreads() == 1 })
}

// TestThreadPool_SetRetireTimeoutNotRetroactive verifies parked workers keep their timeout
// Given: A worker parked under a long retire timeout
// When: The timeout is shortened
// Then: The parked worker stays idle, and its next idle period uses the new timeout
func TestThreadPool_SetRetireTimeoutNotRetroactive(t *testing.T) {
	// Arrange
	p := NewThreadPool(WithMaxThreads(1), WithRetireTimeout(5*time.Second))
	defer p.Wait()
	p.Start(TaskFunc(func() error { return nil }))
	assertEventually(t, 2*time.Second, func() bool { return p.IdleThreads() == 1 })

	// Act
	p.SetRetireTimeout(time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	// Assert - Still parked under the old timeout
	if p.IdleThreads() != 1 || p.RetiredThreads() != 0 {
		t.Fatalf("Idle, Retired = %d, %d; want 1, 0", p.IdleThreads(), p.RetiredThreads())
	}

	// Act - A new task starts a fresh idle period afterwards
	p.Start(TaskFunc(func() error { return nil }))

	// Assert
	assertEventually(t, 2*time.Second, func() bool { return p.RetiredThreads() == 1 })
	if p.spawnedSlots() != 1 {
		t.Errorf("spawned slots = %d, want 1 (idle worker reused)", p.spawnedSlots())
	}
}

// TestThreadPool_Isolation verifies failing tasks do not affect the pool
// Given: A single-thread pool with an error handler
// When: A panicking task, a failing task and a normal task are started
// Then: The normal task runs and both failures reach the handler
func TestThreadPool_Isolation(t *testing.T) {
	// Arrange
	var mu sync.Mutex
	var errs []error
	handler := core.TaskErrorHandlerFunc(func(_ string, _ int, _ core.TaskPriority, err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err)
	})
	metrics := newRecordingMetrics()
	p := NewThreadPool(WithMaxThreads(1), WithTaskErrorHandler(handler), WithMetrics(metrics))
	failure := errors.New("failure")
	ran := atomic.Bool{}

	// Act
	p.Start(TaskFunc(func() error { panic("boom") }))
	p.Start(TaskFunc(func() error { return failure }))
	p.Start(TaskFunc(func() error { ran.Store(true); return nil }))
	p.Wait()

	// Assert
	if !ran.Load() {
		t.Error("task after failures did not run")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(errs) != 2 {
		t.Fatalf("handler calls = %d, want 2", len(errs))
	}
	var pe *core.PanicError
	if !errors.As(errs[0], &pe) || pe.Value != "boom" || len(pe.Stack) == 0 {
		t.Errorf("errs[0] = %v, want PanicError(boom) with stack", errs[0])
	}
	if !errors.Is(errs[1], failure) {
		t.Errorf("errs[1] = %v, want %v", errs[1], failure)
	}
	stats := p.Stats()
	if stats.Executed != 3 || stats.Failed != 2 {
		t.Errorf("Executed, Failed = %d, %d; want 3, 2", stats.Executed, stats.Failed)
	}
	if len(metrics.failures) != 2 {
		t.Errorf("failure metrics = %d, want 2", len(metrics.failures))
	}
}

// TestThreadPool_PanickingErrorHandler verifies a broken handler is contained
// Given: An error handler that panics
// When: A failing task and then a normal task run
// Then: The normal task still runs
func TestThreadPool_PanickingErrorHandler(t *testing.T) {
	// Arrange
	handler := core.TaskErrorHandlerFunc(func(string, int, core.TaskPriority, error) { panic("handler") })
	p := NewThreadPool(WithMaxThreads(1), WithTaskErrorHandler(handler))
	ran := atomic.Bool{}

	// Act
	p.Start(TaskFunc(func() error { return errors.New("x") }))
	p.Start(TaskFunc(func() error { ran.Store(true); return nil }))
	p.Wait()

	// Assert
	if !ran.Load() {
		t.Error("task after panicking handler did not run")
	}
}

// TestThreadPool_AutoDelete verifies pool-owned tasks are disposed
// Given: A disposable task and a disposable task whose dispose panics
// When: Both run
// Then: Dispose is called once for each and the pool keeps working
func TestThreadPool_AutoDelete(t *testing.T) {
	// Arrange
	p := NewThreadPool(WithMaxThreads(1))
	var disposed atomic.Int32

	// Act
	p.Start(NewDisposableTask(func() error { return nil }, func() { disposed.Add(1) }))
	p.Start(NewDisposableTask(func() error { return nil }, func() { disposed.Add(1); panic("dispose") }))
	p.Start(NewDisposableTask(func() error { panic("task") }, func() { disposed.Add(1) }))
	p.Wait()

	// Assert
	if got := disposed.Load(); got != 3 {
		t.Errorf("disposed = %d, want 3", got)
	}
}

// TestThreadPool_Drain verifies Wait returns the pool to zero threads
// Given: A pool with one idle and one retired worker
// When: Wait is called twice
// Then: Active, idle and retired counts are zero after each call
func TestThreadPool_Drain(t *testing.T) {
	// Arrange
	p := NewThreadPool(WithMaxThreads(2), WithRetireTimeout(time.Minute))
	p.Start(TaskFunc(func() error { return nil }))
	assertEventually(t, 2*time.Second, func() bool { return p.IdleThreads() == 1 })

	// Act and Assert
	for i := 0; i < 2; i++ {
		p.Wait()
		if a, id, r := p.ActiveThreads(), p.IdleThreads(), p.RetiredThreads(); a != 0 || id != 0 || r != 0 {
			t.Errorf("after Wait #%d: active, idle, retired = %d, %d, %d; want 0, 0, 0", i+1, a, id, r)
		}
	}
	if p.spawnedSlots() != 0 {
		t.Errorf("slots = %d after Wait, want 0", p.spawnedSlots())
	}

	// The pool is usable after Wait
	done := make(chan struct{})
	p.Start(TaskFunc(func() error { close(done); return nil }))
	<-done
	p.Wait()
}

// TestThreadPool_WaitWithConcurrentStarts verifies the drain loop
// Given: Goroutines starting tasks while Wait runs
// When: Wait returns and the producers finish
// Then: A final Wait leaves every accepted task executed and no workers
func TestThreadPool_WaitWithConcurrentStarts(t *testing.T) {
	// Arrange
	p := NewThreadPool(WithMaxThreads(4))
	var accepted, executed atomic.Int64
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if p.Start(TaskFunc(func() error { executed.Add(1); return nil })) {
					accepted.Add(1)
				}
			}
		}()
	}

	// Act
	time.Sleep(10 * time.Millisecond)
	p.Wait()
	close(stop)
	wg.Wait()
	p.Wait()

	// Assert
	if accepted.Load() != executed.Load() {
		t.Errorf("accepted = %d, executed = %d; want equal", accepted.Load(), executed.Load())
	}
	if p.ActiveThreads() != 0 {
		t.Errorf("ActiveThreads() = %d, want 0", p.ActiveThreads())
	}
}

// TestThreadPool_WaitLeavesQueuedTasks verifies Wait does not dispatch blocked work
// Given: A single-thread pool fully reserved, with one queued task
// When: Wait is called
// Then: The task stays queued and the reservation is kept; lowering the reservation runs it
func TestThreadPool_WaitLeavesQueuedTasks(t *testing.T) {
	// Arrange
	p := NewThreadPool(WithMaxThreads(1))
	p.Reserve(1)
	done := make(chan struct{})
	if !p.Start(TaskFunc(func() error { close(done); return nil })) {
		t.Fatal("Start() = false, want true")
	}

	// Act
	p.Wait()

	// Assert
	if p.Queued() != 1 {
		t.Errorf("Queued() after Wait = %d, want 1", p.Queued())
	}
	if p.ReservedThreads() != 1 || p.ActiveThreads() != 1 {
		t.Errorf("ReservedThreads, ActiveThreads = %d, %d; want 1, 1", p.ReservedThreads(), p.ActiveThreads())
	}

	// Act - Give the capacity back
	p.Reserve(0)

	// Assert
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("queued task did not run after Reserve(0)")
	}
	p.Wait()
	if p.Queued() != 0 || p.ActiveThreads() != 0 {
		t.Errorf("Queued, ActiveThreads = %d, %d; want 0, 0", p.Queued(), p.ActiveThreads())
	}
}

// TestThreadPool_ReserveClamps verifies Reserve never exceeds MaxThreads
func TestThreadPool_ReserveClamps(t *testing.T) {
	p := NewThreadPool(WithMaxThreads(2))
	p.Reserve(10)
	if p.ReservedThreads() != 2 {
		t.Errorf("ReservedThreads() = %d, want 2", p.ReservedThreads())
	}
	if p.StartNow(TaskFunc(func() error { return nil })) {
		t.Error("StartNow() with all capacity reserved = true, want false")
	}
	p.Reserve(0)
	if p.ReservedThreads() != 0 {
		t.Errorf("ReservedThreads() = %d, want 0", p.ReservedThreads())
	}
}

// TestThreadPool_ReservePushBack verifies a failed re-dispatch returns the task to the queue
// Given: A two-thread pool with one busy worker and the full capacity reserved
// When: The reservation drops to one while the pool is still saturated
// Then: The popped task is pushed back and runs once the busy worker finishes
func TestThreadPool_ReservePushBack(t *testing.T) {
	// Arrange
	p := NewThreadPool(WithMaxThreads(2))
	gate := newGatedTask()
	p.Start(gate)
	gate.waitStarted(t)
	p.Reserve(2)
	done := make(chan struct{})
	p.Start(TaskFunc(func() error { close(done); return nil }))

	// Act
	p.Reserve(1)

	// Assert
	if p.Queued() != 1 {
		t.Fatalf("Queued() = %d, want 1", p.Queued())
	}

	gate.open()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("queued task did not run after the worker finished")
	}
	p.Reserve(0)
	p.Wait()
}

// TestThreadPool_Overworking verifies workers retire while the pool is over capacity
// Given: A two-thread pool with two busy workers
// When: One thread is reserved and a task is queued, then the workers finish one by one
// Then: The first worker retires without pulling work; the second runs the queued task
func TestThreadPool_Overworking(t *testing.T) {
	// Arrange
	p := NewThreadPool(WithMaxThreads(2), WithRetireTimeout(time.Minute))
	first, second := newGatedTask(), newGatedTask()
	p.Start(first)
	p.Start(second)
	first.waitStarted(t)
	second.waitStarted(t)

	// Act - Reserve while both workers are busy
	p.Reserve(1)
	if !p.Stats().Overworking() {
		t.Fatalf("Stats() = %+v, want overworking", p.Stats())
	}
	done := make(chan struct{})
	p.Start(TaskFunc(func() error { close(done); return nil }))

	first.open()

	// Assert - First worker retired, task still queued
	assertEventually(t, 2*time.Second, func() bool { return p.RetiredThreads() == 1 })
	if p.Queued() != 1 {
		t.Errorf("Queued() while overworking = %d, want 1", p.Queued())
	}
	if p.ActiveThreads() != 2 {
		t.Errorf("ActiveThreads() = %d, want 2", p.ActiveThreads())
	}

	second.open()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("queued task did not run after the pool left overworking")
	}
	p.Reserve(0)
	p.Wait()
}

// TestThreadPool_LockOSThread verifies tasks run with thread locking and CPU pinning enabled
func TestThreadPool_LockOSThread(t *testing.T) {
	p := NewThreadPool(WithMaxThreads(2), WithCPUAffinity(true))
	var ran atomic.Int32
	for i := 0; i < 4; i++ {
		p.Start(TaskFunc(func() error { ran.Add(1); return nil }))
	}
	p.Wait()
	if ran.Load() != 4 {
		t.Errorf("ran = %d, want 4", ran.Load())
	}
}
