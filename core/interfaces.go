package core

import (
	"time"
)

// =============================================================================
// TaskErrorHandler: side channel for task failures
// =============================================================================

// TaskErrorHandler is called when a task returns an error or panics.
// The pool itself never surfaces task failures to the caller of Start; this
// hook is the only place they become visible.
//
// Implementations should be thread-safe as they may be called concurrently
// from several workers.
type TaskErrorHandler interface {
	// HandleTaskError is called after a failed task has finished.
	//
	// Parameters:
	// - poolID: The ID of the pool that ran the task
	// - workerID: The slot index of the worker that ran the task
	// - priority: The priority the task was scheduled with
	// - err: The returned error, or a *PanicError for a recovered panic
	HandleTaskError(poolID string, workerID int, priority TaskPriority, err error)
}

// TaskErrorHandlerFunc adapts a function to TaskErrorHandler.
type TaskErrorHandlerFunc func(poolID string, workerID int, priority TaskPriority, err error)

func (f TaskErrorHandlerFunc) HandleTaskError(poolID string, workerID int, priority TaskPriority, err error) {
	f(poolID, workerID, priority, err)
}

// SilentTaskErrorHandler discards task failures. It is the default.
type SilentTaskErrorHandler struct{}

func (h *SilentTaskErrorHandler) HandleTaskError(string, int, TaskPriority, error) {}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Worker lifecycle events reported through Metrics.RecordWorkerEvent.
const (
	WorkerSpawned = "spawned"
	WorkerReused  = "reused"
	WorkerRetired = "retired"
	WorkerExited  = "exited"
)

// Metrics defines the interface for collecting pool execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast; some are called while the pool
// holds its lock.
type Metrics interface {
	// RecordTaskDuration records how long a task took to execute.
	RecordTaskDuration(poolID string, priority TaskPriority, duration time.Duration)

	// RecordTaskFailure records that a task returned an error or panicked.
	RecordTaskFailure(poolID string, err error)

	// RecordQueueDepth records the current number of queued tasks.
	RecordQueueDepth(poolID string, depth int)

	// RecordTaskRejected records that Start or StartNow refused a task.
	// reason is RejectNilTask or RejectSaturated.
	RecordTaskRejected(poolID string, reason string)

	// RecordWorkerEvent records a worker lifecycle transition
	// (WorkerSpawned, WorkerReused, WorkerRetired, WorkerExited).
	RecordWorkerEvent(poolID string, event string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordTaskDuration(string, TaskPriority, time.Duration) {}
func (m *NilMetrics) RecordTaskFailure(string, error)                        {}
func (m *NilMetrics) RecordQueueDepth(string, int)                           {}
func (m *NilMetrics) RecordTaskRejected(string, string)                      {}
func (m *NilMetrics) RecordWorkerEvent(string, string)                       {}

// =============================================================================
// RejectedTaskHandler: Interface for handling rejected tasks
// =============================================================================

// RejectedTaskHandler is called when a task is refused: a nil task passed to
// Start/StartNow, or StartNow finding the pool saturated. A refused task is
// still owned by the caller.
type RejectedTaskHandler interface {
	HandleRejectedTask(poolID string, reason string)
}

// NopRejectedTaskHandler ignores rejections. It is the default.
type NopRejectedTaskHandler struct{}

func (h *NopRejectedTaskHandler) HandleRejectedTask(string, string) {}

// =============================================================================
// PoolConfig: Configuration for ThreadPool
// =============================================================================

// PoolConfig holds configuration options for a ThreadPool.
// Zero values are replaced with defaults by FillDefaults.
type PoolConfig struct {
	// ID names the pool in logs, metrics and stats. Defaults to DefaultPoolID.
	ID string

	// MaxThreads is the ideal parallelism. Defaults to runtime.NumCPU().
	MaxThreads int

	// RetireTimeout is how long an idle worker waits before retiring.
	// Defaults to DefaultRetireTimeout.
	RetireTimeout time.Duration

	// LockOSThread wires each worker goroutine to its own OS thread.
	LockOSThread bool

	// CPUAffinity pins worker N to CPU N mod NumCPU (Linux only).
	// Implies LockOSThread.
	CPUAffinity bool

	Logger              Logger
	Metrics             Metrics
	TaskErrorHandler    TaskErrorHandler
	RejectedTaskHandler RejectedTaskHandler
}

const (
	DefaultPoolID        = "thread-pool"
	DefaultRetireTimeout = 10 * time.Second
)

// FillDefaults replaces zero values. numCPU is the fallback for MaxThreads.
func (c *PoolConfig) FillDefaults(numCPU int) {
	if c.ID == "" {
		c.ID = DefaultPoolID
	}
	if c.MaxThreads <= 0 {
		c.MaxThreads = max(numCPU, 1)
	}
	if c.RetireTimeout <= 0 {
		c.RetireTimeout = DefaultRetireTimeout
	}
	if c.CPUAffinity {
		c.LockOSThread = true
	}
	if c.Logger == nil {
		c.Logger = NewNoOpLogger()
	}
	if c.Metrics == nil {
		c.Metrics = &NilMetrics{}
	}
	if c.TaskErrorHandler == nil {
		c.TaskErrorHandler = &SilentTaskErrorHandler{}
	}
	if c.RejectedTaskHandler == nil {
		c.RejectedTaskHandler = &NopRejectedTaskHandler{}
	}
}
