package core

// Task is the unit of work executed by a ThreadPool worker.
//
// Start performs the work; its error is the task's own concern and is only
// reported through the pool's TaskErrorHandler and Metrics hooks. AutoDelete
// is read after Start returns: when true the pool takes ownership and
// releases the task (calling Dispose if the task implements Disposer).
type Task interface {
	Start() error
	AutoDelete() bool
}

// Disposer is implemented by tasks that hold resources to release once the
// pool is done with them.
type Disposer interface {
	Dispose()
}

// TaskFunc adapts a plain function to the Task interface.
// The caller keeps ownership: AutoDelete reports false.
type TaskFunc func() error

func (f TaskFunc) Start() error     { return f() }
func (f TaskFunc) AutoDelete() bool { return false }

type disposableTask struct {
	fn      func() error
	dispose func()
}

// NewDisposableTask returns a pool-owned task. After fn runs, the pool calls
// dispose (if non-nil) and drops its reference.
func NewDisposableTask(fn func() error, dispose func()) Task {
	return &disposableTask{fn: fn, dispose: dispose}
}

func (t *disposableTask) Start() error     { return t.fn() }
func (t *disposableTask) AutoDelete() bool { return true }

func (t *disposableTask) Dispose() {
	if t.dispose != nil {
		t.dispose()
	}
}

// IsNilTask reports whether t cannot be started: a nil interface, a nil
// TaskFunc, or a disposable task without a function.
func IsNilTask(t Task) bool {
	switch v := t.(type) {
	case nil:
		return true
	case TaskFunc:
		return v == nil
	case *disposableTask:
		return v == nil || v.fn == nil
	}
	return false
}

// =============================================================================
// TaskPriority: higher values are dispatched first
// =============================================================================

type TaskPriority uint32

const (
	// TaskPriorityBestEffort: Lowest priority, used by Start
	TaskPriorityBestEffort TaskPriority = iota

	// TaskPriorityUserVisible: work whose result the user will eventually see
	TaskPriorityUserVisible

	// TaskPriorityUserBlocking: work the user is actively waiting on
	TaskPriorityUserBlocking
)

// String returns the label used by logs and metrics.
func (p TaskPriority) String() string {
	switch p {
	case TaskPriorityBestEffort:
		return "best_effort"
	case TaskPriorityUserVisible:
		return "user_visible"
	case TaskPriorityUserBlocking:
		return "user_blocking"
	default:
		return "custom"
	}
}
