package threadpool

import "github.com/Swind/go-thread-pool/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the threadpool package for most use cases.

// Task is the unit of work executed by the pool
type Task = core.Task

// TaskFunc adapts a plain function to Task
type TaskFunc = core.TaskFunc

// TaskPriority orders queued tasks; higher runs first
type TaskPriority = core.TaskPriority

// PoolStats is a point-in-time snapshot returned by ThreadPool.Stats
type PoolStats = core.PoolStats

// Priority constants
const (
	TaskPriorityBestEffort   TaskPriority = core.TaskPriorityBestEffort
	TaskPriorityUserVisible  TaskPriority = core.TaskPriorityUserVisible
	TaskPriorityUserBlocking TaskPriority = core.TaskPriorityUserBlocking
)

// NewDisposableTask creates a task the pool releases after running it.
var NewDisposableTask = core.NewDisposableTask
