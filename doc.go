// Package threadpool provides a prioritized, self-sizing pool of worker
// goroutines.
//
// A ThreadPool runs tasks on at most MaxThreads workers. Workers are spawned
// on demand, park as idle when there is no work, and retire after an idle
// timeout; retired worker slots are reused by later spawns. When every
// worker is busy, tasks wait in a priority queue and are dispatched highest
// priority first, in submission order among equal priorities.
//
// # Quick Start
//
// Create one pool at application startup and pass it to the code that needs
// it:
//
//	pool := threadpool.NewThreadPool(
//		threadpool.WithMaxThreads(4),
//		threadpool.WithRetireTimeout(5*time.Second),
//	)
//	defer pool.Wait()
//
//	pool.StartWithPriority(threadpool.TaskFunc(func() error {
//		return render()
//	}), threadpool.TaskPriorityUserBlocking)
//
// # Dispatch
//
// Start never blocks: it hands the task to a worker or queues it, and only
// fails for a nil task. StartNow refuses instead of queueing when the pool
// is saturated; StartNowWithRetry retries it with backoff.
//
// # Reserved Capacity
//
// Reserve and Acquire set threads aside for work that runs outside the pool.
// Reserve sets an absolute count; Acquire hands out a Reservation whose grant
// is tracked separately until Release, so the two never overwrite each
// other. Both count as active, so the pool dispatches correspondingly less
// of its own work. Raising the reservation while tasks run can leave
// the pool overworking; workers then retire after their current task until
// the count is back under MaxThreads.
//
// # Failures
//
// A task's error or panic never reaches the caller of Start and never stops
// a worker. It is reported to the TaskErrorHandler, the Metrics sink and the
// Logger, all of which default to doing nothing.
//
// # Shutdown
//
// Wait drains the pool back to zero workers. Reserved capacity is kept, and
// tasks that no worker could pick up before exiting stay queued.
package threadpool
