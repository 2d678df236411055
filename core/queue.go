package core

import (
	"container/heap"
)

const (
	defaultQueueCap = 16
	compactMinCap   = 64 // Don't compact if capacity is less than this
)

// QueueEntry is a pending task together with its scheduling priority.
type QueueEntry struct {
	Task     Task
	Priority TaskPriority

	sequence uint64 // For stability; 0 until first queued
}

// NewQueueEntry returns an entry that has not been queued yet.
func NewQueueEntry(t Task, priority TaskPriority) QueueEntry {
	return QueueEntry{Task: t, Priority: priority}
}

// =============================================================================
// PriorityTaskQueue: Max-Heap based queue with Stability (FIFO for same priority)
// =============================================================================

// priorityHeap implements heap.Interface
type priorityHeap []QueueEntry

func (h priorityHeap) Len() int { return len(h) }

// Less implements priority logic: High priority first, then Small sequence first (FIFO)
func (h priorityHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].sequence < h[j].sequence
}

func (h priorityHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *priorityHeap) Push(x any) {
	*h = append(*h, x.(QueueEntry))
}

func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = QueueEntry{} // Avoid memory leak
	*h = old[0 : n-1]
	return item
}

// PriorityTaskQueue orders pending tasks by priority, highest first.
//
// It is not safe for concurrent use; the owning ThreadPool guards it with
// its own mutex.
type PriorityTaskQueue struct {
	pq           priorityHeap
	nextSequence uint64
}

func NewPriorityTaskQueue() *PriorityTaskQueue {
	return &PriorityTaskQueue{
		pq:           make(priorityHeap, 0, defaultQueueCap),
		nextSequence: 1,
	}
}

// Push adds a task behind every queued task of the same priority.
func (q *PriorityTaskQueue) Push(t Task, priority TaskPriority) {
	q.PushEntry(NewQueueEntry(t, priority))
}

// PushEntry inserts e. A fresh entry is placed behind its same-priority
// peers; an entry previously returned by Pop keeps its original sequence and
// so regains its place among them.
func (q *PriorityTaskQueue) PushEntry(e QueueEntry) {
	if e.sequence == 0 {
		e.sequence = q.nextSequence
		q.nextSequence++
	}
	heap.Push(&q.pq, e)
}

func (q *PriorityTaskQueue) Pop() (QueueEntry, bool) {
	if len(q.pq) == 0 {
		return QueueEntry{}, false
	}
	item := heap.Pop(&q.pq).(QueueEntry)
	q.maybeCompact()
	return item, true
}

// Peek returns the entry Pop would return without removing it.
func (q *PriorityTaskQueue) Peek() (QueueEntry, bool) {
	if len(q.pq) == 0 {
		return QueueEntry{}, false
	}
	// 0 is the highest priority item because we defined Less to put highest priority at top
	return q.pq[0], true
}

func (q *PriorityTaskQueue) Len() int {
	return len(q.pq)
}

func (q *PriorityTaskQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Clear removes all tasks from the queue and releases references
func (q *PriorityTaskQueue) Clear() {
	q.pq = make(priorityHeap, 0, defaultQueueCap)
	q.nextSequence = 1
}

// maybeCompact releases backing storage once a burst has drained.
func (q *PriorityTaskQueue) maybeCompact() {
	if len(q.pq) == 0 && cap(q.pq) >= compactMinCap {
		q.pq = make(priorityHeap, 0, defaultQueueCap)
	}
}
