package threadpool

import (
	"sync"
	"testing"
	"time"

	"github.com/Swind/go-thread-pool/core"
)

func assertEventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

// gatedTask blocks in Start until release is closed.
type gatedTask struct {
	started chan struct{}
	release chan struct{}
}

func newGatedTask() *gatedTask {
	return &gatedTask{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedTask) Start() error {
	close(g.started)
	<-g.release
	return nil
}

func (g *gatedTask) AutoDelete() bool { return false }

func (g *gatedTask) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-g.started:
	case <-time.After(2 * time.Second):
		t.Fatal("gated task did not start")
	}
}

func (g *gatedTask) open() { close(g.release) }

// recordingMetrics is a core.Metrics that counts calls.
type recordingMetrics struct {
	mu        sync.Mutex
	durations int
	failures  []error
	depths    []int
	rejected  map[string]int
	events    map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		rejected: make(map[string]int),
		events:   make(map[string]int),
	}
}

func (m *recordingMetrics) RecordTaskDuration(string, core.TaskPriority, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations++
}

func (m *recordingMetrics) RecordTaskFailure(_ string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, err)
}

func (m *recordingMetrics) RecordQueueDepth(_ string, depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.depths = append(m.depths, depth)
}

func (m *recordingMetrics) RecordTaskRejected(_ string, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[reason]++
}

func (m *recordingMetrics) RecordWorkerEvent(_ string, event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event]++
}

func (m *recordingMetrics) event(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[name]
}

func (m *recordingMetrics) rejections(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rejected[reason]
}

// recordingRejectedHandler remembers rejection reasons.
type recordingRejectedHandler struct {
	mu      sync.Mutex
	reasons []string
}

func (h *recordingRejectedHandler) HandleRejectedTask(_ string, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reasons = append(h.reasons, reason)
}

func (h *recordingRejectedHandler) all() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.reasons...)
}

// orderLog records task tags in execution order.
type orderLog struct {
	mu   sync.Mutex
	tags []int
}

func (l *orderLog) add(tag int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tags = append(l.tags, tag)
}

func (l *orderLog) snapshot() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.tags...)
}

func (p *ThreadPool) spawnedSlots() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}
