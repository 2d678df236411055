package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-thread-pool/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// PoolSnapshotProvider provides current pool stats snapshots.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

// SnapshotPoller periodically exports pool Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	poolsMu sync.RWMutex
	pools   map[string]PoolSnapshotProvider

	poolQueued      *prom.GaugeVec
	poolActive      *prom.GaugeVec
	poolIdle        *prom.GaugeVec
	poolRetired     *prom.GaugeVec
	poolReserved    *prom.GaugeVec
	poolAcquired    *prom.GaugeVec
	poolWorkers     *prom.GaugeVec
	poolMaxThreads  *prom.GaugeVec
	poolExecuted    *prom.GaugeVec
	poolFailed      *prom.GaugeVec
	poolOverworking *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func newPoolGauge(name, help string) *prom.GaugeVec {
	return prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "threadpool",
		Name:      name,
		Help:      help,
	}, []string{"pool"})
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	p := &SnapshotPoller{
		interval:        interval,
		pools:           make(map[string]PoolSnapshotProvider),
		poolQueued:      newPoolGauge("pool_queued", "Queued tasks per pool."),
		poolActive:      newPoolGauge("pool_active", "Threads counted against capacity per pool, reserved and acquired included."),
		poolIdle:        newPoolGauge("pool_idle", "Idle workers per pool."),
		poolRetired:     newPoolGauge("pool_retired", "Retired, reusable worker slots per pool."),
		poolReserved:    newPoolGauge("pool_reserved", "Reserved threads per pool."),
		poolAcquired:    newPoolGauge("pool_acquired", "Threads held by reservation handles per pool."),
		poolWorkers:     newPoolGauge("pool_workers", "Live worker goroutines per pool."),
		poolMaxThreads:  newPoolGauge("pool_max_threads", "Configured parallelism per pool."),
		poolExecuted:    newPoolGauge("pool_executed_total", "Executed task count snapshot."),
		poolFailed:      newPoolGauge("pool_failed_total", "Failed task count snapshot."),
		poolOverworking: newPoolGauge("pool_overworking", "Overworking state (1=over capacity, 0=within)."),
	}

	for _, g := range []**prom.GaugeVec{
		&p.poolQueued, &p.poolActive, &p.poolIdle, &p.poolRetired, &p.poolReserved, &p.poolAcquired,
		&p.poolWorkers, &p.poolMaxThreads, &p.poolExecuted, &p.poolFailed, &p.poolOverworking,
	} {
		registered, err := registerCollector(reg, *g)
		if err != nil {
			return nil, err
		}
		*g = registered
	}
	return p, nil
}

// AddPool adds or replaces a pool snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.poolsMu.Lock()
	p.pools[name] = provider
	p.poolsMu.Unlock()
}

// RemovePool stops exporting a pool and deletes its series.
func (p *SnapshotPoller) RemovePool(name string) {
	if p == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.poolsMu.Lock()
	delete(p.pools, name)
	p.poolsMu.Unlock()

	for _, g := range []*prom.GaugeVec{
		p.poolQueued, p.poolActive, p.poolIdle, p.poolRetired, p.poolReserved, p.poolAcquired,
		p.poolWorkers, p.poolMaxThreads, p.poolExecuted, p.poolFailed, p.poolOverworking,
	} {
		g.DeleteLabelValues(name)
	}
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx, p.done)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.poolsMu.RLock()
	defer p.poolsMu.RUnlock()

	for name, provider := range p.pools {
		stats := provider.Stats()
		p.poolQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.poolActive.WithLabelValues(name).Set(float64(stats.Active))
		p.poolIdle.WithLabelValues(name).Set(float64(stats.Idle))
		p.poolRetired.WithLabelValues(name).Set(float64(stats.Retired))
		p.poolReserved.WithLabelValues(name).Set(float64(stats.Reserved))
		p.poolAcquired.WithLabelValues(name).Set(float64(stats.Acquired))
		p.poolWorkers.WithLabelValues(name).Set(float64(stats.Workers))
		p.poolMaxThreads.WithLabelValues(name).Set(float64(stats.MaxThreads))
		p.poolExecuted.WithLabelValues(name).Set(float64(stats.Executed))
		p.poolFailed.WithLabelValues(name).Set(float64(stats.Failed))
		if stats.Overworking() {
			p.poolOverworking.WithLabelValues(name).Set(1)
		} else {
			p.poolOverworking.WithLabelValues(name).Set(0)
		}
	}
}
