package threadpool

import (
	"time"

	"github.com/Swind/go-thread-pool/core"
)

// Option configures a ThreadPool built by NewThreadPool.
type Option func(*core.PoolConfig)

// WithID names the pool in logs, metrics and stats.
func WithID(id string) Option {
	return func(c *core.PoolConfig) {
		c.ID = id
	}
}

// WithMaxThreads sets the ideal parallelism. It cannot change afterwards.
func WithMaxThreads(n int) Option {
	return func(c *core.PoolConfig) {
		c.MaxThreads = n
	}
}

func WithRetireTimeout(d time.Duration) Option {
	return func(c *core.PoolConfig) {
		c.RetireTimeout = d
	}
}

func WithLogger(logger core.Logger) Option {
	return func(c *core.PoolConfig) {
		c.Logger = logger
	}
}

func WithMetrics(metrics core.Metrics) Option {
	return func(c *core.PoolConfig) {
		c.Metrics = metrics
	}
}

func WithTaskErrorHandler(h core.TaskErrorHandler) Option {
	return func(c *core.PoolConfig) {
		c.TaskErrorHandler = h
	}
}

func WithRejectedTaskHandler(h core.RejectedTaskHandler) Option {
	return func(c *core.PoolConfig) {
		c.RejectedTaskHandler = h
	}
}

// WithLockOSThread gives every worker goroutine an OS thread of its own.
func WithLockOSThread(enabled bool) Option {
	return func(c *core.PoolConfig) {
		c.LockOSThread = enabled
	}
}

// WithCPUAffinity pins worker N to CPU N mod NumCPU. Only Linux honours it;
// enabling it also enables WithLockOSThread.
func WithCPUAffinity(enabled bool) Option {
	return func(c *core.PoolConfig) {
		c.CPUAffinity = enabled
	}
}
