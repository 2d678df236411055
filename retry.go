package threadpool

import (
	"context"
	"fmt"
	"time"

	boff "github.com/Andrej220/go-utils/backoff"

	"github.com/Swind/go-thread-pool/core"
)

const (
	defaultRetryAttempts = 3
	defaultRetryInitial  = 10 * time.Millisecond
	defaultRetryMax      = 500 * time.Millisecond
)

// RetryPolicy describes how StartNowWithRetry backs off while the pool is
// saturated. Zero values are treated as "use defaults".
type RetryPolicy struct {
	// Attempts is the maximum number of StartNow calls.
	Attempts int

	// Initial is the first backoff duration.
	Initial time.Duration

	// Max is the cap for backoff duration.
	Max time.Duration
}

// DefaultRetryPolicy returns the policy used for zero fields.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: defaultRetryAttempts,
		Initial:  defaultRetryInitial,
		Max:      defaultRetryMax,
	}
}

func (rp RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if rp.Attempts <= 0 {
		rp.Attempts = def.Attempts
	}
	if rp.Initial <= 0 {
		rp.Initial = def.Initial
	}
	if rp.Max <= 0 {
		rp.Max = def.Max
	}
	if rp.Max < rp.Initial {
		rp.Max = rp.Initial
	}
	return rp
}

// ImmediateStarter is the part of ThreadPool that StartNowWithRetry needs.
type ImmediateStarter interface {
	StartNow(task core.Task) bool
}

// StartNowWithRetry calls s.StartNow until it accepts task, sleeping with
// jittered exponential backoff between attempts. The task is never queued:
// on any error the caller still owns it.
//
// It returns core.ErrNilTask for a nil task, an error wrapping
// core.ErrSaturated once the attempts are used up, or ctx.Err().
func StartNowWithRetry(ctx context.Context, s ImmediateStarter, task core.Task, policy RetryPolicy) error {
	if core.IsNilTask(task) {
		return core.ErrNilTask
	}
	pol := policy.withDefaults()
	bo := boff.New(pol.Initial, pol.Max, time.Now().UnixNano())

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.StartNow(task) {
			return nil
		}
		if attempt == pol.Attempts {
			return fmt.Errorf("start now after %d attempts: %w", attempt, core.ErrSaturated)
		}

		timer := time.NewTimer(bo.Next())
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}
