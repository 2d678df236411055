package threadpool

import (
	"context"
	"runtime/debug"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/semaphore"

	"github.com/Swind/go-thread-pool/core"
)

// Reservation is capacity taken out of a ThreadPool for work that runs on
// goroutines the pool does not manage. While it is held the pool counts the
// acquired threads as active and dispatches less of its own work.
type Reservation struct {
	pool *ThreadPool
	n    int
	sem  *semaphore.Weighted

	mu       sync.Mutex
	drained  *sync.Cond // signalled when running drops to zero
	running  int
	errs     error
	released bool
}

// Acquire takes up to n threads of the capacity that is neither reserved
// nor held by other Reservations. The grant may be zero; check Size. Call
// Release when the outside work is finished. Later Reserve calls do not
// change the grant.
func (p *ThreadPool) Acquire(n uint) *Reservation {
	p.mu.Lock()
	free := max(p.maxThreads-p.reserved-p.acquired, 0)
	granted := int(min(n, uint(free)))
	p.acquired += granted
	p.publishLocked()
	p.mu.Unlock()

	r := &Reservation{pool: p, n: granted}
	r.drained = sync.NewCond(&r.mu)
	if r.n > 0 {
		r.sem = semaphore.NewWeighted(int64(r.n))
	}
	p.logger.Debug("capacity acquired", core.F("pool", p.id), core.F("requested", n), core.F("granted", r.n))
	return r
}

// Size returns the number of threads granted.
func (r *Reservation) Size() int {
	return r.n
}

// Go runs fn on a new goroutine once one of the reservation's slots is
// free, blocking until then or until ctx is done. At most Size functions
// run at a time. Errors returned or panics raised by fn are collected for
// Wait and Release.
func (r *Reservation) Go(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return core.ErrNilTask
	}
	if r.n == 0 {
		return core.ErrNoCapacityReserved
	}

	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return core.ErrReservationReleased
	}
	r.running++
	r.mu.Unlock()

	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.finish(nil)
		return err
	}

	go func() {
		defer r.sem.Release(1)
		r.finish(runReserved(ctx, fn))
	}()
	return nil
}

func (r *Reservation) finish(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = multierr.Append(r.errs, err)
	r.running--
	if r.running == 0 {
		r.drained.Broadcast()
	}
}

func runReserved(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &core.PanicError{Value: rec, Stack: debug.Stack()}
		}
	}()
	return fn(ctx)
}

// Wait blocks until no function started by Go is running and reports the
// errors collected so far. It may be called while other goroutines are
// still calling Go.
func (r *Reservation) Wait() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.running > 0 {
		r.drained.Wait()
	}
	return r.errs
}

// Release waits for outstanding work, then hands the threads back to the
// pool, which may immediately start a queued task on them. Only the first
// call has any effect; later calls return nil.
func (r *Reservation) Release() error {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return nil
	}
	r.released = true
	r.mu.Unlock()

	err := r.Wait()

	if r.n > 0 {
		p := r.pool
		p.mu.Lock()
		p.acquired -= r.n
		p.publishLocked()
		p.dispatchFreedLocked()
		p.mu.Unlock()
		p.logger.Debug("capacity released", core.F("pool", p.id), core.F("released", r.n))
	}
	return err
}
