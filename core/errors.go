package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNilTask is reported when a nil task is submitted.
	ErrNilTask = errors.New("threadpool: task is nil")

	// ErrSaturated is reported when StartNow finds no free capacity.
	ErrSaturated = errors.New("threadpool: no free capacity")

	// ErrTaskPanicked matches every PanicError via errors.Is.
	ErrTaskPanicked = errors.New("threadpool: task panicked")

	// ErrNoCapacityReserved is returned by Reservation.Go when the
	// reservation was granted zero threads.
	ErrNoCapacityReserved = errors.New("threadpool: no capacity reserved")

	// ErrReservationReleased is returned by Reservation.Go after Release.
	ErrReservationReleased = errors.New("threadpool: reservation released")
)

// Rejection reasons passed to RejectedTaskHandler and Metrics.
const (
	RejectNilTask   = "nil_task"
	RejectSaturated = "saturated"
)

// PanicError carries a value recovered from a panicking task.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("threadpool: task panicked: %v", e.Value)
}

func (e *PanicError) Is(target error) bool {
	return target == ErrTaskPanicked
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
