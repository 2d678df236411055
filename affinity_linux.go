//go:build linux

package threadpool

import (
	"golang.org/x/sys/unix"
)

// pinToCPU binds the calling OS thread to cpu. The goroutine must already
// hold its thread via runtime.LockOSThread.
func pinToCPU(cpu int) error {
	var mask unix.CPUSet
	mask.Zero()
	mask.Set(cpu)
	return unix.SchedSetaffinity(0, &mask)
}
