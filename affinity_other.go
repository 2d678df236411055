//go:build !linux

package threadpool

func pinToCPU(int) error { return nil }
