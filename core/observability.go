package core

// PoolStats is a point-in-time snapshot of a thread pool's accounting.
type PoolStats struct {
	ID         string `json:"id"`
	MaxThreads int    `json:"max_threads"`
	Active     int    `json:"active"` // spawned + reserved + acquired - retired - idle
	Idle       int    `json:"idle"`
	Retired    int    `json:"retired"`
	Reserved   int    `json:"reserved"`
	Acquired   int    `json:"acquired"` // held by Reservations
	Workers    int    `json:"workers"`  // live worker goroutines
	Queued     int    `json:"queued"`
	Executed   uint64 `json:"executed"`
	Failed     uint64 `json:"failed"`
}

// Overworking reports whether the snapshot exceeded the pool's ceiling.
func (s PoolStats) Overworking() bool {
	return s.Active > s.MaxThreads
}
