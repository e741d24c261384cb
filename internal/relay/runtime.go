package relay

import (
	"sync"
	"sync/atomic"
)

// Runtime is the process-scoped state shared by all relay components
type Runtime struct {
	Registry  *Registry
	Cooldowns *Cooldowns

	shuttingDown atomic.Bool
	// stopping is closed when shutdown begins
	stopping chan struct{}
	// admitMu serializes the admission commit with the start of shutdown
	admitMu sync.Mutex
}

// NewRuntime returns empty state
func NewRuntime() *Runtime {
	return &Runtime{
		Registry:  NewRegistry(),
		Cooldowns: NewCooldowns(),
		stopping:  make(chan struct{}),
	}
}

// ShuttingDown reports whether shutdown has begun. Once true it never resets.
func (r *Runtime) ShuttingDown() bool {
	return r.shuttingDown.Load()
}

// beginShutdown sets the flag and reports whether this call set it
func (r *Runtime) beginShutdown() bool {
	r.admitMu.Lock()
	defer r.admitMu.Unlock()
	if !r.shuttingDown.CompareAndSwap(false, true) {
		return false
	}
	close(r.stopping)
	return true
}

// Stopping is closed once shutdown has begun
func (r *Runtime) Stopping() <-chan struct{} {
	return r.stopping
}
