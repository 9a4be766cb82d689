package scan

import "sync"

// hostLocks enforces at most one active scan per host. The lock is held for
// the full duration of a running job and released exactly once on its
// terminal transition.
type hostLocks struct {
	mu   sync.Mutex
	held map[uint]struct{}
}

func newHostLocks() *hostLocks {
	return &hostLocks{held: make(map[uint]struct{})}
}

// TryAcquire takes the lock for a host if free; it never blocks.
func (l *hostLocks) TryAcquire(hostID uint) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[hostID]; busy {
		return false
	}
	l.held[hostID] = struct{}{}
	return true
}

func (l *hostLocks) Release(hostID uint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, hostID)
}

// Held reports whether a scan is in flight for the host.
func (l *hostLocks) Held(hostID uint) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, busy := l.held[hostID]
	return busy
}
