package worker

import "sync"

// ConnLocks serializes engine runs per connection id. A connection's session
// directory tolerates exactly one live browser context; two runs sharing it
// corrupt the profile. The FIFO queue already serializes deliveries per
// connection across pods; this guards the in-process worker pool.
type ConnLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewConnLocks() *ConnLocks {
	return &ConnLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock blocks until the connection is free and returns the unlock func.
func (l *ConnLocks) Lock(connectionID string) func() {
	l.mu.Lock()
	m, ok := l.locks[connectionID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[connectionID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
