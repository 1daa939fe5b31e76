package serverhandle

import (
	"sync"

	"go.uber.org/multierr"
)

// closer is satisfied by TransportServerHandle; kept as a small interface
// so HandleSet doesn't force every ServerHandle implementation (e.g. Mock)
// to grow a Close method.
type closer interface {
	Close() error
}

// HandleSet tracks every TransportServerHandle a process has dialed, keyed
// by node address, so a clean process shutdown can tear all of them down
// at once instead of leaking connections one at a time.
type HandleSet struct {
	mu      sync.Mutex
	handles map[string]*TransportServerHandle
}

// NewHandleSet returns an empty set.
func NewHandleSet() *HandleSet {
	return &HandleSet{handles: make(map[string]*TransportServerHandle)}
}

// Get returns the existing handle for addr, creating one on first use.
func (s *HandleSet) Get(addr string) *TransportServerHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.handles[addr]; ok {
		return h
	}
	h := NewTransportServerHandle(addr)
	s.handles[addr] = h
	return h
}

// CloseAll closes every handle in the set, collecting every non-nil error
// into a single combined error rather than stopping at the first failure —
// one unreachable node during shutdown shouldn't prevent the rest from
// being torn down.
func (s *HandleSet) CloseAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for addr, h := range s.handles {
		var c closer = h
		if closeErr := c.Close(); closeErr != nil {
			err = multierr.Append(err, closeErr)
		}
		delete(s.handles, addr)
	}
	return err
}
