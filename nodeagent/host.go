package nodeagent

import "sync"

// Host is a node process's local view of the adapters it currently hosts:
// the application servers running on this machine, each bound to a
// directly reachable endpoint. An AdapterCache never talks to a Host
// directly — it talks to one through a serverhandle.TransportServerHandle
// dialed at the address this node advertises.
type Host struct {
	mu       sync.RWMutex
	adapters map[string]string // adapter id -> endpoint
	sampler  *LoadSampler
}

// NewHost returns an empty Host with its own load sampler.
func NewHost() *Host {
	return &Host{
		adapters: make(map[string]string),
		sampler:  NewLoadSampler(),
	}
}

// SetAdapter records (or updates) the endpoint a locally hosted adapter is
// reachable at. Called when the application server activates or rebinds.
func (h *Host) SetAdapter(id, endpoint string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.adapters[id] = endpoint
}

// RemoveAdapter forgets a locally hosted adapter, e.g. on deactivation.
func (h *Host) RemoveAdapter(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.adapters, id)
}

// Adapter returns the endpoint for id and whether it is currently hosted.
func (h *Host) Adapter(id string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	endpoint, ok := h.adapters[id]
	return endpoint, ok
}

// Observe records a raw load sample (e.g. active-request count) for this
// node's sampler.
func (h *Host) Observe(value float64) {
	h.sampler.Observe(value)
}

// Load returns the node's current load for the given sample window kind.
func (h *Host) Load(kind int) float32 {
	return h.sampler.Sample(kind)
}
