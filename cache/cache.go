package cache

import (
	"context"
	"errors"
	"sync"

	"github.com/gridlocator/gridlocator/gridlog"
	"github.com/gridlocator/gridlocator/metrics"
	"github.com/gridlocator/gridlocator/serverhandle"
)

// AdapterDescriptor describes a server-adapter to be added to the cache.
// Priority arrives as a decimal string, parsed with legacy fallback rules
// matching the wire descriptor format.
type AdapterDescriptor struct {
	ID             string `json:"id" yaml:"id"`
	ReplicaGroupID string `json:"replica_group_id" yaml:"replica_group_id"`
	Priority       string `json:"priority" yaml:"priority"`
}

// ReplicaGroupDescriptor describes a replica group to be added to the
// cache. PolicyKind/NReplicas/LoadSample mirror the wire descriptor's
// policy specification.
type ReplicaGroupDescriptor struct {
	ID         string     `json:"id" yaml:"id"`
	Kind       PolicyKind `json:"kind" yaml:"kind"`
	NReplicas  string     `json:"n_replicas" yaml:"n_replicas"`
	LoadSample string     `json:"load_sample" yaml:"load_sample"`
}

// AdapterCache is the process-wide keyed store of entries: a single
// exclusive guard over the id -> entry map, held only for short
// insert/lookup/remove operations and never across a call into a server
// handle. It cross-links server-adapters to their replica group on
// add/remove.
type AdapterCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New returns an empty adapter cache. The cache has process lifetime —
// there is no Close/Shutdown for the map itself, only for resources (e.g.
// serverhandle connections) that outlive it, which callers own directly.
func New() *AdapterCache {
	return &AdapterCache{entries: make(map[string]Entry)}
}

// AddServerAdapter inserts a new ServerAdapterEntry. It fails with
// ErrAlreadyExists if desc.ID is already present. If desc.ReplicaGroupID
// is non-empty, the new entry is atomically appended to that group's
// replica sequence as part of the same locked operation; if the named
// group is absent, the insert fails with ErrInvariantViolation — callers
// (a descriptor validator/importer) must add groups before their
// members.
func (c *AdapterCache) AddServerAdapter(desc AdapterDescriptor, server serverhandle.ServerHandle, application string) (*ServerAdapterEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[desc.ID]; exists {
		return nil, ErrAlreadyExists
	}

	var group *ReplicaGroupEntry
	if desc.ReplicaGroupID != "" {
		existing, ok := c.entries[desc.ReplicaGroupID]
		if !ok {
			return nil, ErrInvariantViolation
		}
		group, ok = existing.(*ReplicaGroupEntry)
		if !ok {
			return nil, ErrInvariantViolation
		}
	}

	entry := NewServerAdapterEntry(desc.ID, application, desc.ReplicaGroupID, desc.Priority, server)
	c.entries[desc.ID] = entry
	if group != nil {
		group.addReplica(entry)
	}

	gridlog.L().Debugw("added adapter", "id", desc.ID, "replica_group_id", desc.ReplicaGroupID)
	metrics.SetCacheSize(len(c.entries))
	return entry, nil
}

// AddReplicaGroup inserts a new ReplicaGroupEntry. It fails with
// ErrAlreadyExists if desc.ID is already present.
func (c *AdapterCache) AddReplicaGroup(desc ReplicaGroupDescriptor, application string) (*ReplicaGroupEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[desc.ID]; exists {
		return nil, ErrAlreadyExists
	}

	policy := NewLoadBalancingPolicy(desc.Kind, desc.NReplicas, desc.LoadSample)
	entry := NewReplicaGroupEntry(desc.ID, application, policy)
	c.entries[desc.ID] = entry

	gridlog.L().Debugw("added replica group", "id", desc.ID, "policy", desc.Kind.String())
	metrics.SetCacheSize(len(c.entries))
	return entry, nil
}

// Get returns the entry for id regardless of variant, or ErrAdapterNotFound.
func (c *AdapterCache) Get(id string) (Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[id]
	if !ok {
		return nil, ErrAdapterNotFound
	}
	return entry, nil
}

// GetServerAdapter returns the ServerAdapterEntry for id, or
// ErrAdapterNotFound if absent or id names a replica group instead.
func (c *AdapterCache) GetServerAdapter(id string) (*ServerAdapterEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[id]
	if !ok {
		return nil, ErrAdapterNotFound
	}
	sa, ok := entry.(*ServerAdapterEntry)
	if !ok {
		return nil, ErrAdapterNotFound
	}
	return sa, nil
}

// GetReplicaGroup returns the ReplicaGroupEntry for id, or
// ErrAdapterNotFound if absent or id names a server-adapter instead.
func (c *AdapterCache) GetReplicaGroup(id string) (*ReplicaGroupEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[id]
	if !ok {
		return nil, ErrAdapterNotFound
	}
	rg, ok := entry.(*ReplicaGroupEntry)
	if !ok {
		return nil, ErrAdapterNotFound
	}
	return rg, nil
}

// RemoveServerAdapter removes the entry and, if it was a member of a
// replica group, also removes it from that group's replica sequence
// (which renormalizes the group's round-robin cursor). Removing an
// absent id is a caller bug and is rejected with ErrAdapterNotFound
// rather than silently succeeding.
func (c *AdapterCache) RemoveServerAdapter(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		return ErrAdapterNotFound
	}
	sa, ok := entry.(*ServerAdapterEntry)
	if !ok {
		return ErrAdapterNotFound
	}

	delete(c.entries, id)

	if groupID := sa.ReplicaGroupID(); groupID != "" {
		if group, ok := c.entries[groupID].(*ReplicaGroupEntry); ok {
			group.removeReplica(id)
		}
	}

	gridlog.L().Debugw("removed adapter", "id", id)
	metrics.SetCacheSize(len(c.entries))
	return nil
}

// RemoveReplicaGroup removes only the group entry. Member server-adapter
// entries are not removed and retain their now-dangling ReplicaGroupID —
// a subsequent GetProxy filtered by that group id on a surviving member
// will still succeed, since the filter only compares strings.
func (c *AdapterCache) RemoveReplicaGroup(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		return ErrAdapterNotFound
	}
	if _, ok := entry.(*ReplicaGroupEntry); !ok {
		return ErrAdapterNotFound
	}

	delete(c.entries, id)
	gridlog.L().Debugw("removed replica group", "id", id)
	metrics.SetCacheSize(len(c.entries))
	return nil
}

// Len returns the number of entries currently in the cache (both
// variants), for diagnostics and metrics.
func (c *AdapterCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// ResolveProxies is the convenience form of "look up then resolve" that
// adminapi's /resolve endpoint uses: Get(id) followed by
// entry.GetProxies(ctx). It never holds the cache guard while resolving —
// Get releases it before GetProxies is invoked.
func (c *AdapterCache) ResolveProxies(ctx context.Context, id string) ([]ProxyResult, int, bool, error) {
	entry, err := c.Get(id)
	if err != nil {
		if errors.Is(err, ErrAdapterNotFound) {
			metrics.ObserveLookup("not_found")
		} else {
			metrics.ObserveLookup("error")
		}
		return nil, 0, false, err
	}
	proxies, n, isGroup, err := entry.GetProxies(ctx)
	if err != nil {
		metrics.ObserveLookup("error")
		return proxies, n, isGroup, err
	}
	metrics.ObserveLookup("ok")
	return proxies, n, isGroup, nil
}
