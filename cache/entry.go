package cache

import (
	"context"

	"github.com/google/uuid"
	"github.com/gridlocator/gridlocator/serverhandle"
)

// AdapterProxy is re-exported from serverhandle so cache callers never need
// to import that package directly just to read a proxy's endpoint.
type AdapterProxy = serverhandle.AdapterProxy

// Entry is the common contract shared by both entry variants (C2). It is
// modeled as an interface implemented by two structs rather than a class
// hierarchy: ServerAdapterEntry and ReplicaGroupEntry. Callers dispatch by
// type switch (cache.GetServerAdapter / cache.GetReplicaGroup) rather than
// a downcast (see DESIGN.md).
type Entry interface {
	// ID is the adapter identifier this entry is keyed by in the cache.
	ID() string
	// Application is the administrative container that owns this entry.
	Application() string
	// CanRemove reports whether the entry may currently be removed. Every
	// entry variant here allows removal; the method is kept because the
	// original model distinguishes entries pinned by in-flight sessions.
	CanRemove() bool

	// GetProxies resolves this entry to an ordered list of (id, proxy)
	// candidates, the reported replica count, and whether this entry is
	// a replica group. A ReplicaGroupEntry masks known per-candidate
	// failures and only returns a non-nil error for an unexpected one; a
	// ServerAdapterEntry propagates its single GetAdapter call's error
	// unchanged.
	GetProxies(ctx context.Context) (proxies []ProxyResult, nReplicas int, isReplicaGroup bool, err error)
	// GetAdapterInfo returns best-effort AdapterInfo records for this
	// entry (one for a server-adapter, one per member for a group).
	GetAdapterInfo(ctx context.Context) []AdapterInfo
	// GetLeastLoadedNodeLoad returns the load sample for this entry's
	// least-loaded backing node, or the sentinel 999.9 when unavailable.
	GetLeastLoadedNodeLoad(ctx context.Context, sample LoadSample) float32

	// Generation is the uuid stamped at construction, surfaced through
	// AdapterInfo so a caller holding an older snapshot can tell a removed
	// then re-added entry with the same id apart from the original (see
	// DESIGN.md's note on generational tags for stale references).
	Generation() uuid.UUID
}

// ProxyResult is one (adapter id, proxy) candidate returned by GetProxies.
type ProxyResult struct {
	ID    string
	Proxy AdapterProxy
}

// AdapterInfo is a best-effort descriptive record for a single adapter,
// as returned by GetAdapterInfo. ReplicaGroupID is empty for a standalone
// adapter with no group membership.
type AdapterInfo struct {
	ID             string
	ReplicaGroupID string
	Proxy          AdapterProxy
	Generation     uuid.UUID
}

// base holds the identity fields shared by both entry variants (C2).
type base struct {
	id          string
	application string
	gen         uuid.UUID
}

func newBase(id, application string) base {
	return base{id: id, application: application, gen: uuid.New()}
}

func (b base) ID() string            { return b.id }
func (b base) Application() string   { return b.application }
func (b base) CanRemove() bool       { return true }
func (b base) Generation() uuid.UUID { return b.gen }
