package cache

import (
	"context"
	"errors"

	"github.com/gridlocator/gridlocator/gridlog"
	"github.com/gridlocator/gridlocator/metrics"
	"github.com/gridlocator/gridlocator/serverhandle"
)

// ServerAdapterEntry is the single-adapter leaf (C3): it knows its hosting
// server handle, optional replica-group membership, and an ordering
// priority used only by the Ordered policy. It is effectively immutable
// after construction — the only state that can change is observed through
// the server handle, which is serverhandle's concern, not this entry's.
type ServerAdapterEntry struct {
	base

	replicaGroupID string
	priority       int
	server         serverhandle.ServerHandle
}

var _ Entry = (*ServerAdapterEntry)(nil)

// NewServerAdapterEntry constructs a leaf entry. rawPriority is parsed per
// invariant 4 (missing/unparsable -> 0).
func NewServerAdapterEntry(id, application, replicaGroupID, rawPriority string, server serverhandle.ServerHandle) *ServerAdapterEntry {
	return &ServerAdapterEntry{
		base:           newBase(id, application),
		replicaGroupID: replicaGroupID,
		priority:       parsePriority(rawPriority),
		server:         server,
	}
}

// ReplicaGroupID returns the group this adapter belongs to, or "" if none.
func (e *ServerAdapterEntry) ReplicaGroupID() string { return e.replicaGroupID }

// Priority returns the static ordering priority used by the Ordered policy.
func (e *ServerAdapterEntry) Priority() int { return e.priority }

// GetProxies implements Entry for a singleton adapter: it calls the
// server handle exactly once and returns a single-element result. Unlike
// the replica group, it does not catch GetAdapter's error — a singleton's
// failure is the caller's concern.
func (e *ServerAdapterEntry) GetProxies(ctx context.Context) ([]ProxyResult, int, bool, error) {
	proxy, err := e.server.GetAdapter(ctx, e.id, true)
	if err != nil {
		return nil, 1, false, err
	}
	return []ProxyResult{{ID: e.id, Proxy: proxy}}, 1, false, nil
}

// GetProxy is the direct, non-panicking form of the singleton resolution
// used by both external callers and by ReplicaGroupEntry's Phase B. If
// replicaGroupFilter is non-empty and doesn't match this entry's
// replicaGroupID, it fails with ErrInvalidReplicaGroup without calling the
// server handle.
func (e *ServerAdapterEntry) GetProxy(ctx context.Context, replicaGroupFilter string) (serverhandle.AdapterProxy, error) {
	if replicaGroupFilter != "" && replicaGroupFilter != e.replicaGroupID {
		return serverhandle.AdapterProxy{}, ErrInvalidReplicaGroup
	}
	return e.server.GetAdapter(ctx, e.id, true)
}

// sentinelLoad is returned in place of an unavailable load sample so sorts
// over candidate loads remain total.
const sentinelLoad float32 = 999.9

// GetLeastLoadedNodeLoad implements Entry for a singleton adapter: it
// samples the hosting node's load, masking ServerNotExist/NodeNotExist/
// NodeUnreachable (and any unexpected error, logged) behind the sentinel.
func (e *ServerAdapterEntry) GetLeastLoadedNodeLoad(ctx context.Context, sample LoadSample) float32 {
	load, err := e.server.GetLoad(ctx, toSampleKind(sample))
	if err == nil {
		return load
	}
	if errors.Is(err, serverhandle.ErrServerNotExist) ||
		errors.Is(err, serverhandle.ErrNodeNotExist) ||
		errors.Is(err, serverhandle.ErrNodeUnreachable) {
		metrics.IncSentinelLoad()
		return sentinelLoad
	}
	gridlog.L().Errorw("unexpected error while getting node load",
		"adapter_id", e.id, "error", err)
	metrics.IncSentinelLoad()
	return sentinelLoad
}

// GetAdapterInfo implements Entry for a singleton adapter: best-effort, so
// a failed proxy lookup yields an AdapterInfo with an empty proxy rather
// than propagating the error.
func (e *ServerAdapterEntry) GetAdapterInfo(ctx context.Context) []AdapterInfo {
	proxy, err := e.server.GetAdapter(ctx, e.id, true)
	if err != nil {
		proxy = serverhandle.AdapterProxy{}
	}
	return []AdapterInfo{{ID: e.id, ReplicaGroupID: e.replicaGroupID, Proxy: proxy, Generation: e.Generation()}}
}

func toSampleKind(s LoadSample) serverhandle.LoadSampleKind {
	switch s {
	case LoadSample5:
		return serverhandle.Sample5
	case LoadSample15:
		return serverhandle.Sample15
	default:
		return serverhandle.Sample1
	}
}
