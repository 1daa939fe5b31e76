package cache

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gridlocator/gridlocator/metrics"
	"github.com/gridlocator/gridlocator/serverhandle"
)

// ReplicaGroupEntry aggregates server-adapter entries under a group id:
// it applies a load-balancing policy and tracks a round-robin cursor.
// Replicas are referenced, not owned — they also live in the cache by
// their own id.
//
// Each group has its own exclusive guard protecting {policy, replicas,
// cursor}. It is held only for brief snapshot operations and is never
// held across a call into a server handle.
type ReplicaGroupEntry struct {
	base

	mu       sync.Mutex
	policy   LoadBalancingPolicy
	replicas []*ServerAdapterEntry
	cursor   int
}

var _ Entry = (*ReplicaGroupEntry)(nil)

// NewReplicaGroupEntry constructs a group entry with the given policy
// already parsed (see NewLoadBalancingPolicy).
func NewReplicaGroupEntry(id, application string, policy LoadBalancingPolicy) *ReplicaGroupEntry {
	return &ReplicaGroupEntry{
		base:   newBase(id, application),
		policy: policy,
	}
}

// UpdatePolicy replaces the group's load-balancing policy. policy must
// already carry normalized NReplicas/Sample fields (built via
// NewLoadBalancingPolicy); UpdatePolicy itself does no further parsing.
func (g *ReplicaGroupEntry) UpdatePolicy(policy LoadBalancingPolicy) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.policy = policy
}

// Policy returns a copy of the group's current policy.
func (g *ReplicaGroupEntry) Policy() LoadBalancingPolicy {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.policy
}

// addReplica appends adapter to the group's replica sequence. Called only
// by AdapterCache.AddServerAdapter while the cache guard is held; lock
// order is always cache guard -> replica-group guard, never reversed.
func (g *ReplicaGroupEntry) addReplica(adapter *ServerAdapterEntry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.replicas = append(g.replicas, adapter)
}

// removeReplica removes the member with the given id, if present, and
// renormalizes the round-robin cursor: cursor mod new length, or 0 if the
// group is now empty.
func (g *ReplicaGroupEntry) removeReplica(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, r := range g.replicas {
		if r.ID() == id {
			g.replicas = append(g.replicas[:i], g.replicas[i+1:]...)
			if len(g.replicas) == 0 {
				g.cursor = 0
			} else {
				g.cursor = g.cursor % len(g.replicas)
			}
			return
		}
	}
}

// members returns a snapshot copy of the current replica list, for the
// group's own aggregate queries (GetLeastLoadedNodeLoad, GetAdapterInfo),
// which call into members only after the guard is released.
func (g *ReplicaGroupEntry) members() []*ServerAdapterEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*ServerAdapterEntry, len(g.replicas))
	copy(out, g.replicas)
	return out
}

// GetProxies runs the core resolution algorithm in three phases,
// structured so that no lock is held across any call into a server
// handle:
//
//	Phase A  (guard held):     snapshot + order candidates per policy.
//	Phase A' (guard released): for Adaptive only, refine order by sampled load.
//	Phase B  (guard released): materialize proxies, skipping failed candidates.
func (g *ReplicaGroupEntry) GetProxies(ctx context.Context) ([]ProxyResult, int, bool, error) {
	policyName := g.Policy().Kind.String()

	startA := time.Now()
	ordered, nReplicas, adaptive, sample := g.snapshotOrdered()
	metrics.ObserveResolutionDuration(policyName, "order", time.Since(startA).Seconds())
	if len(ordered) == 0 {
		return nil, nReplicas, true, nil
	}

	if adaptive {
		startAPrime := time.Now()
		ordered = g.refineByLoad(ctx, ordered, sample)
		metrics.ObserveResolutionDuration(policyName, "refine", time.Since(startAPrime).Seconds())
	}

	startB := time.Now()
	results, err := g.materializeProxies(ctx, ordered)
	metrics.ObserveResolutionDuration(policyName, "materialize", time.Since(startB).Seconds())
	return results, nReplicas, true, err
}

// snapshotOrdered is Phase A: under the group guard, compute the reported
// replica count and the candidate order for the configured policy. The
// round-robin cursor advances exactly once per call here, regardless of
// how many candidates the caller ultimately consumes.
func (g *ReplicaGroupEntry) snapshotOrdered() (ordered []*ServerAdapterEntry, nReplicas int, adaptive bool, sample LoadSample) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.replicas) == 0 {
		return nil, effectiveNReplicas(g.policy.NReplicas, 0), false, 0
	}

	n := len(g.replicas)
	nReplicas = effectiveNReplicas(g.policy.NReplicas, n)

	switch g.policy.Kind {
	case RoundRobin:
		ordered = make([]*ServerAdapterEntry, n)
		for i := 0; i < n; i++ {
			ordered[i] = g.replicas[(g.cursor+i)%n]
		}
		g.cursor = (g.cursor + 1) % n
		metrics.SetRoundRobinCursor(g.id, g.cursor)

	case Ordered:
		ordered = append(ordered, g.replicas...)
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Priority() < ordered[j].Priority()
		})

	case Adaptive:
		ordered = shuffled(g.replicas)
		adaptive = true
		sample = g.policy.Sample

	case Random:
		fallthrough
	default:
		ordered = shuffled(g.replicas)
	}

	return ordered, nReplicas, adaptive, sample
}

// shuffled returns a uniformly shuffled copy of replicas using
// math/rand/v2's top-level Shuffle, which is safe for concurrent use
// without serializing on a shared generator.
func shuffled(replicas []*ServerAdapterEntry) []*ServerAdapterEntry {
	out := make([]*ServerAdapterEntry, len(replicas))
	copy(out, replicas)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

type loadedReplica struct {
	load float32
	ref  *ServerAdapterEntry
}

// refineByLoad is Phase A': for the Adaptive policy only, sample each
// candidate's load concurrently (the shuffle from Phase A supplies the
// tiebreak for equal loads) and stable-sort ascending. Unreachable
// adapters carry the sentinel 999.9 and sort to the end. This must run
// outside the group guard since GetLeastLoadedNodeLoad may block on a
// server handle and may itself acquire other locks.
func (g *ReplicaGroupEntry) refineByLoad(ctx context.Context, candidates []*ServerAdapterEntry, sample LoadSample) []*ServerAdapterEntry {
	loaded := make([]loadedReplica, len(candidates))
	var eg errgroup.Group
	for i, r := range candidates {
		i, r := i, r
		eg.Go(func() error {
			loaded[i] = loadedReplica{load: r.GetLeastLoadedNodeLoad(ctx, sample), ref: r}
			return nil
		})
	}
	_ = eg.Wait() // GetLeastLoadedNodeLoad never returns an error to the group

	sort.SliceStable(loaded, func(i, j int) bool { return loaded[i].load < loaded[j].load })

	out := make([]*ServerAdapterEntry, len(loaded))
	for i, lr := range loaded {
		out[i] = lr.ref
	}
	return out
}

// materializeProxies is Phase B: for each ordered candidate, request its
// proxy filtered by this group's id. AdapterNotFound, InvalidReplicaGroup,
// and NodeUnreachable are silently skipped — the group's job is to mask
// those specific, expected partial-member failures. Any other error
// propagates and fails the whole call. Candidates are dispatched
// concurrently but written into index-ordered slots so a successful
// result preserves Phase A/A's candidate order.
func (g *ReplicaGroupEntry) materializeProxies(ctx context.Context, ordered []*ServerAdapterEntry) ([]ProxyResult, error) {
	type slot struct {
		result ProxyResult
		ok     bool
	}
	slots := make([]slot, len(ordered))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, r := range ordered {
		i, r := i, r
		eg.Go(func() error {
			proxy, err := r.GetProxy(egCtx, g.id)
			if err != nil {
				if isSkippableMemberError(err) {
					return nil
				}
				return err
			}
			slots[i] = slot{result: ProxyResult{ID: r.ID(), Proxy: proxy}, ok: true}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := make([]ProxyResult, 0, len(ordered))
	for _, s := range slots {
		if s.ok {
			out = append(out, s.result)
		}
	}
	return out, nil
}

// isSkippableMemberError reports whether err is one of the three kinds
// Phase B is expected to mask: AdapterNotFound, InvalidReplicaGroup,
// NodeUnreachable.
func isSkippableMemberError(err error) bool {
	return errors.Is(err, serverhandle.ErrAdapterNotExist) ||
		errors.Is(err, ErrInvalidReplicaGroup) ||
		errors.Is(err, serverhandle.ErrNodeUnreachable)
}

// GetLeastLoadedNodeLoad implements Entry for a replica group: snapshots
// the replica list under the guard, releases it, then returns 999.9 for
// an empty group, delegates directly for a singleton member, or shuffles
// (to break ties fairly) and returns the minimum sampled load across all
// members otherwise.
func (g *ReplicaGroupEntry) GetLeastLoadedNodeLoad(ctx context.Context, sample LoadSample) float32 {
	replicas := g.members()

	switch len(replicas) {
	case 0:
		return sentinelLoad
	case 1:
		return replicas[0].GetLeastLoadedNodeLoad(ctx, sample)
	}

	replicas = shuffled(replicas)
	loads := make([]float32, len(replicas))
	var eg errgroup.Group
	for i, r := range replicas {
		i, r := i, r
		eg.Go(func() error {
			loads[i] = r.GetLeastLoadedNodeLoad(ctx, sample)
			return nil
		})
	}
	_ = eg.Wait()

	min := loads[0]
	for _, l := range loads[1:] {
		if l < min {
			min = l
		}
	}
	return min
}

// GetAdapterInfo implements Entry for a replica group: snapshots
// membership under the guard, releases it, and concatenates the
// best-effort info from each member in snapshot (insertion) order — not
// resolution order.
func (g *ReplicaGroupEntry) GetAdapterInfo(ctx context.Context) []AdapterInfo {
	replicas := g.members()
	infos := make([]AdapterInfo, 0, len(replicas))
	for _, r := range replicas {
		infos = append(infos, r.GetAdapterInfo(ctx)...)
	}
	return infos
}
