// Package cache holds the adapter cache and replica-group resolver: the
// process-wide authoritative mapping from symbolic adapter ids to live
// server-adapter entries and replica groups, and the load-balancing
// policies that order candidates within a group.
package cache

import "strconv"

// LoadSample is the averaging window for a node's reported load.
type LoadSample int

const (
	LoadSample1 LoadSample = iota
	LoadSample5
	LoadSample15
)

// PolicyKind tags the variant carried by a LoadBalancingPolicy.
type PolicyKind int

const (
	// Random shuffles replicas uniformly on every resolution.
	Random PolicyKind = iota
	// RoundRobin rotates the starting replica by one position per call.
	RoundRobin
	// Ordered sorts replicas ascending by their static priority.
	Ordered
	// Adaptive shuffles for tiebreak, then sorts ascending by sampled load.
	Adaptive
)

func (k PolicyKind) String() string {
	switch k {
	case Random:
		return "Random"
	case RoundRobin:
		return "RoundRobin"
	case Ordered:
		return "Ordered"
	case Adaptive:
		return "Adaptive"
	default:
		return "Unknown"
	}
}

// LoadBalancingPolicy is the tagged configuration for a replica group's
// candidate ordering. It is a sum type, not an inheritance hierarchy:
// ReplicaGroupEntry.GetProxies dispatches on Kind with a single switch
// rather than a virtual call (see DESIGN.md).
type LoadBalancingPolicy struct {
	Kind PolicyKind
	// NReplicas is the normalized replica count as parsed by
	// parseNReplicas: 0 (from a zero, missing or unparsable descriptor
	// value) means "return all known replicas", and a negative descriptor
	// value is stored as 1; callers use effectiveNReplicas to resolve the
	// reported count.
	NReplicas int
	// Sample is only meaningful when Kind == Adaptive.
	Sample LoadSample
}

// NewLoadBalancingPolicy builds a policy from descriptor strings, applying
// the legacy parsing rules: a raw NReplicas < 0 is clamped up to 1
// (invariant 5), and an Adaptive sample string is parsed per the legacy
// rule in parseLoadSample.
func NewLoadBalancingPolicy(kind PolicyKind, rawNReplicas string, rawSample string) LoadBalancingPolicy {
	return LoadBalancingPolicy{
		Kind:      kind,
		NReplicas: parseNReplicas(rawNReplicas),
		Sample:    parseLoadSample(rawSample),
	}
}

// parseNReplicas applies invariant 5: a missing/unparsable value parses to
// 0 (meaning "all replicas"); a negative value is clamped to 1, preserving
// the legacy string-parsing source behavior verbatim.
func parseNReplicas(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	if n < 0 {
		return 1
	}
	return n
}

// parseLoadSample implements the legacy Adaptive sample parsing rule:
// exact "1"/"5"/"15" map to the matching LoadSample, everything else
// (including empty/garbage) silently defaults to LoadSample1.
func parseLoadSample(raw string) LoadSample {
	switch raw {
	case "1":
		return LoadSample1
	case "5":
		return LoadSample5
	case "15":
		return LoadSample15
	default:
		return LoadSample1
	}
}

// effectiveNReplicas resolves the reported replica count for a resolution:
// the stored value if positive, else the live replica count.
func effectiveNReplicas(stored, liveCount int) int {
	if stored > 0 {
		return stored
	}
	return liveCount
}

// parsePriority implements invariant 4: a missing/unparsable priority
// string yields 0.
func parsePriority(raw string) int {
	p, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return p
}
