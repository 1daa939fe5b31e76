package cache

import "errors"

// Cache-layer sentinel errors. These are compared with errors.Is
// by callers; they are never wrapped with additional context by the cache
// itself so that identity comparisons stay cheap on the hot lookup path.
var (
	// ErrAdapterNotFound is returned by lookups of an absent id, or an id
	// present under the wrong entry variant.
	ErrAdapterNotFound = errors.New("cache: adapter not found")

	// ErrAlreadyExists is returned by inserts of a duplicate id.
	ErrAlreadyExists = errors.New("cache: adapter already exists")

	// ErrInvalidReplicaGroup is returned by ServerAdapterEntry.GetProxy
	// when the caller's replica-group filter doesn't match the entry's
	// membership.
	ErrInvalidReplicaGroup = errors.New("cache: invalid replica group")

	// ErrInvariantViolation indicates a caller sequencing bug: adding a
	// server-adapter that names a replica group which doesn't yet exist
	// in the cache.
	ErrInvariantViolation = errors.New("cache: invariant violation")
)
