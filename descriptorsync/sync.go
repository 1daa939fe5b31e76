// Package descriptorsync watches a prefix in etcd for descriptor changes
// published by an admin facade and replays them into a cache.AdapterCache.
// The publisher is expected to always write a group's descriptor before
// any member that names it.
//
// This package never re-implements any of cache's resolution algorithms;
// it only calls AddServerAdapter/AddReplicaGroup/RemoveServerAdapter/
// RemoveReplicaGroup, the same way an etcd-backed service registry watches
// a service-instance prefix and replays adds/removes into a local view.
package descriptorsync

import (
	"context"
	"encoding/json"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/gridlocator/gridlocator/cache"
	"github.com/gridlocator/gridlocator/gridlog"
	"github.com/gridlocator/gridlocator/serverhandle"
)

// Prefix is the etcd key namespace descriptors are published under:
//
//	/gridlocator/descriptors/{id}
const Prefix = "/gridlocator/descriptors/"

// EventKind distinguishes the four mutation operations the cache exposes.
type EventKind string

const (
	EventAddServerAdapter    EventKind = "add_server_adapter"
	EventAddReplicaGroup     EventKind = "add_replica_group"
	EventRemoveServerAdapter EventKind = "remove_server_adapter"
	EventRemoveReplicaGroup  EventKind = "remove_replica_group"
)

// DescriptorEvent is the JSON-encoded value stored at a descriptor key.
// Only the fields relevant to Kind are populated by the publisher.
type DescriptorEvent struct {
	Kind        EventKind                    `json:"kind"`
	ID          string                       `json:"id"`
	Application string                       `json:"application"`
	NodeAddr    string                       `json:"node_addr,omitempty"`
	Adapter     *cache.AdapterDescriptor      `json:"adapter,omitempty"`
	Group       *cache.ReplicaGroupDescriptor `json:"group,omitempty"`
}

// HandleResolver builds or locates the serverhandle.ServerHandle a
// published AdapterDescriptor should be bound to (typically by dialing the
// node address carried in event metadata). descriptorsync has no opinion
// on how handles are constructed or how node/server lifecycles are
// managed.
type HandleResolver func(ctx context.Context, event DescriptorEvent) (serverhandle.ServerHandle, error)

// Notifier is a best-effort post-mutation hook (e.g. the redis pub/sub
// broadcaster in descriptorsync/notify.go). A nil Notifier disables
// notification entirely; Syncer never depends on it for correctness.
type Notifier interface {
	Publish(ctx context.Context, event DescriptorEvent)
}

// Syncer watches Prefix in etcd and applies every change to an
// AdapterCache. Construct one per process; Run blocks until ctx is
// canceled or the watch channel closes.
type Syncer struct {
	client  *clientv3.Client
	cache   *cache.AdapterCache
	resolve HandleResolver
	notify  Notifier
}

// New creates a Syncer over client for the given cache. resolve is called
// once per EventAddServerAdapter to obtain that descriptor's ServerHandle.
// notify may be nil.
func New(client *clientv3.Client, c *cache.AdapterCache, resolve HandleResolver, notify Notifier) *Syncer {
	return &Syncer{client: client, cache: c, resolve: resolve, notify: notify}
}

// Run watches Prefix and applies every change until ctx is canceled. It
// uses etcd's server-push Watch API rather than polling.
func (s *Syncer) Run(ctx context.Context) error {
	watchChan := s.client.Watch(ctx, Prefix, clientv3.WithPrefix())
	for resp := range watchChan {
		if err := resp.Err(); err != nil {
			return err
		}
		for _, ev := range resp.Events {
			s.applyEvent(ctx, ev)
		}
	}
	return ctx.Err()
}

// Bootstrap reads every currently-published descriptor under Prefix and
// applies it, for process startup before Run's watch begins. Groups and
// members may arrive in any relative order within a single Get response,
// so Bootstrap applies all EventAddReplicaGroup events before any
// EventAddServerAdapter event, satisfying invariant 2.
func (s *Syncer) Bootstrap(ctx context.Context) error {
	resp, err := s.client.Get(ctx, Prefix, clientv3.WithPrefix())
	if err != nil {
		return err
	}

	var groups, members []DescriptorEvent
	for _, kv := range resp.Kvs {
		var event DescriptorEvent
		if err := json.Unmarshal(kv.Value, &event); err != nil {
			gridlog.L().Warnw("skipping malformed descriptor", "key", string(kv.Key), "error", err)
			continue
		}
		if event.Kind == EventAddReplicaGroup {
			groups = append(groups, event)
		} else {
			members = append(members, event)
		}
	}

	for _, event := range groups {
		s.apply(ctx, event)
	}
	for _, event := range members {
		s.apply(ctx, event)
	}
	return nil
}

func (s *Syncer) applyEvent(ctx context.Context, ev *clientv3.Event) {
	if ev.Type == clientv3.EventTypeDelete {
		// Deletes carry the key but not the prior value; the key suffix
		// after Prefix is the descriptor id, and we can't tell a
		// server-adapter id from a replica-group id from the key alone,
		// so the cache's own ErrAdapterNotFound guards a wrong guess.
		id := string(ev.Kv.Key)[len(Prefix):]
		if err := s.cache.RemoveServerAdapter(id); err == nil {
			return
		}
		if err := s.cache.RemoveReplicaGroup(id); err != nil {
			gridlog.L().Warnw("descriptor delete for unknown id", "id", id)
		}
		return
	}

	var event DescriptorEvent
	if err := json.Unmarshal(ev.Kv.Value, &event); err != nil {
		gridlog.L().Warnw("skipping malformed descriptor event", "key", string(ev.Kv.Key), "error", err)
		return
	}
	s.apply(ctx, event)
}

func (s *Syncer) apply(ctx context.Context, event DescriptorEvent) {
	switch event.Kind {
	case EventAddReplicaGroup:
		if event.Group == nil {
			return
		}
		if _, err := s.cache.AddReplicaGroup(*event.Group, event.Application); err != nil {
			gridlog.L().Warnw("add_replica_group failed", "id", event.Group.ID, "error", err)
			return
		}
	case EventAddServerAdapter:
		if event.Adapter == nil {
			return
		}
		handle, err := s.resolve(ctx, event)
		if err != nil {
			gridlog.L().Warnw("resolving server handle failed", "id", event.Adapter.ID, "error", err)
			return
		}
		if _, err := s.cache.AddServerAdapter(*event.Adapter, handle, event.Application); err != nil {
			gridlog.L().Warnw("add_server_adapter failed", "id", event.Adapter.ID, "error", err)
			return
		}
	case EventRemoveServerAdapter:
		if err := s.cache.RemoveServerAdapter(event.ID); err != nil {
			gridlog.L().Warnw("remove_server_adapter failed", "id", event.ID, "error", err)
			return
		}
	case EventRemoveReplicaGroup:
		if err := s.cache.RemoveReplicaGroup(event.ID); err != nil {
			gridlog.L().Warnw("remove_replica_group failed", "id", event.ID, "error", err)
			return
		}
	default:
		gridlog.L().Warnw("unknown descriptor event kind", "kind", event.Kind)
		return
	}

	if s.notify != nil {
		s.notify.Publish(ctx, event)
	}
}
