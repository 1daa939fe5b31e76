package descriptorsync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/gridlocator/gridlocator/cache"
	"github.com/gridlocator/gridlocator/serverhandle"
)

func newSyncerForUnitTests(t *testing.T) (*Syncer, *cache.AdapterCache) {
	t.Helper()
	c := cache.New()
	resolve := func(_ context.Context, event DescriptorEvent) (serverhandle.ServerHandle, error) {
		return serverhandle.NewMock(), nil
	}
	return New(nil, c, resolve, nil), c
}

func TestApply_GroupThenMember(t *testing.T) {
	s, c := newSyncerForUnitTests(t)
	ctx := context.Background()

	s.apply(ctx, DescriptorEvent{
		Kind:        EventAddReplicaGroup,
		Application: "app",
		Group:       &cache.ReplicaGroupDescriptor{ID: "G", Kind: cache.RoundRobin},
	})
	s.apply(ctx, DescriptorEvent{
		Kind:        EventAddServerAdapter,
		Application: "app",
		Adapter:     &cache.AdapterDescriptor{ID: "A", ReplicaGroupID: "G"},
	})

	_, err := c.GetServerAdapter("A")
	require.NoError(t, err)
	group, err := c.GetReplicaGroup("G")
	require.NoError(t, err)
	assert.Equal(t, cache.RoundRobin, group.Policy().Kind)
}

func TestApply_MemberBeforeGroupIsRejected(t *testing.T) {
	s, c := newSyncerForUnitTests(t)
	ctx := context.Background()

	s.apply(ctx, DescriptorEvent{
		Kind:        EventAddServerAdapter,
		Application: "app",
		Adapter:     &cache.AdapterDescriptor{ID: "A", ReplicaGroupID: "G"},
	})

	_, err := c.GetServerAdapter("A")
	assert.Error(t, err, "a member published before its group must not be inserted")
}

func TestApply_RemoveServerAdapter(t *testing.T) {
	s, c := newSyncerForUnitTests(t)
	ctx := context.Background()
	s.apply(ctx, DescriptorEvent{Kind: EventAddServerAdapter, Application: "app", Adapter: &cache.AdapterDescriptor{ID: "A"}})
	require.NoError(t, errOf(c.GetServerAdapter("A")))

	s.apply(ctx, DescriptorEvent{Kind: EventRemoveServerAdapter, ID: "A"})
	_, err := c.GetServerAdapter("A")
	assert.Error(t, err)
}

func errOf(_ any, err error) error { return err }

func TestBootstrap_GroupsBeforeMembers_RequiresEtcd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping etcd-backed integration test in -short mode")
	}
	dialCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   []string{"127.0.0.1:2379"},
		DialTimeout: 500 * time.Millisecond,
		Context:     dialCtx,
	})
	if err != nil {
		t.Skip("etcd not reachable at 127.0.0.1:2379, skipping integration test")
	}
	defer client.Close()

	c := cache.New()
	resolve := func(_ context.Context, _ DescriptorEvent) (serverhandle.ServerHandle, error) {
		return serverhandle.NewMock(), nil
	}
	s := New(client, c, resolve, nil)

	if err := s.Bootstrap(context.Background()); err != nil {
		t.Skip("etcd reachable but Get failed, skipping: " + err.Error())
	}
}
