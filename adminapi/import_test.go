package adminapi

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridlocator/gridlocator/cache"
	"github.com/gridlocator/gridlocator/descriptorsync"
	"github.com/gridlocator/gridlocator/serverhandle"
)

const importDoc = `
application: app
replica_groups:
  - id: G
    kind: 1
adapters:
  - id: A
    replica_group_id: G
    node_addr: 10.0.0.1:9000
  - id: B
    replica_group_id: G
    node_addr: 10.0.0.2:9000
`

func TestImport_GroupsBeforeAdaptersAndNodeAddrPropagates(t *testing.T) {
	c := cache.New()
	var seenAddrs []string
	resolve := func(_ context.Context, event descriptorsync.DescriptorEvent) (serverhandle.ServerHandle, error) {
		seenAddrs = append(seenAddrs, event.NodeAddr)
		return serverhandle.NewMock(), nil
	}

	groups, adapters, err := Import(context.Background(), strings.NewReader(importDoc), c, resolve)
	require.NoError(t, err)
	assert.Equal(t, 1, groups)
	assert.Equal(t, 2, adapters)
	assert.Equal(t, []string{"10.0.0.1:9000", "10.0.0.2:9000"}, seenAddrs)

	group, err := c.GetReplicaGroup("G")
	require.NoError(t, err)
	assert.Equal(t, cache.RoundRobin, group.Policy().Kind)

	_, err = c.GetServerAdapter("A")
	require.NoError(t, err)
}

func TestImport_MalformedYAMLReturnsError(t *testing.T) {
	c := cache.New()
	resolve := func(_ context.Context, _ descriptorsync.DescriptorEvent) (serverhandle.ServerHandle, error) {
		return serverhandle.NewMock(), nil
	}
	_, _, err := Import(context.Background(), strings.NewReader("not: [valid"), c, resolve)
	require.Error(t, err)
}

func TestImport_ResolverFailureStopsPartwayThrough(t *testing.T) {
	c := cache.New()
	resolve := func(_ context.Context, event descriptorsync.DescriptorEvent) (serverhandle.ServerHandle, error) {
		if event.ID == "B" {
			return nil, errors.New("resolver failed")
		}
		return serverhandle.NewMock(), nil
	}

	groups, adapters, err := Import(context.Background(), strings.NewReader(importDoc), c, resolve)
	require.Error(t, err)
	assert.Equal(t, 1, groups)
	assert.Equal(t, 1, adapters, "A must have committed before B's resolver error aborted the batch")

	_, err = c.GetServerAdapter("A")
	require.NoError(t, err)
	_, err = c.GetServerAdapter("B")
	require.Error(t, err)
}
