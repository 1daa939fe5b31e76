package adminapi

import (
	"context"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/gridlocator/gridlocator/cache"
	"github.com/gridlocator/gridlocator/descriptorsync"
)

// ImportDocument is the YAML shape a bulk descriptor import accepts: every
// replica group and every server-adapter for one application, in a single
// file. Groups are always applied before adapters regardless of document
// order, satisfying the same ordering requirement descriptorsync enforces
// on its own bootstrap read.
type ImportDocument struct {
	Application   string                         `yaml:"application"`
	ReplicaGroups []cache.ReplicaGroupDescriptor `yaml:"replica_groups"`
	Adapters      []importAdapter                `yaml:"adapters"`
}

type importAdapter struct {
	cache.AdapterDescriptor `yaml:",inline"`
	NodeAddr                string `yaml:"node_addr"`
}

// Import decodes a YAML document from r and applies it to c, resolving
// each adapter's ServerHandle via resolve. It returns the number of
// replica groups and adapters successfully added; a failure partway
// through does not roll back entries already committed, matching the
// cache's own per-call atomicity (each Add call is atomic, the batch is
// not).
func Import(ctx context.Context, r io.Reader, c *cache.AdapterCache, resolve descriptorsync.HandleResolver) (groups, adapters int, err error) {
	var doc ImportDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return 0, 0, err
	}

	for _, g := range doc.ReplicaGroups {
		if _, err := c.AddReplicaGroup(g, doc.Application); err != nil {
			return groups, adapters, err
		}
		groups++
	}

	for _, a := range doc.Adapters {
		handle, err := resolve(ctx, descriptorsync.DescriptorEvent{
			Kind:        descriptorsync.EventAddServerAdapter,
			ID:          a.ID,
			Application: doc.Application,
			NodeAddr:    a.NodeAddr,
			Adapter:     &a.AdapterDescriptor,
		})
		if err != nil {
			return groups, adapters, err
		}
		if _, err := c.AddServerAdapter(a.AdapterDescriptor, handle, doc.Application); err != nil {
			return groups, adapters, err
		}
		adapters++
	}

	return groups, adapters, nil
}
