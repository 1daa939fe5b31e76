package nodeagent

import (
	"github.com/gridlocator/gridlocator/adapterhost"
)

// AdapterHost is the RPC service receiver a node process registers with
// its Server. Its two methods are the only ones a
// serverhandle.TransportServerHandle ever calls; the reflective dispatch
// in service.go finds them by the "AdapterHost.GetAdapter" /
// "AdapterHost.GetLoad" names carried in RPCMessage.ServiceMethod.
type AdapterHost struct {
	host *Host
}

// NewAdapterHost wraps host for RPC registration.
func NewAdapterHost(host *Host) *AdapterHost {
	return &AdapterHost{host: host}
}

// GetAdapter returns the endpoint for a locally hosted adapter. An unknown
// adapter id fails with adapterhost.ErrCodeAdapterNotFound rather than a
// free-form message, so the caller can distinguish "not hosted here" from
// any other failure.
func (a *AdapterHost) GetAdapter(args *adapterhost.GetAdapterArgs, reply *adapterhost.GetAdapterReply) error {
	endpoint, ok := a.host.Adapter(args.AdapterID)
	if !ok {
		return adapterHostError(adapterhost.ErrCodeAdapterNotFound)
	}
	reply.Endpoint = endpoint
	return nil
}

// GetLoad returns the node's current load sample for the requested window.
func (a *AdapterHost) GetLoad(args *adapterhost.GetLoadArgs, reply *adapterhost.GetLoadReply) error {
	reply.Load = a.host.Load(args.Sample)
	return nil
}

type adapterHostError string

func (e adapterHostError) Error() string { return string(e) }
