// Package adapterhost defines the wire contract between a
// serverhandle.TransportServerHandle and the AdapterHost service a
// nodeagent process registers: the "AdapterHost.GetAdapter" and
// "AdapterHost.GetLoad" request/reply pairs exchanged as RPC payloads.
//
// Neither side imports the other's package to use these types — the
// transport layer only needs JSON-marshalable values, and keeping the
// contract in its own leaf package keeps serverhandle and nodeagent free
// to depend on it without depending on each other.
package adapterhost

// ServiceName is the receiver name the RPC layer dispatches
// "ServiceName.Method" against.
const ServiceName = "AdapterHost"

// GetAdapterArgs requests the current proxy for a locally hosted adapter.
type GetAdapterArgs struct {
	AdapterID string
	UpToDate  bool
}

// GetAdapterReply carries the resolved endpoint, or an empty Endpoint if
// the node has no direct proxy for the adapter yet.
type GetAdapterReply struct {
	Endpoint string
}

// GetLoadArgs requests a load sample averaged over the given window.
type GetLoadArgs struct {
	// Sample mirrors serverhandle.LoadSampleKind (0=1min, 1=5min, 2=15min)
	// without importing that package, keeping this contract dependency-free.
	Sample int
}

// GetLoadReply carries the sampled load value.
type GetLoadReply struct {
	Load float32
}

// ErrCodeAdapterNotFound is the RPCMessage.Error string an AdapterHost
// returns when asked about an adapter id it doesn't host. A
// TransportServerHandle maps this exact string back to
// serverhandle.ErrAdapterNotExist; any other non-empty Error string is
// wrapped and propagated as an opaque failure.
const ErrCodeAdapterNotFound = "ADAPTER_NOT_FOUND"

