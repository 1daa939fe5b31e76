package serverhandle

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gridlocator/gridlocator/adapterhost"
	"github.com/gridlocator/gridlocator/codec"
	"github.com/gridlocator/gridlocator/message"
	"github.com/gridlocator/gridlocator/transport"
)

// TransportServerHandle is the reference ServerHandle: it dials a single
// nodeagent process and calls its AdapterHost service over gridlocator's
// wire protocol. One handle corresponds to one server-adapter's hosting
// node; it never load-balances across multiple server addresses — the
// cache's own replica-group policy is what picks among nodes, not this
// type.
type TransportServerHandle struct {
	addr        string
	dialTimeout time.Duration
	callTimeout time.Duration

	mu        sync.Mutex
	transport *transport.ClientTransport
}

// NewTransportServerHandle returns a handle that lazily dials addr on its
// first call and reuses the multiplexed connection for subsequent calls.
func NewTransportServerHandle(addr string) *TransportServerHandle {
	return &TransportServerHandle{
		addr:        addr,
		dialTimeout: 3 * time.Second,
		callTimeout: 5 * time.Second,
	}
}

func (h *TransportServerHandle) ensureTransport() (*transport.ClientTransport, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.transport != nil {
		return h.transport, nil
	}
	conn, err := net.DialTimeout("tcp", h.addr, h.dialTimeout)
	if err != nil {
		return nil, ErrNodeUnreachable
	}
	h.transport = transport.NewClientTransport(conn, codec.CodecTypeJSON)
	return h.transport, nil
}

// invalidate drops the cached transport after a failure so the next call
// redials rather than reusing a dead connection.
func (h *TransportServerHandle) invalidate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.transport != nil {
		h.transport.Conn().Close()
		h.transport = nil
	}
}

// Close tears down the underlying connection, if any.
func (h *TransportServerHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.transport == nil {
		return nil
	}
	err := h.transport.Conn().Close()
	h.transport = nil
	return err
}

func (h *TransportServerHandle) GetAdapter(ctx context.Context, adapterID string, upToDate bool) (AdapterProxy, error) {
	t, err := h.ensureTransport()
	if err != nil {
		return AdapterProxy{}, err
	}

	_, respChan, err := t.Send(adapterhost.ServiceName+".GetAdapter", adapterhost.GetAdapterArgs{
		AdapterID: adapterID,
		UpToDate:  upToDate,
	})
	if err != nil {
		h.invalidate()
		return AdapterProxy{}, ErrNodeUnreachable
	}

	resp, err := h.await(ctx, respChan)
	if err != nil {
		return AdapterProxy{}, err
	}
	if resp.Error != "" {
		if resp.Error == adapterhost.ErrCodeAdapterNotFound {
			return AdapterProxy{}, ErrAdapterNotExist
		}
		return AdapterProxy{}, fmt.Errorf("serverhandle: node returned %s", resp.Error)
	}

	var reply adapterhost.GetAdapterReply
	if err := json.Unmarshal(resp.Payload, &reply); err != nil {
		return AdapterProxy{}, fmt.Errorf("serverhandle: decoding GetAdapter reply: %w", err)
	}
	return AdapterProxy{Endpoint: reply.Endpoint}, nil
}

func (h *TransportServerHandle) GetLoad(ctx context.Context, sample LoadSampleKind) (float32, error) {
	t, err := h.ensureTransport()
	if err != nil {
		return 0, err
	}

	_, respChan, err := t.Send(adapterhost.ServiceName+".GetLoad", adapterhost.GetLoadArgs{
		Sample: int(sample),
	})
	if err != nil {
		h.invalidate()
		return 0, ErrNodeUnreachable
	}

	resp, err := h.await(ctx, respChan)
	if err != nil {
		return 0, err
	}
	if resp.Error != "" {
		return 0, fmt.Errorf("serverhandle: node returned %s", resp.Error)
	}

	var reply adapterhost.GetLoadReply
	if err := json.Unmarshal(resp.Payload, &reply); err != nil {
		return 0, fmt.Errorf("serverhandle: decoding GetLoad reply: %w", err)
	}
	return reply.Load, nil
}

func (h *TransportServerHandle) await(ctx context.Context, respChan <-chan *message.RPCMessage) (*message.RPCMessage, error) {
	select {
	case resp := <-respChan:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(h.callTimeout):
		h.invalidate()
		return nil, ErrNodeUnreachable
	}
}

var _ ServerHandle = (*TransportServerHandle)(nil)
