package serverhandle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gridlocator/gridlocator/nodeagent"
)

func startHost(t *testing.T, addr string) *nodeagent.Host {
	t.Helper()
	host := nodeagent.NewHost()
	host.SetAdapter("A", "10.0.0.4:9000")

	svr := nodeagent.NewServer()
	if err := svr.Register(nodeagent.NewAdapterHost(host)); err != nil {
		t.Fatal(err)
	}
	go svr.Serve("tcp", addr)
	time.Sleep(100 * time.Millisecond)
	return host
}

func TestTransportServerHandle_GetAdapter(t *testing.T) {
	startHost(t, ":19201")
	h := NewTransportServerHandle("127.0.0.1:19201")
	defer h.Close()

	proxy, err := h.GetAdapter(context.Background(), "A", true)
	if err != nil {
		t.Fatal(err)
	}
	if proxy.Endpoint != "10.0.0.4:9000" {
		t.Fatalf("unexpected endpoint: %q", proxy.Endpoint)
	}
}

func TestTransportServerHandle_GetAdapter_Unknown(t *testing.T) {
	startHost(t, ":19202")
	h := NewTransportServerHandle("127.0.0.1:19202")
	defer h.Close()

	_, err := h.GetAdapter(context.Background(), "missing", true)
	if !errors.Is(err, ErrAdapterNotExist) {
		t.Fatalf("expected ErrAdapterNotExist, got %v", err)
	}
}

func TestTransportServerHandle_GetLoad(t *testing.T) {
	host := startHost(t, ":19203")
	host.Observe(4.0)
	h := NewTransportServerHandle("127.0.0.1:19203")
	defer h.Close()

	load, err := h.GetLoad(context.Background(), Sample1)
	if err != nil {
		t.Fatal(err)
	}
	if load <= 0 {
		t.Fatalf("expected a positive load sample, got %v", load)
	}
}

func TestTransportServerHandle_Unreachable(t *testing.T) {
	h := NewTransportServerHandle("127.0.0.1:1")
	h.dialTimeout = 200 * time.Millisecond
	defer h.Close()

	_, err := h.GetAdapter(context.Background(), "A", true)
	if !errors.Is(err, ErrNodeUnreachable) {
		t.Fatalf("expected ErrNodeUnreachable, got %v", err)
	}
}
