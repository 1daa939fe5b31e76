package nodeagent

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/gridlocator/gridlocator/adapterhost"
	"github.com/gridlocator/gridlocator/codec"
	"github.com/gridlocator/gridlocator/transport"
)

func startTestServer(t *testing.T, addr string) *Host {
	t.Helper()
	host := NewHost()
	host.SetAdapter("A", "10.0.0.4:9000")

	svr := NewServer()
	if err := svr.Register(NewAdapterHost(host)); err != nil {
		t.Fatal(err)
	}
	go svr.Serve("tcp", addr)
	time.Sleep(100 * time.Millisecond)
	return host
}

func TestAdapterHost_GetAdapter_KnownAndUnknown(t *testing.T) {
	startTestServer(t, ":19101")

	conn, err := net.Dial("tcp", ":19101")
	if err != nil {
		t.Fatal(err)
	}
	ct := transport.NewClientTransport(conn, codec.CodecTypeJSON)

	_, ch, err := ct.Send("AdapterHost.GetAdapter", map[string]any{"AdapterID": "A", "UpToDate": true})
	if err != nil {
		t.Fatal(err)
	}
	resp := <-ch
	if resp.Error != "" {
		t.Fatalf("unexpected error for known adapter: %s", resp.Error)
	}

	_, ch2, err := ct.Send("AdapterHost.GetAdapter", map[string]any{"AdapterID": "missing", "UpToDate": true})
	if err != nil {
		t.Fatal(err)
	}
	resp2 := <-ch2
	if resp2.Error != "ADAPTER_NOT_FOUND" {
		t.Fatalf("expected ADAPTER_NOT_FOUND, got %q", resp2.Error)
	}
}

func TestAdapterHost_GetLoad_NoObservationsReturnsZero(t *testing.T) {
	startTestServer(t, ":19102")

	conn, err := net.Dial("tcp", ":19102")
	if err != nil {
		t.Fatal(err)
	}
	ct := transport.NewClientTransport(conn, codec.CodecTypeJSON)

	_, ch, err := ct.Send("AdapterHost.GetLoad", map[string]any{"Sample": 0})
	if err != nil {
		t.Fatal(err)
	}
	resp := <-ch
	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	var reply adapterhost.GetLoadReply
	if err := json.Unmarshal(resp.Payload, &reply); err != nil {
		t.Fatal(err)
	}
	if reply.Load != 0 {
		t.Fatalf("expected load 0 with no observations, got %v", reply.Load)
	}
}
