package middleware

import (
	"context"
	"github.com/gridlocator/gridlocator/message"
	"testing"
	"time"
)

// echoHandler returns a successful response immediately.
func echoHandler(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
	return &message.RPCMessage{
		ServiceMethod: req.ServiceMethod,
		Payload:       []byte("ok"),
	}
}

// slowHandler sleeps 200ms before responding.
func slowHandler(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
	time.Sleep(200 * time.Millisecond)
	return &message.RPCMessage{
		ServiceMethod: req.ServiceMethod,
		Payload:       []byte("ok"),
	}
}

func TestLogging(t *testing.T) {
	handler := LoggingMiddleware()(echoHandler)

	req := &message.RPCMessage{ServiceMethod: "Arith.Add"}
	resp := handler(context.Background(), req)

	if resp == nil {
		t.Fatal("expect non-nil response")
	}
	if string(resp.Payload) != "ok" {
		t.Fatalf("expect payload 'ok', got '%s'", string(resp.Payload))
	}
}

func TestTimeoutPass(t *testing.T) {
	// 500ms timeout, handler returns quickly: should pass through unchanged.
	handler := TimeOutMiddleware(500 * time.Millisecond)(echoHandler)

	req := &message.RPCMessage{ServiceMethod: "Arith.Add"}
	resp := handler(context.Background(), req)

	if resp.Error != "" {
		t.Fatalf("expect no error, got '%s'", resp.Error)
	}
}

func TestTimeoutExceeded(t *testing.T) {
	// 50ms timeout, handler takes 200ms: should time out.
	handler := TimeOutMiddleware(50 * time.Millisecond)(slowHandler)

	req := &message.RPCMessage{ServiceMethod: "Arith.Add"}
	resp := handler(context.Background(), req)

	if resp.Error != "request timed out" {
		t.Fatalf("expect timeout error, got '%s'", resp.Error)
	}
}

func TestRateLimit(t *testing.T) {
	// rate=1 per second, burst=2: first 2 pass immediately, 3rd is rejected.
	handler := RateLimitMiddleware(1, 2)(echoHandler)
	req := &message.RPCMessage{ServiceMethod: "Arith.Add"}

	for i := 0; i < 2; i++ {
		resp := handler(context.Background(), req)
		if resp.Error != "" {
			t.Fatalf("request %d should pass, got error: %s", i, resp.Error)
		}
	}

	resp := handler(context.Background(), req)
	if resp.Error != "rate limit exceeded" {
		t.Fatalf("request 3 should be rate limited, got: '%s'", resp.Error)
	}
}

func TestChain(t *testing.T) {
	// Chain combines Logging + Timeout; the request should pass through normally.
	chained := Chain(LoggingMiddleware(), TimeOutMiddleware(500*time.Millisecond))
	handler := chained(echoHandler)

	req := &message.RPCMessage{ServiceMethod: "Arith.Add"}
	resp := handler(context.Background(), req)

	if resp == nil {
		t.Fatal("expect non-nil response")
	}
	if resp.Error != "" {
		t.Fatalf("expect no error, got '%s'", resp.Error)
	}
}
