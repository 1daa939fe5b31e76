package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gridlocator/gridlocator/gridlog"
	"github.com/gridlocator/gridlocator/message"
)

// RetryMiddleware retries a handler on timeout/connection-refused errors
// with exponential backoff, up to maxRetries attempts. Any other error is
// returned immediately without retrying.
func RetryMiddleware(maxRetries int, baseDelay time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
			rpcMessage := next(ctx, req)
			for i := 0; i < maxRetries; i++ {
				if rpcMessage.Error == "" {
					return rpcMessage
				}
				if strings.Contains(rpcMessage.Error, "timeout") || strings.Contains(rpcMessage.Error, "connection refused") {
					gridlog.L().Warnw("retrying rpc call",
						"attempt", i+1, "service_method", req.ServiceMethod, "error", rpcMessage.Error)
					time.Sleep(baseDelay * time.Duration(1<<i))
					rpcMessage = next(ctx, req)
				} else {
					return rpcMessage
				}
			}
			return rpcMessage
		}
	}
}
