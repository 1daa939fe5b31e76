package middleware

import (
	"context"
	"time"

	"github.com/gridlocator/gridlocator/gridlog"
	"github.com/gridlocator/gridlocator/message"
)

// LoggingMiddleware logs the service method, call duration, and any error
// for every request, using the process-wide structured logger.
func LoggingMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
			start := time.Now()
			rpcMessage := next(ctx, req)
			duration := time.Since(start)
			if rpcMessage.Error != "" {
				gridlog.L().Warnw("rpc call failed",
					"service_method", req.ServiceMethod, "duration", duration, "error", rpcMessage.Error)
			} else {
				gridlog.L().Debugw("rpc call",
					"service_method", req.ServiceMethod, "duration", duration)
			}
			return rpcMessage
		}
	}
}
