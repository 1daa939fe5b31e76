package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/gridlocator/gridlocator/message"
)

// RateLimitMiddleware builds a token-bucket rate limiter admitting r
// requests per second with the given burst size.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
			if !limiter.Allow() {
				return &message.RPCMessage{
					Error: "rate limit exceeded",
				}
			}
			return next(ctx, req)
		}
	}
}
