package middleware

import (
	"context"
	"fmt"
	"sync"

	"connectrpc.com/connect"
	"golang.org/x/time/rate"
)

// RateLimit returns an interceptor that allows each replica perSecond calls
// per second with bursts of up to burst calls. Unauthenticated callers are
// limited per peer address. Place it after RequireAuth.
func RateLimit(perSecond float64, burst int) connect.UnaryInterceptorFunc {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)
	limiterFor := func(caller string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[caller]
		if !ok {
			l = rate.NewLimiter(rate.Limit(perSecond), burst)
			limiters[caller] = l
		}
		return l
	}

	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			caller := GetReplica(ctx)
			if caller == "" {
				caller = "peer:" + req.Peer().Addr
			}
			if !limiterFor(caller).Allow() {
				return nil, connect.NewError(connect.CodeResourceExhausted,
					fmt.Errorf("rate limit exceeded for %s", caller))
			}
			return next(ctx, req)
		}
	}
}
