package handlers

import (
	"net"
	"net/http"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/time/rate"
)

// maxLimiters bounds the number of remote hosts tracked at once.
const maxLimiters = 10000

// RateLimit throttles requests per remote host. A zero Rate disables it.
type RateLimit struct {
	Rate  rate.Limit
	Burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func (l *RateLimit) Use(api huma.API) {
	if l.Rate <= 0 {
		return
	}
	api.UseMiddleware(func(ctx huma.Context, next func(huma.Context)) {
		if !l.limiter(remoteHost(ctx.RemoteAddr())).Allow() {
			ctx.SetHeader("Retry-After", "1")
			_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(ctx)
	})
}

func (l *RateLimit) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.limiters == nil || len(l.limiters) >= maxLimiters {
		l.limiters = make(map[string]*rate.Limiter)
	}
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.Rate, max(l.Burst, 1))
		l.limiters[key] = limiter
	}
	return limiter
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
