package middleware

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/sakif/recipe-box/internal/metrics"
)

// RateLimiter hands out one token bucket per client IP.
//
// Buckets are never evicted. The limiter only guards the login routes, so
// the map grows with the number of distinct IPs that tried to log in since
// the process started.
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	limiters sync.Map // map[string]*rate.Limiter
}

// NewRateLimiter allows rps requests per second per IP with bursts of burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{rps: rate.Limit(rps), burst: burst}
}

func (l *RateLimiter) limiter(key string) *rate.Limiter {
	if v, ok := l.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}
	v, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(l.rps, l.burst))
	return v.(*rate.Limiter)
}

// clientIP expects chi's RealIP middleware to have already rewritten
// RemoteAddr from X-Forwarded-For / X-Real-IP when behind a proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Limit rejects requests over the budget with 429. route labels the metric.
func (l *RateLimiter) Limit(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.limiter(clientIP(r)).Allow() {
				metrics.RateLimitRejected.WithLabelValues(route).Inc()
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Too many login attempts. Please wait a moment.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
