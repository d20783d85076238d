package middleware

import (
	"net/http"
	"time"
)

type requestObserver interface {
	Observe(route string, status int, duration time.Duration)
}

// Metrics reports per-route status and latency once the route pattern is resolved.
func Metrics(observer requestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if observer == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r)

			observer.Observe(routePattern(r), rec.code(), time.Since(start))
		})
	}
}
