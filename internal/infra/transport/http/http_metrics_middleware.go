package http

import (
	"net/http"
	"time"

	"github.com/mkrupp/kbchat/internal/infra/metrics"
)

// MetricsMiddleware records request counts and latencies.
// With a nil Metrics the handler is returned unchanged.
func MetricsMiddleware(next http.Handler, m *metrics.Metrics) http.Handler {
	if m == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := wrapResponseWriter(w)

		next.ServeHTTP(rw, r)

		m.HTTPRequest(r.Method, rw.StatusCode, time.Since(start))
	})
}
