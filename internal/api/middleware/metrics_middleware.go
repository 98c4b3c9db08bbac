package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// HTTPRecorder receives request metrics.
type HTTPRecorder interface {
	ObserveHTTPRequest(method, path string, status int, duration time.Duration)
	IncHTTPRequestsInProgress(method, path string)
	DecHTTPRequestsInProgress(method, path string)
}

// MetricsMiddleware records request counts and latencies per route.
type MetricsMiddleware struct {
	recorder HTTPRecorder
}

// NewMetricsMiddleware creates a new metrics middleware.
func NewMetricsMiddleware(recorder HTTPRecorder) *MetricsMiddleware {
	return &MetricsMiddleware{recorder: recorder}
}

// Metrics is a middleware that records request metrics. It must be
// installed on the top level router so the route pattern can be resolved
// before the request is served.
func (m *MetricsMiddleware) Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := routePattern(r)
		start := time.Now()

		m.recorder.IncHTTPRequestsInProgress(r.Method, path)
		defer m.recorder.DecHTTPRequestsInProgress(r.Method, path)

		rw := wrap(w)
		next.ServeHTTP(rw, r)

		m.recorder.ObserveHTTPRequest(r.Method, path, rw.statusCode, time.Since(start))
	})
}

// routePattern labels by pattern rather than raw path to keep the label set
// bounded.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.Routes == nil {
		return "unmatched"
	}

	tctx := chi.NewRouteContext()
	if !rctx.Routes.Match(tctx, r.Method, r.URL.Path) {
		return "unmatched"
	}
	return tctx.RoutePattern()
}
