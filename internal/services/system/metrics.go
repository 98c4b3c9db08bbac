// Package system provides system-level services for monitoring.
package system

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"norelock.dev/osmcremote/internal/utils"
)

const namespace = "osmcremote"

// MetricsService provides application metrics collection functionality.
type MetricsService struct {
	logger   *utils.Logger
	registry *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec
	httpRequestsInProgress *prometheus.GaugeVec

	// Remote page socket metrics
	wsConnectionsTotal   prometheus.Counter
	wsConnectionsActive  prometheus.Gauge
	wsMessagesTotal      *prometheus.CounterVec
	wsConnectionDuration prometheus.Histogram

	// Media center metrics
	callsTotal         *prometheus.CounterVec
	callDuration       *prometheus.HistogramVec
	notificationsTotal *prometheus.CounterVec
	connectionUp       *prometheus.GaugeVec
	transportFailures  prometheus.Counter

	// Remote metrics
	gesturesTotal *prometheus.CounterVec
	viewUpdates   prometheus.Counter
}

// NewMetricsService creates a new metrics service with its own registry.
func NewMetricsService(logger *utils.Logger) *MetricsService {
	m := &MetricsService{
		logger:   logger.Named("metrics_service"),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(m.registry)
	m.initHTTPMetrics(factory)
	m.initWebSocketMetrics(factory)
	m.initMediaCenterMetrics(factory)
	m.initRemoteMetrics(factory)

	return m
}

// Handler returns an HTTP handler for exposing metrics.
func (m *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the registry the metrics are registered with.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// initHTTPMetrics initializes HTTP-related metrics.
func (m *MetricsService) initHTTPMetrics(factory promauto.Factory) {
	m.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.httpRequestsInProgress = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_progress",
			Help:      "Number of HTTP requests currently in progress",
		},
		[]string{"method", "path"},
	)
}

// initWebSocketMetrics initializes metrics for remote page sockets.
func (m *MetricsService) initWebSocketMetrics(factory promauto.Factory) {
	m.wsConnectionsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_connections_total",
			Help:      "Total number of remote page WebSocket connections",
		},
	)

	m.wsConnectionsActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections_active",
			Help:      "Number of active remote page WebSocket connections",
		},
	)

	m.wsMessagesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "Total number of remote page WebSocket messages",
		},
		[]string{"direction", "type"},
	)

	m.wsConnectionDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ws_connection_duration_seconds",
			Help:      "Duration of remote page WebSocket connections in seconds",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 10),
		},
	)
}

// initMediaCenterMetrics initializes metrics for the JSON-RPC link.
func (m *MetricsService) initMediaCenterMetrics(factory promauto.Factory) {
	m.callsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mediacenter_calls_total",
			Help:      "Total number of JSON-RPC calls to the media center",
		},
		[]string{"transport", "method", "outcome"},
	)

	m.callDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mediacenter_call_duration_seconds",
			Help:      "Duration of JSON-RPC calls in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"transport"},
	)

	m.notificationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mediacenter_notifications_total",
			Help:      "Total number of notifications received from the media center",
		},
		[]string{"method"},
	)

	m.connectionUp = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mediacenter_connection_up",
			Help:      "Whether the transport to the media center is open",
		},
		[]string{"transport"},
	)

	m.transportFailures = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mediacenter_transport_failures_total",
			Help:      "Total number of transport failures seen by the remote",
		},
	)
}

// initRemoteMetrics initializes metrics for the remote controller.
func (m *MetricsService) initRemoteMetrics(factory promauto.Factory) {
	m.gesturesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gestures_total",
			Help:      "Total number of gestures handled",
		},
		[]string{"kind"},
	)

	m.viewUpdates = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_updates_total",
			Help:      "Total number of view changes pushed to remote pages",
		},
	)
}

// ObserveHTTPRequest records metrics for an HTTP request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncHTTPRequestsInProgress increments the in-progress HTTP requests counter.
func (m *MetricsService) IncHTTPRequestsInProgress(method, path string) {
	m.httpRequestsInProgress.WithLabelValues(method, path).Inc()
}

// DecHTTPRequestsInProgress decrements the in-progress HTTP requests counter.
func (m *MetricsService) DecHTTPRequestsInProgress(method, path string) {
	m.httpRequestsInProgress.WithLabelValues(method, path).Dec()
}

// ObserveWSConnection records metrics for a closed remote page socket.
func (m *MetricsService) ObserveWSConnection(duration time.Duration) {
	m.wsConnectionsTotal.Inc()
	m.wsConnectionDuration.Observe(duration.Seconds())
}

// IncWSConnectionsActive increments the active WebSocket connections counter.
func (m *MetricsService) IncWSConnectionsActive() {
	m.wsConnectionsActive.Inc()
}

// DecWSConnectionsActive decrements the active WebSocket connections counter.
func (m *MetricsService) DecWSConnectionsActive() {
	m.wsConnectionsActive.Dec()
}

// ObserveWSMessage records a remote page socket message.
func (m *MetricsService) ObserveWSMessage(direction, msgType string) {
	m.wsMessagesTotal.WithLabelValues(direction, msgType).Inc()
}

// ObserveCall records a JSON-RPC call to the media center.
func (m *MetricsService) ObserveCall(transport, method string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.callsTotal.WithLabelValues(transport, method, outcome).Inc()
	m.callDuration.WithLabelValues(transport).Observe(elapsed.Seconds())
}

// ObserveNotification records a notification from the media center.
func (m *MetricsService) ObserveNotification(method string) {
	m.notificationsTotal.WithLabelValues(method).Inc()
}

// ObserveConnection records whether a transport is open.
func (m *MetricsService) ObserveConnection(transport string, up bool) {
	value := 0.0
	if up {
		value = 1
	}
	m.connectionUp.WithLabelValues(transport).Set(value)
}

// IncTransportFailures increments the transport failure counter.
func (m *MetricsService) IncTransportFailures() {
	m.transportFailures.Inc()
}

// IncGestures counts a handled gesture.
func (m *MetricsService) IncGestures(kind string) {
	m.gesturesTotal.WithLabelValues(kind).Inc()
}

// IncViewUpdates counts a view pushed to pages.
func (m *MetricsService) IncViewUpdates() {
	m.viewUpdates.Inc()
}
