package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total number of HTTP requests processed by the chat backend.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_events_total",
			Help: "Total number of websocket lifecycle events.",
		},
		[]string{"event"},
	)
	wsDroppedFramesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_ws_dropped_frames_total",
			Help: "Total number of outbound frames evicted from full client queues.",
		},
	)
	busPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_bus_published_total",
			Help: "Total number of events published to the room bus.",
		},
		[]string{"type"},
	)
	busReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_bus_received_total",
			Help: "Total number of events received from the room bus.",
		},
		[]string{"type"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		wsDroppedFramesTotal,
		busPublishedTotal,
		busReceivedTotal,
		amqpPublishErrorsTotal,
	)
}

// HTTPMetricsMiddleware records a counter and latency sample per request.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func AddDroppedFrames(n int) {
	wsDroppedFramesTotal.Add(float64(n))
}

func IncBusPublished(eventType string) {
	busPublishedTotal.WithLabelValues(eventType).Inc()
}

func IncBusReceived(eventType string) {
	busReceivedTotal.WithLabelValues(eventType).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
