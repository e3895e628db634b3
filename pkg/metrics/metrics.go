package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WorkerMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "worker_messages_total", Help: "Broker messages handled by the worker"},
		[]string{"action", "status"},
	)
	WorkerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worker_message_duration_seconds",
			Help:    "Time spent handling one broker message",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"},
	)
	Matches = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "matches_total", Help: "Mutual likes detected"},
	)

	RPCCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rpc_calls_total", Help: "Request/reply calls issued by the gateway"},
		[]string{"action", "result"},
	)
	RPCLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rpc_call_duration_seconds",
			Help:    "Round-trip time of request/reply calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"},
	)
	StaleReplies = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "rpc_stale_replies_total", Help: "Replies dropped without a pending call"},
	)

	PhotoCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "photo_cache_lookups_total", Help: "Photo cache lookups"},
		[]string{"result"},
	)

	httpReqTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Count of HTTP requests"},
		[]string{"path", "method", "status"},
	)
	httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"},
	)
)

func init() {
	prometheus.MustRegister(
		WorkerMessages, WorkerLatency, Matches,
		RPCCalls, RPCLatency, StaleReplies,
		PhotoCacheLookups,
		httpReqTotal, httpLatency,
	)
}

// Middleware records per-route request counts and latency.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		httpReqTotal.WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		httpLatency.WithLabelValues(path, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
