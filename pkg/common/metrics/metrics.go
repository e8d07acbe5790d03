// Package metrics exposes Prometheus collectors for the workspace daemon.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheikah_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sheikah_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	terminalSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sheikah_terminal_sessions_active",
			Help: "Number of running terminal sessions",
		},
	)

	terminalSpawnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheikah_terminal_spawns_total",
			Help: "Terminal shell spawn attempts",
		},
		[]string{"status"},
	)

	terminalBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheikah_terminal_bytes_total",
			Help: "Bytes moved between clients and terminal sessions",
		},
		[]string{"direction"},
	)

	searchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sheikah_search_duration_seconds",
			Help:    "Workspace full-text search duration",
			Buckets: prometheus.DefBuckets,
		},
	)

	generationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheikah_generations_total",
			Help: "Project generation requests",
		},
		[]string{"status"},
	)
)

// Middleware 记录每个请求的次数与耗时，路由未匹配时按 unmatched 归类避免标签爆炸
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler 返回 /metrics 的 gin 处理函数
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func SetTerminalSessions(n int) {
	terminalSessionsActive.Set(float64(n))
}

func RecordTerminalSpawn(success bool) {
	terminalSpawnsTotal.WithLabelValues(status(success)).Inc()
}

func RecordTerminalInput(n int) {
	terminalBytesTotal.WithLabelValues("in").Add(float64(n))
}

func RecordTerminalOutput(n int) {
	terminalBytesTotal.WithLabelValues("out").Add(float64(n))
}

func RecordSearch(d time.Duration) {
	searchDuration.Observe(d.Seconds())
}

func RecordGeneration(success bool) {
	generationsTotal.WithLabelValues(status(success)).Inc()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
