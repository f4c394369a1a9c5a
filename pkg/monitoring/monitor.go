package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	PlacementSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placement_submissions_total",
			Help: "Placement test submissions by outcome",
		},
		[]string{"outcome"},
	)

	PlacementLevels = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placement_recommended_levels_total",
			Help: "Recommended levels assigned by placement evaluations",
		},
		[]string{"level"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(PlacementSubmissions)
		prometheus.MustRegister(PlacementLevels)
	})
}

// ObserveSubmission records the outcome of one submission; level is empty
// unless a result was stored.
func ObserveSubmission(outcome, level string) {
	PlacementSubmissions.WithLabelValues(outcome).Inc()
	if level != "" {
		PlacementLevels.WithLabelValues(level).Inc()
	}
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
