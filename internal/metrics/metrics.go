package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	attemptsStarted   prometheus.Counter
	attemptsSubmitted *prometheus.CounterVec
	attemptScore      prometheus.Histogram
	conflicts         prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
		attemptsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exam_attempts_started_total",
			Help: "Attempts started",
		}),
		attemptsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_attempts_submitted_total",
			Help: "Attempts submitted, by outcome",
		}, []string{"passed"}),
		attemptScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "exam_attempt_percentage",
			Help:    "Percentage scored by submitted attempts",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exam_attempt_version_conflicts_total",
			Help: "Optimistic concurrency conflicts while writing attempts",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.attemptsStarted,
		m.attemptsSubmitted,
		m.attemptScore,
		m.conflicts,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) AttemptStarted() {
	if m == nil {
		return
	}
	m.attemptsStarted.Inc()
}

func (m *Metrics) AttemptSubmitted(passed bool, percentage int) {
	if m == nil {
		return
	}
	m.attemptsSubmitted.WithLabelValues(strconv.FormatBool(passed)).Inc()
	m.attemptScore.Observe(float64(percentage))
}

func (m *Metrics) VersionConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
