package mw

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ScanMetrics counts scan requests by domain and outcome.
type ScanMetrics struct {
	scans *prometheus.CounterVec
}

// NewScanMetrics registers the scan counters on the given registry.
func NewScanMetrics(reg prometheus.Registerer) *ScanMetrics {
	return &ScanMetrics{
		scans: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "campus_scans_total",
			Help: "NFC scan requests by domain and result.",
		}, []string{"domain", "result"}),
	}
}

// Observe records one scan outcome, e.g. ("gate", "in") or ("gate", "duplicate").
func (m *ScanMetrics) Observe(domain, result string) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(domain, result).Inc()
}

// RequestCounter counts HTTP requests by method, path template and status.
func RequestCounter(reg prometheus.Registerer) gin.HandlerFunc {
	requests := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "campus_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
