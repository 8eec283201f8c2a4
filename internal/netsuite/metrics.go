package netsuite

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records outbound ERP call counts and latencies.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the ERP call collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderbridge_netsuite_calls_total",
		Help: "Outbound NetSuite REST calls by operation and status class.",
	}, []string{"operation", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orderbridge_netsuite_call_duration_seconds",
		Help:    "Latency of outbound NetSuite REST calls.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	}, []string{"operation"})
	if reg != nil {
		reg.MustRegister(calls, duration)
	}
	return &Metrics{calls: calls, duration: duration}
}

func (m *Metrics) observe(op string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(op, statusClass(status)).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func statusClass(status int) string {
	if status == 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
