// Package prometheus provides the prometheus-backed implementations of the
// metrics interfaces.
package prometheus

import (
	"time"

	"github.com/marmos91/nfswire/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// nfsMetrics is the prometheus implementation of metrics.NFSMetrics.
type nfsMetrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	bytesRead       prometheus.Counter
	openConnections prometheus.Gauge
}

// NewNFSMetrics creates a prometheus-backed NFSMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called); a nil
// receiver is safe to use.
func NewNFSMetrics() metrics.NFSMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &nfsMetrics{
		requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nfswire_requests_total",
				Help: "Total RPC requests by program, procedure, and NFS status",
			},
			[]string{"program", "procedure", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nfswire_request_duration_seconds",
				Help:    "RPC request processing time by program and procedure",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"program", "procedure"},
		),
		bytesRead: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "nfswire_read_bytes_total",
				Help: "Total bytes served through READ replies",
			},
		),
		openConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "nfswire_open_connections",
				Help: "Currently open client connections",
			},
		),
	}
}

func (m *nfsMetrics) RecordRequest(program, procedure, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(program, procedure, status).Inc()
	m.requestDuration.WithLabelValues(program, procedure).Observe(duration.Seconds())
}

func (m *nfsMetrics) RecordBytesRead(bytes uint64) {
	if m == nil {
		return
	}
	m.bytesRead.Add(float64(bytes))
}

func (m *nfsMetrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.openConnections.Inc()
}

func (m *nfsMetrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.openConnections.Dec()
}
