// Package metrics records run metrics with Prometheus collectors.
//
// Collectors live in their own registry rather than the global one, so a
// process can run several times (tests) without duplicate registration. The
// registry is exported to a node_exporter textfile at the end of a run.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ligustah/gulp/internal/downloader"
)

// Namespace prefixes every metric name.
const Namespace = "gulp"

// Metrics implements downloader.Observer by updating Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	transfersTotal  *prometheus.CounterVec
	droppedTotal    *prometheus.CounterVec
	bytesWritten    prometheus.Counter
	transferSeconds prometheus.Histogram
	fileSizeBytes   prometheus.Histogram
	inFlight        prometheus.Gauge
	runSeconds      prometheus.Gauge
}

var _ downloader.Observer = (*Metrics)(nil)

// New creates the collectors and registers them in a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.transfersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "transfers_total",
			Help:      "Transfers by terminal status.",
		},
		[]string{"status"},
	)

	m.droppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "requests_dropped_total",
			Help:      "Requests removed before the transfer phase, by reason.",
		},
		[]string{"reason"},
	)

	m.bytesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "bytes_written_total",
		Help:      "Bytes written by completed transfers.",
	})

	m.transferSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "transfer_duration_seconds",
		Help:      "Time spent reading and writing one response body.",
		Buckets:   prometheus.DefBuckets,
	})

	// 1KB to 1GB
	m.fileSizeBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "file_size_bytes",
		Help:      "Size of completed downloads.",
		Buckets:   prometheus.ExponentialBuckets(1024, 10, 7),
	})

	m.inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "requests_in_flight",
		Help:      "Requests started whose transfer has not finished.",
	})

	m.runSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall-clock time of the last run.",
	})

	m.registry.MustRegister(
		m.transfersTotal,
		m.droppedTotal,
		m.bytesWritten,
		m.transferSeconds,
		m.fileSizeBytes,
		m.inFlight,
		m.runSeconds,
	)

	// Pre-create label values so every series is exported, even at zero.
	for _, s := range []downloader.Status{downloader.StatusCompleted, downloader.StatusSkipped, downloader.StatusFailed} {
		m.transfersTotal.WithLabelValues(s.String())
	}
	for _, r := range []downloader.DropReason{downloader.DropRequestFailed, downloader.DropBadStatus} {
		m.droppedTotal.WithLabelValues(r.String())
	}

	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// OutputReady is a no-op.
func (m *Metrics) OutputReady(string, bool) {}

// RequestStarted increments the in-flight gauge.
func (m *Metrics) RequestStarted(downloader.Target) {
	m.inFlight.Inc()
}

// RequestDropped counts a drop.
func (m *Metrics) RequestDropped(d downloader.Drop) {
	m.inFlight.Dec()
	m.droppedTotal.WithLabelValues(d.Reason.String()).Inc()
}

// TransferDone counts an outcome.
func (m *Metrics) TransferDone(o downloader.Outcome) {
	m.inFlight.Dec()
	m.transfersTotal.WithLabelValues(o.Status.String()).Inc()
	if o.Status != downloader.StatusCompleted {
		return
	}
	m.bytesWritten.Add(float64(o.Bytes))
	m.fileSizeBytes.Observe(float64(o.Bytes))
	m.transferSeconds.Observe(o.Duration.Seconds())
}

// RunFinished records the run duration.
func (m *Metrics) RunFinished(res *downloader.Result) {
	if res == nil {
		return
	}
	m.runSeconds.Set(res.Elapsed.Seconds())
}

// WriteTextfile writes the registry in the text exposition format. The file
// is written to a temporary name first and renamed, so a collector never
// reads a partial file.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
