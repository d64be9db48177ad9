package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "huffarc"

const (
	archiverSubsystem = "archiver"

	operationLabelKey = "operation"
)

// Operation names used as label values.
const (
	OperationPack   = "pack"
	OperationUnpack = "unpack"
)

// ArchiverMetrics collects pack and unpack statistics in its own registry.
type ArchiverMetrics struct {
	registry *prometheus.Registry

	files        *prometheus.CounterVec
	failures     *prometheus.CounterVec
	originalSize *prometheus.CounterVec
	encodedSize  *prometheus.CounterVec
	fileDuration *prometheus.HistogramVec
	workers      *prometheus.GaugeVec
}

// NewArchiverMetrics returns ArchiverMetrics with all collectors registered.
func NewArchiverMetrics(version string) *ArchiverMetrics {
	var (
		files = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: archiverSubsystem,
			Name:      "files_total",
			Help:      "Number of processed archive entries",
		}, []string{operationLabelKey})

		failures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: archiverSubsystem,
			Name:      "failures_total",
			Help:      "Number of archive entries failed to be processed",
		}, []string{operationLabelKey})

		originalSize = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: archiverSubsystem,
			Name:      "original_bytes_total",
			Help:      "Size of processed files before encoding",
		}, []string{operationLabelKey})

		encodedSize = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: archiverSubsystem,
			Name:      "encoded_bytes_total",
			Help:      "Size of processed entry payloads in the container",
		}, []string{operationLabelKey})

		fileDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: archiverSubsystem,
			Name:      "file_time",
			Help:      "Single entry processing time",
		}, []string{operationLabelKey})

		workers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: archiverSubsystem,
			Name:      "workers",
			Help:      "Number of workers processing entries concurrently",
		}, []string{operationLabelKey})
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(files, failures, originalSize, encodedSize, fileDuration, workers)
	registerVersionMetric(reg, namespace, version)

	return &ArchiverMetrics{
		registry:     reg,
		files:        files,
		failures:     failures,
		originalSize: originalSize,
		encodedSize:  encodedSize,
		fileDuration: fileDuration,
		workers:      workers,
	}
}

// AddFile accounts single processed entry.
func (m *ArchiverMetrics) AddFile(op string, original, encoded uint64, d time.Duration) {
	m.files.WithLabelValues(op).Inc()
	m.originalSize.WithLabelValues(op).Add(float64(original))
	m.encodedSize.WithLabelValues(op).Add(float64(encoded))
	m.fileDuration.WithLabelValues(op).Observe(d.Seconds())
}

// IncFailures accounts single failed entry.
func (m *ArchiverMetrics) IncFailures(op string) {
	m.failures.WithLabelValues(op).Inc()
}

// SetWorkers sets number of workers of the operation.
func (m *ArchiverMetrics) SetWorkers(op string, n int) {
	m.workers.WithLabelValues(op).Set(float64(n))
}

// Registry returns registry of all collectors.
func (m *ArchiverMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteToTextfile writes all collected metrics to the file in the text
// exposition format, e.g. for node_exporter's textfile collector.
func (m *ArchiverMetrics) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
