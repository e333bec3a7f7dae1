// Package metrics exposes transaction log activity to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	txErr "github.com/sajjad-MoBe/txlog/internal/errors"
	"github.com/sajjad-MoBe/txlog/internal/logentry"
	"github.com/sajjad-MoBe/txlog/internal/logfile"
)

const namespace = "txlog"

// Collector holds all Prometheus metrics
type Collector struct {
	// Decode metrics
	entriesRead  *prometheus.CounterVec
	absentReads  prometheus.Counter
	decodeErrors *prometheus.CounterVec
	bytesSkipped prometheus.Counter

	// Log file metrics
	bytesAppended prometheus.Counter
	rotations     prometheus.Counter

	// Recovery metrics
	recoveryDuration      prometheus.Histogram
	transactionsRecovered prometheus.Counter

	// Request metrics
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

var (
	_ logentry.Observer = (*Collector)(nil)
	_ logfile.Observer  = (*Collector)(nil)
)

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		entriesRead: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entries_read_total",
				Help:      "Total number of log entries decoded, by entry type",
			},
			[]string{"type"},
		),
		absentReads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "absent_reads_total",
				Help:      "Total number of reads that found no complete entry",
			},
		),
		decodeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decode_errors_total",
				Help:      "Total number of failed entry decodes, by error type",
			},
			[]string{"error_type"},
		),
		bytesSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_skipped_total",
				Help:      "Total number of undecodable bytes skipped",
			},
		),
		bytesAppended: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_appended_total",
				Help:      "Total number of bytes appended to the log",
			},
		),
		rotations: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rotations_total",
				Help:      "Total number of log file rotations",
			},
		),
		recoveryDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "recovery_duration_seconds",
				Help:      "Duration of log recovery in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		transactionsRecovered: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_recovered_total",
				Help:      "Total number of transactions replayed by recovery",
			},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
	}
}

func (c *Collector) EntryRead(code logentry.EntryTypeCode) {
	c.entriesRead.WithLabelValues(code.String()).Inc()
}

func (c *Collector) Absent() {
	c.absentReads.Inc()
}

func (c *Collector) DecodeFailed(errType txErr.ErrorType) {
	if errType == "" {
		errType = txErr.ErrorTypeInternal
	}
	c.decodeErrors.WithLabelValues(string(errType)).Inc()
}

func (c *Collector) BytesSkipped(n int64) {
	c.bytesSkipped.Add(float64(n))
}

func (c *Collector) Appended(bytes int64) {
	c.bytesAppended.Add(float64(bytes))
}

func (c *Collector) Rotated() {
	c.rotations.Inc()
}

// RecoveryFinished records a completed recovery run.
func (c *Collector) RecoveryFinished(duration time.Duration, transactions int) {
	c.recoveryDuration.Observe(duration.Seconds())
	c.transactionsRecovered.Add(float64(transactions))
}

// RecordRequest records an HTTP request
func (c *Collector) RecordRequest(method, path, status string, duration time.Duration) {
	c.requestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	c.requestTotal.WithLabelValues(method, path, status).Inc()
}
