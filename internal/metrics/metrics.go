// file: internal/metrics/metrics.go
// version: 2.0.0
// guid: 9f8e7d6c-5b4a-3210-9fed-cba876543210

package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "beat_organizer"

var (
	registerOnce sync.Once

	operationStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_started_total",
		Help:      "Total number of operations started by type",
	}, []string{"type"})
	operationCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_completed_total",
		Help:      "Total number of operations successfully completed by type",
	}, []string{"type"})
	operationFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_failed_total",
		Help:      "Total number of operations failed by type",
	}, []string{"type"})
	operationCanceled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_canceled_total",
		Help:      "Total number of operations canceled by type",
	}, []string{"type"})
	operationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Histogram of operation durations in seconds by type",
		Buckets:   prometheus.ExponentialBuckets(0.05, 1.6, 14),
	}, []string{"type"})

	filesAnalyzed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "files_analyzed_total",
		Help:      "Files processed by outcome (fingerprinted, cached, failed)",
	}, []string{"outcome"})
	fileFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "file_failures_total",
		Help:      "Per-file failures by kind",
	}, []string{"kind"})
	toolDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "external_tool_duration_seconds",
		Help:      "Duration of decode, loudness and probe calls by tool",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{"tool"})
	cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Analysis cache lookups by result (hit, miss, error)",
	}, []string{"result"})
	comparisons = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fingerprint_comparisons_total",
		Help:      "Candidate pairs compared by the clusterer",
	})

	groupsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "duplicate_groups",
		Help:      "Duplicate groups found by the last batch",
	})
	wastedBytesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "duplicate_wasted_bytes",
		Help:      "Bytes reclaimable by keeping one copy per group in the last batch",
	})
)

// Register initializes metrics with the global Prometheus registry (idempotent)
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(operationStarted, operationCompleted, operationFailed, operationCanceled, operationDuration,
			filesAnalyzed, fileFailures, toolDuration, cacheLookups, comparisons,
			groupsGauge, wastedBytesGauge)
	})
}

// Operation lifecycle helpers
func IncOperationStarted(opType string)   { operationStarted.WithLabelValues(opType).Inc() }
func IncOperationCompleted(opType string) { operationCompleted.WithLabelValues(opType).Inc() }
func IncOperationFailed(opType string)    { operationFailed.WithLabelValues(opType).Inc() }
func IncOperationCanceled(opType string)  { operationCanceled.WithLabelValues(opType).Inc() }
func ObserveOperationDuration(opType string, d time.Duration) {
	operationDuration.WithLabelValues(opType).Observe(d.Seconds())
}

// Analysis
func IncFileOutcome(outcome string) { filesAnalyzed.WithLabelValues(outcome).Inc() }
func IncFailure(kind string)        { fileFailures.WithLabelValues(kind).Inc() }
func IncCacheLookup(result string)  { cacheLookups.WithLabelValues(result).Inc() }
func AddComparisons(n int)          { comparisons.Add(float64(n)) }
func ObserveTool(tool string, d time.Duration) {
	toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// Gauges
func SetDuplicateGroups(n int) { groupsGauge.Set(float64(n)) }
func SetWastedBytes(b int64)   { wastedBytesGauge.Set(float64(b)) }

// WriteTextfile writes every registered metric to path in the text
// exposition format, for node_exporter's textfile collector.
func WriteTextfile(path string) error {
	Register()
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
