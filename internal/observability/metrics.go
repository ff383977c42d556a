// Package observability holds the Prometheus collectors shared by the monitor and the uploader.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/csgen/Airi/internal/domain"
)

var (
	recordsSealed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "airi",
		Subsystem: "segmenter",
		Name:      "records_sealed_total",
		Help:      "Intervals sealed by the segmenter, labeled by whether they were emitted or discarded as too short.",
	}, []string{"result"})

	focusChanges = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "airi",
		Subsystem: "segmenter",
		Name:      "focus_changes_total",
		Help:      "Foreground application changes observed.",
	})

	recordsFlushed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "airi",
		Subsystem: "recorder",
		Name:      "records_flushed_total",
		Help:      "Records appended to local activity files.",
	})

	flushFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "airi",
		Subsystem: "recorder",
		Name:      "flush_failures_total",
		Help:      "Flushes that failed and kept their buffer for the next attempt.",
	})

	uploadOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "airi",
		Subsystem: "upload",
		Name:      "records_total",
		Help:      "Records submitted to the durable store, labeled by outcome.",
	}, []string{"outcome"})

	uploadAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "airi",
		Subsystem: "upload",
		Name:      "attempts_total",
		Help:      "Insert attempts made against the durable store, including retries.",
	})

	fileErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "airi",
		Subsystem: "upload",
		Name:      "file_errors_total",
		Help:      "Activity files that could not be read and were skipped for the pass.",
	})

	passDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "airi",
		Subsystem: "upload",
		Name:      "pass_duration_seconds",
		Help:      "Time spent uploading every local activity file once.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	lastPassGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "airi",
		Subsystem: "scheduler",
		Name:      "last_pass_timestamp_seconds",
		Help:      "Unix timestamp of the most recently completed upload pass.",
	})

	nextPassGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "airi",
		Subsystem: "scheduler",
		Name:      "next_pass_timestamp_seconds",
		Help:      "Unix timestamp the recurring upload is waiting for.",
	})
)

func init() {
	prometheus.MustRegister(recordsSealed, focusChanges, recordsFlushed, flushFailures,
		uploadOutcomes, uploadAttempts, fileErrors, passDuration, lastPassGauge, nextPassGauge)
}

// RecordFocusChange counts a foreground switch.
func RecordFocusChange() {
	focusChanges.Inc()
}

// RecordSealed counts a sealed interval.
func RecordSealed(emitted bool) {
	if emitted {
		recordsSealed.WithLabelValues("emitted").Inc()
		return
	}
	recordsSealed.WithLabelValues("discarded").Inc()
}

// RecordFlush counts records written by one successful flush.
func RecordFlush(records int) {
	recordsFlushed.Add(float64(records))
}

// RecordFlushFailure counts a failed flush.
func RecordFlushFailure() {
	flushFailures.Inc()
}

// RecordAttempt counts one insert attempt.
func RecordAttempt() {
	uploadAttempts.Inc()
}

// RecordOutcome counts one record outcome.
func RecordOutcome(o domain.Outcome) {
	uploadOutcomes.WithLabelValues(o.String()).Inc()
}

// RecordFileError counts an unreadable activity file.
func RecordFileError() {
	fileErrors.Inc()
}

// RecordPass observes a completed pass.
func RecordPass(started, finished time.Time) {
	passDuration.Observe(finished.Sub(started).Seconds())
	lastPassGauge.Set(float64(finished.Unix()))
}

// RecordNextPass publishes the next scheduled pass time.
func RecordNextPass(ts time.Time) {
	if ts.IsZero() {
		return
	}
	nextPassGauge.Set(float64(ts.Unix()))
}
