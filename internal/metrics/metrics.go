// Package metrics exposes Prometheus instrumentation for the pipeline:
// worker runtime attempts/success/retry/DLQ (§4.1), extraction confidence
// (§4.2/§4.3), remittance payouts (§4.8), export success/failure (§4.9),
// and vendor call latency (§4.10). internal/ops serves these at /metrics
// alongside the operator console.
//
// Grounded on the registry handler's package-level promauto vars plus
// Record*/Set* accessor functions, generalized from agent/ledger/webhook
// counters to this system's worker/extraction/remittance/export/vendor
// concerns.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	workerAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loanserve_worker_attempts_total",
		Help: "Total work item execution attempts by worker name.",
	}, []string{"worker"})

	workerSuccessTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loanserve_worker_success_total",
		Help: "Total work item executions that completed successfully, by worker name.",
	}, []string{"worker"})

	workerRetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loanserve_worker_retry_total",
		Help: "Total work item executions scheduled for retry, by worker name.",
	}, []string{"worker"})

	workerDLQTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loanserve_worker_dlq_total",
		Help: "Total work items dead-lettered, by worker name.",
	}, []string{"worker"})

	workerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "loanserve_worker_duration_seconds",
		Help:    "Work item execution duration in seconds, by worker name.",
		Buckets: prometheus.DefBuckets,
	}, []string{"worker"})

	extractionConfidence = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "loanserve_extraction_confidence",
		Help:    "Per-field extraction confidence, by extraction method (deterministic, ai, ocr).",
		Buckets: []float64{0.1, 0.25, 0.5, 0.6, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 0.99, 1.0},
	}, []string{"method"})

	remittancePayoutAmount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "loanserve_remittance_payout_amount_cents",
		Help: "Most recent remittance payout amount in cents, by investor.",
	}, []string{"investor_id"})

	remittancePayoutTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loanserve_remittance_payout_total",
		Help: "Total remittance payouts by terminal status (sent, failed).",
	}, []string{"status"})

	exportTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loanserve_export_total",
		Help: "Total export runs by template and outcome (succeeded, failed).",
	}, []string{"template", "outcome"})

	vendorCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "loanserve_vendor_call_duration_seconds",
		Help:    "Vendor API call duration in seconds, by vendor and outcome.",
		Buckets: prometheus.DefBuckets,
	}, []string{"vendor", "outcome"})

	vendorDegradedGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "loanserve_vendor_degraded",
		Help: "1 if a vendor is currently flagged degraded by health probing, else 0.",
	}, []string{"vendor"})
)

// RecordWorkerAttempt records one execution attempt for worker.
func RecordWorkerAttempt(worker string) {
	workerAttemptsTotal.WithLabelValues(worker).Inc()
}

// RecordWorkerSuccess records one successful execution for worker, along
// with its wall-clock duration.
func RecordWorkerSuccess(worker string, seconds float64) {
	workerSuccessTotal.WithLabelValues(worker).Inc()
	workerDuration.WithLabelValues(worker).Observe(seconds)
}

// RecordWorkerRetry records that worker scheduled a retry.
func RecordWorkerRetry(worker string) {
	workerRetryTotal.WithLabelValues(worker).Inc()
}

// RecordWorkerDLQ records that worker dead-lettered a work item.
func RecordWorkerDLQ(worker string) {
	workerDLQTotal.WithLabelValues(worker).Inc()
}

// RecordExtractionConfidence records one field's extraction confidence
// for the given method ("deterministic", "ai", or "ocr").
func RecordExtractionConfidence(method string, confidence float64) {
	extractionConfidence.WithLabelValues(method).Observe(confidence)
}

// SetRemittancePayoutAmount sets the gauge for the most recent payout to
// investorID, in cents.
func SetRemittancePayoutAmount(investorID string, cents int64) {
	remittancePayoutAmount.WithLabelValues(investorID).Set(float64(cents))
}

// RecordRemittancePayout records a terminal payout outcome ("sent" or
// "failed").
func RecordRemittancePayout(status string) {
	remittancePayoutTotal.WithLabelValues(status).Inc()
}

// RecordExport records one export run outcome ("succeeded" or "failed")
// for the given template.
func RecordExport(template, outcome string) {
	exportTotal.WithLabelValues(template, outcome).Inc()
}

// RecordVendorCall records a vendor call's duration and outcome ("success",
// "error", "cache_hit").
func RecordVendorCall(vendor, outcome string, seconds float64) {
	vendorCallDuration.WithLabelValues(vendor, outcome).Observe(seconds)
}

// SetVendorDegraded sets the degraded gauge for vendor.
func SetVendorDegraded(vendor string, degraded bool) {
	v := 0.0
	if degraded {
		v = 1.0
	}
	vendorDegradedGauge.WithLabelValues(vendor).Set(v)
}

// Handler returns a Gin handler serving the Prometheus text exposition
// format, mounted at GET /metrics by internal/ops.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
