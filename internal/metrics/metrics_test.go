package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordWorkerLifecycle_IncrementsCounters(t *testing.T) {
	before := testutil.ToFloat64(workerAttemptsTotal.WithLabelValues("intake-worker"))
	RecordWorkerAttempt("intake-worker")
	require.Equal(t, before+1, testutil.ToFloat64(workerAttemptsTotal.WithLabelValues("intake-worker")))

	RecordWorkerSuccess("intake-worker", 0.25)
	require.Equal(t, float64(1), testutil.ToFloat64(workerSuccessTotal.WithLabelValues("intake-worker")))

	RecordWorkerRetry("intake-worker")
	require.Equal(t, float64(1), testutil.ToFloat64(workerRetryTotal.WithLabelValues("intake-worker")))

	RecordWorkerDLQ("intake-worker")
	require.Equal(t, float64(1), testutil.ToFloat64(workerDLQTotal.WithLabelValues("intake-worker")))
}

func TestRecordExtractionConfidence_ObservesHistogram(t *testing.T) {
	before := testutil.CollectAndCount(extractionConfidence)
	RecordExtractionConfidence("deterministic", 1.0)
	RecordExtractionConfidence("ai", 0.82)
	require.Equal(t, before+2, testutil.CollectAndCount(extractionConfidence))
}

func TestSetRemittancePayoutAmount_SetsGauge(t *testing.T) {
	SetRemittancePayoutAmount("investor-1", 123456)
	require.Equal(t, float64(123456), testutil.ToFloat64(remittancePayoutAmount.WithLabelValues("investor-1")))
}

func TestRecordExport_IncrementsByOutcome(t *testing.T) {
	RecordExport("fannie_mae", "succeeded")
	require.Equal(t, float64(1), testutil.ToFloat64(exportTotal.WithLabelValues("fannie_mae", "succeeded")))
}

func TestRecordVendorCall_ObservesHistogram(t *testing.T) {
	RecordVendorCall("HOI", "success", 0.1)
	RecordVendorCall("HOI", "cache_hit", 0)
}

func TestSetVendorDegraded_TogglesGauge(t *testing.T) {
	SetVendorDegraded("FLOOD", true)
	require.Equal(t, float64(1), testutil.ToFloat64(vendorDegradedGauge.WithLabelValues("FLOOD")))
	SetVendorDegraded("FLOOD", false)
	require.Equal(t, float64(0), testutil.ToFloat64(vendorDegradedGauge.WithLabelValues("FLOOD")))
}

func TestHandler_ServesPrometheusExposition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/metrics", Handler())

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "loanserve_worker_attempts_total")
}
