package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/orders/5f1b6c3e-8f0a-4a8b-9a57-2f2a1b3c4d5e", "/api/orders/{id}"},
		{"/api/admin/orders/5f1b6c3e-8f0a-4a8b-9a57-2f2a1b3c4d5e/status", "/api/admin/orders/{id}/status"},
		{"/api/shipping/quote", "/api/shipping/quote"},
		{"/", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, metricPath(tt.path))
		})
	}
}

func TestMetrics(t *testing.T) {
	handler := Metrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/metrics-test", "418")
	before := testutil.ToFloat64(counter)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/metrics-test", nil))

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestRecordHelpers(t *testing.T) {
	opSuccess := orderOperations.WithLabelValues("metrics_test", "success")
	opError := orderOperations.WithLabelValues("metrics_test", "error")
	beforeSuccess, beforeError := testutil.ToFloat64(opSuccess), testutil.ToFloat64(opError)

	RecordOrderOperation("metrics_test", true)
	RecordOrderOperation("metrics_test", false)
	RecordOrderOperation("metrics_test", false)

	assert.Equal(t, beforeSuccess+1, testutil.ToFloat64(opSuccess))
	assert.Equal(t, beforeError+2, testutil.ToFloat64(opError))

	sent := notifications.WithLabelValues("metrics_test", "success")
	beforeSent := testutil.ToFloat64(sent)
	RecordNotification("metrics_test", true)
	assert.Equal(t, beforeSent+1, testutil.ToFloat64(sent))

	decremented := stockDecrements.WithLabelValues("success")
	skipped := stockDecrements.WithLabelValues("error")
	beforeDecremented, beforeSkipped := testutil.ToFloat64(decremented), testutil.ToFloat64(skipped)
	RecordStockDecrements(3, 1)
	assert.Equal(t, beforeDecremented+3, testutil.ToFloat64(decremented))
	assert.Equal(t, beforeSkipped+1, testutil.ToFloat64(skipped))

	anomaly := paymentAnomalies.WithLabelValues("paid_after_cancel")
	beforeAnomaly := testutil.ToFloat64(anomaly)
	RecordPaymentAnomaly("paid_after_cancel")
	assert.Equal(t, beforeAnomaly+1, testutil.ToFloat64(anomaly))
}
