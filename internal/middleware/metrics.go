package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atelier_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "atelier_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	orderOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atelier_order_operations_total",
			Help: "Total number of order operations",
		},
		[]string{"operation", "status"},
	)

	notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atelier_notifications_total",
			Help: "Total number of notification emails by kind",
		},
		[]string{"kind", "status"},
	)

	stockDecrements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atelier_stock_decrements_total",
			Help: "Total number of line item stock decrements",
		},
		[]string{"result"},
	)

	paymentAnomalies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atelier_payment_anomalies_total",
			Help: "Total number of payments that could not be applied to their order",
		},
		[]string{"kind"},
	)
)

// Metrics collects request counts and latencies.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		path := metricPath(r.URL.Path)
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// metricPath replaces UUID segments with a placeholder to bound label cardinality.
func metricPath(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if _, err := uuid.Parse(s); err == nil {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordOrderOperation records the outcome of an order operation.
func RecordOrderOperation(operation string, success bool) {
	orderOperations.WithLabelValues(operation, statusLabel(success)).Inc()
}

// RecordNotification records the outcome of a notification email.
func RecordNotification(kind string, success bool) {
	notifications.WithLabelValues(kind, statusLabel(success)).Inc()
}

// RecordStockDecrements records per-item stock decrement results.
func RecordStockDecrements(succeeded, failed int) {
	stockDecrements.WithLabelValues("success").Add(float64(succeeded))
	stockDecrements.WithLabelValues("error").Add(float64(failed))
}

// RecordPaymentAnomaly records a payment that arrived for an order which can
// no longer take it.
func RecordPaymentAnomaly(kind string) {
	paymentAnomalies.WithLabelValues(kind).Inc()
}
