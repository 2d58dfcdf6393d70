package router

import (
	"net/http"
	"strings"

	"atelier-checkout/internal/handler"
	"atelier-checkout/internal/middleware"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers served by the router.
type Handlers struct {
	Checkout  *handler.CheckoutHandler
	Webhook   *handler.WebhookHandler
	Shipping  *handler.ShippingHandler
	Order     *handler.OrderHandler
	Inventory *handler.InventoryHandler
}

// Options configures authentication for the router.
type Options struct {
	APIKey        string
	JWTSecret     string
	AllowedOrigin string
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, opts Options, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint (no authentication required)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Checkout routes
	mux.HandleFunc("/api/checkout/hosted", h.Checkout.CreateHosted)
	mux.HandleFunc("/api/checkout/wallet", h.Checkout.CreateWallet)
	mux.HandleFunc("/api/checkout/wallet/capture", h.Checkout.CaptureWallet)

	mux.HandleFunc("/api/webhooks/hosted", h.Webhook.Hosted)
	mux.HandleFunc("/api/shipping/quote", h.Shipping.Quote)

	// Order routes
	mux.HandleFunc("/api/orders/", h.Order.GetByID)
	mux.HandleFunc(middleware.AdminPathPrefix+"orders/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/status") {
			h.Order.UpdateStatus(w, r)
			return
		}
		http.Error(w, "not found", http.StatusNotFound)
	})

	// Inventory routes
	mux.HandleFunc(middleware.AdminPathPrefix+"products/", h.Inventory.GetProduct)
	mux.HandleFunc(middleware.AdminPathPrefix+"variants/", h.Inventory.GetVariantStock)

	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "*"
	}

	// Apply middleware in order: RequestID -> Recovery -> Metrics -> Logging -> CORS -> APIKeyAuth -> OptionalAuth
	var handler http.Handler = mux
	handler = middleware.OptionalAuth(opts.JWTSecret, logger)(handler)
	handler = middleware.APIKeyAuth(opts.APIKey, logger)(handler)
	handler = middleware.CORS(opts.AllowedOrigin)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Metrics(handler)
	handler = middleware.Recovery(logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}
