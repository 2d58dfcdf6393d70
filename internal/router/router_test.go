package router

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"atelier-checkout/internal/handler"
	"atelier-checkout/internal/middleware"
	"atelier-checkout/internal/model"
	"atelier-checkout/internal/shipping"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCheckout records which operation was routed to it.
type stubCheckout struct{ called string }

func (s *stubCheckout) CreateHostedSession(context.Context, *model.CheckoutRequest) (*model.HostedCheckoutResponse, error) {
	s.called = "hosted"
	return &model.HostedCheckoutResponse{SessionID: "cs_1"}, nil
}

func (s *stubCheckout) CreateWalletOrder(context.Context, *model.CheckoutRequest) (*model.WalletOrderResponse, error) {
	s.called = "wallet"
	return &model.WalletOrderResponse{ProviderOrderID: "WLT-1"}, nil
}

func (s *stubCheckout) CaptureWalletOrder(context.Context, string) (*model.CaptureResponse, error) {
	s.called = "capture"
	return &model.CaptureResponse{Success: true}, nil
}

func (s *stubCheckout) HandleHostedWebhook(context.Context, []byte, string) error {
	s.called = "webhook"
	return nil
}

type stubOrders struct{ called string }

func (s *stubOrders) GetByID(_ context.Context, id uuid.UUID) (*model.OrderResponse, error) {
	s.called = "get"
	return &model.OrderResponse{Order: model.Order{ID: id}}, nil
}

func (s *stubOrders) UpdateStatus(_ context.Context, id uuid.UUID, _ *model.StatusUpdateRequest) (*model.OrderResponse, error) {
	s.called = "status"
	return &model.OrderResponse{Order: model.Order{ID: id}}, nil
}

func (s *stubOrders) ExpireStale(context.Context) (int, error) { return 0, nil }

type stubInventory struct{ called string }

func (s *stubInventory) GetProduct(_ context.Context, id string) (*model.Product, error) {
	s.called = "product"
	return &model.Product{ID: id}, nil
}

func (s *stubInventory) GetVariantStock(_ context.Context, id string) (*model.VariantStockResponse, error) {
	s.called = "variant"
	return &model.VariantStockResponse{Variant: model.Variant{ID: id}}, nil
}

func newTestRouter(t *testing.T) (http.Handler, *stubCheckout, *stubOrders, *stubInventory) {
	t.Helper()
	logger := zerolog.Nop()
	checkout := &stubCheckout{}
	orders := &stubOrders{}
	inventory := &stubInventory{}
	calc, err := shipping.NewCalculator(shipping.DefaultTable())
	require.NoError(t, err)

	h := New(Handlers{
		Checkout:  handler.NewCheckoutHandler(checkout, logger),
		Webhook:   handler.NewWebhookHandler(checkout, logger),
		Shipping:  handler.NewShippingHandler(calc, logger),
		Order:     handler.NewOrderHandler(orders, logger),
		Inventory: handler.NewInventoryHandler(inventory, logger),
	}, Options{APIKey: "admin-key"}, logger)
	return h, checkout, orders, inventory
}

func TestRouter_Routes(t *testing.T) {
	id := uuid.New().String()

	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		apiKey         string
		expectedStatus int
		checkoutCall   string
		orderCall      string
		inventoryCall  string
	}{
		{name: "Health", method: http.MethodGet, path: "/health", expectedStatus: http.StatusOK},
		{name: "Metrics", method: http.MethodGet, path: "/metrics", expectedStatus: http.StatusOK},
		{name: "Hosted checkout", method: http.MethodPost, path: "/api/checkout/hosted", body: `{}`, expectedStatus: http.StatusOK, checkoutCall: "hosted"},
		{name: "Wallet checkout", method: http.MethodPost, path: "/api/checkout/wallet", body: `{}`, expectedStatus: http.StatusOK, checkoutCall: "wallet"},
		{name: "Wallet capture", method: http.MethodPost, path: "/api/checkout/wallet/capture", body: `{"providerOrderId":"WLT-1"}`, expectedStatus: http.StatusOK, checkoutCall: "capture"},
		{name: "Webhook", method: http.MethodPost, path: "/api/webhooks/hosted", body: `{}`, expectedStatus: http.StatusOK, checkoutCall: "webhook"},
		{name: "Shipping quote", method: http.MethodPost, path: "/api/shipping/quote", body: `{"country":"FR","cartTotal":"20"}`, expectedStatus: http.StatusOK},
		{name: "Order lookup", method: http.MethodGet, path: "/api/orders/" + id, expectedStatus: http.StatusOK, orderCall: "get"},
		{name: "Admin status without key", method: http.MethodPost, path: "/api/admin/orders/" + id + "/status", body: `{"status":"shipped"}`, expectedStatus: http.StatusUnauthorized},
		{name: "Admin status", method: http.MethodPost, path: "/api/admin/orders/" + id + "/status", body: `{"status":"shipped"}`, apiKey: "admin-key", expectedStatus: http.StatusOK, orderCall: "status"},
		{name: "Admin unknown", method: http.MethodPost, path: "/api/admin/orders/" + id, apiKey: "admin-key", expectedStatus: http.StatusNotFound},
		{name: "Admin product", method: http.MethodGet, path: "/api/admin/products/P001", apiKey: "admin-key", expectedStatus: http.StatusOK, inventoryCall: "product"},
		{name: "Admin variant movements", method: http.MethodGet, path: "/api/admin/variants/V001-M/movements", apiKey: "admin-key", expectedStatus: http.StatusOK, inventoryCall: "variant"},
		{name: "Admin product without key", method: http.MethodGet, path: "/api/admin/products/P001", expectedStatus: http.StatusUnauthorized},
		{name: "Unknown route", method: http.MethodGet, path: "/api/products", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, checkout, orders, inventory := newTestRouter(t)

			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			if tt.apiKey != "" {
				req.Header.Set("X-API-Key", tt.apiKey)
			}
			w := httptest.NewRecorder()

			h.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
			assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.checkoutCall, checkout.called)
			assert.Equal(t, tt.orderCall, orders.called)
			assert.Equal(t, tt.inventoryCall, inventory.called)
		})
	}
}

func TestRouter_ShippingQuoteUsesTable(t *testing.T) {
	h, _, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/shipping/quote", bytes.NewBufferString(`{"method":"standard","country":"DE","cartTotal":"200"}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"zone":"EU"`)
	assert.Contains(t, w.Body.String(), `"isFree":true`)
}
