package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newWalletServer fakes the wallet provider's token, create and capture endpoints.
func newWalletServer(t *testing.T, captureStatus string, tokenCalls *int32) *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(tokenCalls, 1)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		_, _ = w.Write([]byte(`{"access_token":"tok-1","expires_in":3600}`))
	})

	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		var payload walletOrderPayload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		if !assert.Len(t, payload.PurchaseUnits, 1) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		unit := payload.PurchaseUnits[0]
		assert.Equal(t, "CAPTURE", payload.Intent)
		assert.Equal(t, "order-123", unit.ReferenceID)
		assert.Equal(t, "129.70", unit.Amount.Value)
		assert.Equal(t, "119.80", unit.Amount.Breakdown.ItemTotal.Value)
		assert.Equal(t, "9.90", unit.Amount.Breakdown.Shipping.Value)
		assert.Equal(t, "EUR", unit.Amount.CurrencyCode)
		if assert.Len(t, unit.Items, 1) {
			assert.Equal(t, "2", unit.Items[0].Quantity)
		}

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"WALLET-1","status":"CREATED","links":[{"href":"https://wallet.example.com/approve/WALLET-1","rel":"approve"}]}`))
	})

	mux.HandleFunc("/v2/checkout/orders/WALLET-1/capture", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"WALLET-1","status":"` + captureStatus + `","purchase_units":[{"payments":{"captures":[{"id":"CAP-9","status":"COMPLETED"}]}}]}`))
	})

	mux.HandleFunc("/v2/checkout/orders/WALLET-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"id":"WALLET-1","status":"` + captureStatus + `","purchase_units":[{"payments":{"captures":[{"id":"CAP-9","status":"COMPLETED"}]}}]}`))
	})

	mux.HandleFunc("/v2/checkout/orders/UNKNOWN/capture", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","message":"Order not approved"}`))
	})

	return httptest.NewServer(mux)
}

func TestWalletClient_CreateAndCapture(t *testing.T) {
	var tokenCalls int32
	server := newWalletServer(t, "COMPLETED", &tokenCalls)
	defer server.Close()

	client := NewWalletClient(server.URL, "client-id", "client-secret", 5*time.Second, zerolog.Nop())
	ctx := context.Background()

	order, err := client.CreateOrder(ctx, WalletOrderRequest{
		ReferenceID: "order-123",
		Items:       []LineItem{{Name: "Linen Shirt", Quantity: 2, UnitPrice: decimal.RequireFromString("59.90")}},
		Subtotal:    decimal.RequireFromString("119.80"),
		Shipping:    decimal.RequireFromString("9.90"),
	})
	require.NoError(t, err)
	assert.Equal(t, "WALLET-1", order.ID)
	assert.Equal(t, "CREATED", order.Status)
	assert.Equal(t, "https://wallet.example.com/approve/WALLET-1", order.ApproveURL)

	capture, err := client.Capture(ctx, "WALLET-1")
	require.NoError(t, err)
	assert.Equal(t, "CAP-9", capture.ID)
	assert.Equal(t, "WALLET-1", capture.OrderID)

	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls), "token should be cached between calls")
}

func TestWalletClient_GetOrder(t *testing.T) {
	tests := []struct {
		name         string
		status       string
		wantCaptured bool
	}{
		{name: "Already captured", status: "COMPLETED", wantCaptured: true},
		{name: "Still approved", status: "APPROVED", wantCaptured: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tokenCalls int32
			server := newWalletServer(t, tt.status, &tokenCalls)
			defer server.Close()

			client := NewWalletClient(server.URL, "client-id", "client-secret", 5*time.Second, zerolog.Nop())

			order, err := client.GetOrder(context.Background(), "WALLET-1")

			require.NoError(t, err)
			assert.Equal(t, "WALLET-1", order.ID)
			assert.Equal(t, tt.status, order.Status)
			assert.Equal(t, "CAP-9", order.CaptureID)
			assert.Equal(t, tt.wantCaptured, order.IsCaptured())
		})
	}
}

func TestWalletClient_TokenRefresh(t *testing.T) {
	var tokenCalls int32
	server := newWalletServer(t, "COMPLETED", &tokenCalls)
	defer server.Close()

	client := NewWalletClient(server.URL, "client-id", "client-secret", 5*time.Second, zerolog.Nop()).(*walletClient)
	now := time.Now()
	client.now = func() time.Time { return now }

	_, err := client.token(context.Background())
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = client.token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&tokenCalls))
}

func TestWalletClient_Capture_Errors(t *testing.T) {
	tests := []struct {
		name          string
		captureStatus string
		orderID       string
		wantStatus    int
		wantMsg       string
	}{
		{name: "Provider rejects capture", captureStatus: "COMPLETED", orderID: "UNKNOWN", wantStatus: http.StatusUnprocessableEntity, wantMsg: "Order not approved"},
		{name: "Capture not completed", captureStatus: "PENDING", orderID: "WALLET-1", wantMsg: "capture status PENDING"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tokenCalls int32
			server := newWalletServer(t, tt.captureStatus, &tokenCalls)
			defer server.Close()

			client := NewWalletClient(server.URL, "client-id", "client-secret", 5*time.Second, zerolog.Nop())

			capture, err := client.Capture(context.Background(), tt.orderID)

			require.Error(t, err)
			assert.Nil(t, capture)
			var perr *ProviderError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, ProviderWallet, perr.Provider)
			assert.Equal(t, tt.wantStatus, perr.StatusCode)
			assert.Contains(t, perr.Message, tt.wantMsg)
		})
	}
}

func TestWalletClient_TokenRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"Client Authentication failed"}`))
	}))
	defer server.Close()

	client := NewWalletClient(server.URL, "bad", "bad", 5*time.Second, zerolog.Nop())

	_, err := client.CreateOrder(context.Background(), WalletOrderRequest{ReferenceID: "x"})

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusUnauthorized, perr.StatusCode)
	assert.Equal(t, "Client Authentication failed", perr.Message)
}
