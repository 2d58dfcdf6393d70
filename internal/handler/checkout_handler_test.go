package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"atelier-checkout/internal/middleware"
	"atelier-checkout/internal/model"
	"atelier-checkout/internal/payment"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const checkoutBody = `{
	"items": [{"productId": "P001", "variantId": "V001-M", "name": "Linen Shirt", "size": "M", "color": "Black", "quantity": 2, "price": "59.90"}],
	"shippingAddress": {"name": "Léa Martin", "email": "lea@example.com", "line1": "12 rue de Rivoli", "city": "Paris", "postalCode": "75004", "country": "FR"}
}`

func decodeError(t *testing.T, w *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()
	var resp model.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestCheckoutHandler_CreateHosted(t *testing.T) {
	logger := zerolog.Nop()
	orderID := uuid.New()

	tests := []struct {
		name           string
		method         string
		body           string
		mockReturn     *model.HostedCheckoutResponse
		mockError      error
		expectedStatus int
		expectedCode   string
		expectService  bool
	}{
		{
			name:   "Success",
			method: http.MethodPost,
			body:   checkoutBody,
			mockReturn: &model.HostedCheckoutResponse{
				SessionID: "cs_123", RedirectURL: "https://pay.example/cs_123", OrderNumber: "ATL-2025-000001", OrderID: orderID,
			},
			expectedStatus: http.StatusOK,
			expectService:  true,
		},
		{
			name:           "Empty cart",
			method:         http.MethodPost,
			body:           `{"items": []}`,
			mockError:      model.ErrEmptyCart,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeEmptyCart,
			expectService:  true,
		},
		{
			name:           "Unsupported country",
			method:         http.MethodPost,
			body:           checkoutBody,
			mockError:      model.ErrUnsupportedCountry,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeUnsupportedCountry,
			expectService:  true,
		},
		{
			name:           "Provider failure",
			method:         http.MethodPost,
			body:           checkoutBody,
			mockError:      &payment.ProviderError{Provider: payment.ProviderHosted, StatusCode: 400, Message: "invalid line item"},
			expectedStatus: http.StatusBadGateway,
			expectedCode:   model.ErrCodePaymentProvider,
			expectService:  true,
		},
		{
			name:           "Storage failure",
			method:         http.MethodPost,
			body:           checkoutBody,
			mockError:      errors.New("failed to create order: connection refused"),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   model.ErrCodeInternalError,
			expectService:  true,
		},
		{
			name:           "Invalid JSON",
			method:         http.MethodPost,
			body:           `{"items": [`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeInvalidJSON,
		},
		{
			name:           "Wrong method",
			method:         http.MethodGet,
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockCheckoutService)
			if tt.expectService {
				svc.On("CreateHostedSession", mock.Anything, mock.AnythingOfType("*model.CheckoutRequest")).Return(tt.mockReturn, tt.mockError)
			}

			req := httptest.NewRequest(tt.method, "/api/checkout/hosted", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()

			NewCheckoutHandler(svc, logger).CreateHosted(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			if tt.expectService {
				svc.AssertExpectations(t)
			} else {
				svc.AssertNotCalled(t, "CreateHostedSession", mock.Anything, mock.Anything)
			}

			if tt.expectedStatus == http.StatusOK {
				var resp model.HostedCheckoutResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				assert.Equal(t, "cs_123", resp.SessionID)
				assert.Equal(t, orderID, resp.OrderID)
			} else if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, decodeError(t, w).Error)
			}
		})
	}
}

func TestCheckoutHandler_CreateHosted_DecodesCart(t *testing.T) {
	svc := new(MockCheckoutService)
	var got *model.CheckoutRequest
	svc.On("CreateHostedSession", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(*model.CheckoutRequest) }).
		Return(&model.HostedCheckoutResponse{SessionID: "cs_1"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/checkout/hosted", bytes.NewBufferString(checkoutBody))
	w := httptest.NewRecorder()

	NewCheckoutHandler(svc, zerolog.Nop()).CreateHosted(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "V001-M", *got.Items[0].VariantID)
	assert.Equal(t, "59.9", got.Items[0].Price.String())
	assert.Equal(t, "FR", got.ShippingAddress.Country)
	assert.Nil(t, got.AccountID)
}

func TestCheckoutHandler_CreateWallet_AttachesAccount(t *testing.T) {
	svc := new(MockCheckoutService)
	svc.On("CreateWalletOrder", mock.Anything, mock.MatchedBy(func(req *model.CheckoutRequest) bool {
		return req.AccountID != nil && *req.AccountID == "acct_42"
	})).Return(&model.WalletOrderResponse{ProviderOrderID: "WLT-1", OrderNumber: "ATL-2025-000002"}, nil)

	// A client-supplied accountId is ignored; only the token counts.
	body := `{"accountId": "acct_evil", "items": [{"productId": "P002", "name": "Canvas Tote", "quantity": 1, "price": "25"}],
		"shippingAddress": {"email": "lea@example.com", "line1": "12 rue de Rivoli", "country": "FR"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/checkout/wallet", bytes.NewBufferString(body))
	req = req.WithContext(middleware.WithAccountID(req.Context(), "acct_42"))
	w := httptest.NewRecorder()

	NewCheckoutHandler(svc, zerolog.Nop()).CreateWallet(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "WLT-1", resp["orderID"])
	svc.AssertExpectations(t)
}

func TestCheckoutHandler_CreateWallet_CartTooLarge(t *testing.T) {
	svc := new(MockCheckoutService)
	svc.On("CreateWalletOrder", mock.Anything, mock.Anything).Return(nil, model.ErrCartTooLarge)

	req := httptest.NewRequest(http.MethodPost, "/api/checkout/wallet", bytes.NewBufferString(checkoutBody))
	w := httptest.NewRecorder()

	NewCheckoutHandler(svc, zerolog.Nop()).CreateWallet(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, model.ErrCodeCartTooLarge, decodeError(t, w).Error)
}

func TestCheckoutHandler_CaptureWallet(t *testing.T) {
	logger := zerolog.Nop()

	tests := []struct {
		name           string
		body           string
		mockReturn     *model.CaptureResponse
		mockError      error
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "Success",
			body: `{"providerOrderId": "WLT-1"}`,
			mockReturn: &model.CaptureResponse{
				Success: true, CaptureID: "CAP-1", OrderNumber: "ATL-2025-000002", Status: model.OrderStatusPaid,
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "Email failure is still a 200",
			body: `{"providerOrderId": "WLT-1"}`,
			mockReturn: &model.CaptureResponse{
				Success: false, CaptureID: "CAP-1", Status: model.OrderStatusPaid, Message: "payment captured but confirmation email failed",
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Unknown order",
			body:           `{"providerOrderId": "WLT-X"}`,
			mockError:      model.ErrOrderNotFound,
			expectedStatus: http.StatusNotFound,
			expectedCode:   model.ErrCodeOrderNotFound,
		},
		{
			name:           "Closed order",
			body:           `{"providerOrderId": "WLT-1"}`,
			mockError:      model.ErrInvalidTransition,
			expectedStatus: http.StatusConflict,
			expectedCode:   model.ErrCodeInvalidTransition,
		},
		{
			name:           "Declined",
			body:           `{"providerOrderId": "WLT-1"}`,
			mockError:      &payment.ProviderError{Provider: payment.ProviderWallet, StatusCode: 422, Message: "INSTRUMENT_DECLINED"},
			expectedStatus: http.StatusBadGateway,
			expectedCode:   model.ErrCodePaymentProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockCheckoutService)
			svc.On("CaptureWalletOrder", mock.Anything, mock.AnythingOfType("string")).Return(tt.mockReturn, tt.mockError)

			req := httptest.NewRequest(http.MethodPost, "/api/checkout/wallet/capture", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()

			NewCheckoutHandler(svc, logger).CaptureWallet(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.mockReturn != nil {
				var resp model.CaptureResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				assert.Equal(t, *tt.mockReturn, resp)
			} else {
				assert.Equal(t, tt.expectedCode, decodeError(t, w).Error)
			}
		})
	}
}
