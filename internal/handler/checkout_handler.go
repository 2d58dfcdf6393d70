package handler

import (
	"net/http"

	"atelier-checkout/internal/middleware"
	"atelier-checkout/internal/model"
	"atelier-checkout/internal/service"

	"github.com/rs/zerolog"
)

// CheckoutHandler handles checkout HTTP requests for both payment providers.
type CheckoutHandler struct {
	service service.CheckoutService
	logger  zerolog.Logger
}

// NewCheckoutHandler creates a new checkout handler.
func NewCheckoutHandler(service service.CheckoutService, logger zerolog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: service,
		logger:  logger.With().Str("handler", "checkout").Logger(),
	}
}

// CreateHosted handles POST /api/checkout/hosted requests.
func (h *CheckoutHandler) CreateHosted(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readCheckoutRequest(w, r)
	if !ok {
		return
	}

	resp, err := h.service.CreateHostedSession(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, "failed to create checkout session", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateWallet handles POST /api/checkout/wallet requests.
func (h *CheckoutHandler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readCheckoutRequest(w, r)
	if !ok {
		return
	}

	resp, err := h.service.CreateWalletOrder(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, "failed to create wallet order", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// CaptureWallet handles POST /api/checkout/wallet/capture requests.
func (h *CheckoutHandler) CaptureWallet(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost, h.logger) {
		return
	}

	var req model.CaptureRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	resp, err := h.service.CaptureWalletOrder(r.Context(), req.ProviderOrderID)
	if err != nil {
		writeServiceError(w, err, "failed to capture wallet order", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// readCheckoutRequest decodes the cart payload and attaches the caller's
// account ID when a verified bearer token was presented.
func (h *CheckoutHandler) readCheckoutRequest(w http.ResponseWriter, r *http.Request) (*model.CheckoutRequest, bool) {
	if !requireMethod(w, r, http.MethodPost, h.logger) {
		return nil, false
	}

	var req model.CheckoutRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return nil, false
	}
	req.AccountID = middleware.AccountIDFromContext(r.Context())

	return &req, true
}
