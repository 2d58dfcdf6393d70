package handler

import (
	"io"
	"net/http"

	"atelier-checkout/internal/model"
	"atelier-checkout/internal/payment"
	"atelier-checkout/internal/service"

	"github.com/rs/zerolog"
)

// WebhookHandler receives payment provider webhooks.
type WebhookHandler struct {
	service service.CheckoutService
	logger  zerolog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(service service.CheckoutService, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		logger:  logger.With().Str("handler", "webhook").Logger(),
	}
}

// Hosted handles POST /api/webhooks/hosted requests. The raw body is passed
// through untouched because the signature covers its exact bytes.
func (h *WebhookHandler) Hosted(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost, h.logger) {
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "failed to read request body", h.logger)
		return
	}

	if err := h.service.HandleHostedWebhook(r.Context(), payload, r.Header.Get(payment.SignatureHeader)); err != nil {
		writeServiceError(w, err, "failed to process webhook", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
