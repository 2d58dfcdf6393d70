package handler

import (
	"net/http"
	"time"

	"atelier-checkout/internal/service"
	"atelier-checkout/internal/shipping"

	"github.com/rs/zerolog"
)

// ShippingHandler serves shipping quotes.
type ShippingHandler struct {
	quoter service.ShippingQuoter
	now    func() time.Time
	logger zerolog.Logger
}

// NewShippingHandler creates a new shipping handler.
func NewShippingHandler(quoter service.ShippingQuoter, logger zerolog.Logger) *ShippingHandler {
	return &ShippingHandler{
		quoter: quoter,
		now:    time.Now,
		logger: logger.With().Str("handler", "shipping").Logger(),
	}
}

// Quote handles POST /api/shipping/quote requests.
func (h *ShippingHandler) Quote(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost, h.logger) {
		return
	}

	var req shipping.QuoteRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if req.Method == "" {
		req.Method = shipping.DefaultMethod
	}

	quote, err := h.quoter.Quote(req, h.now())
	if err != nil {
		writeServiceError(w, err, "failed to quote shipping", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, quote)
}
