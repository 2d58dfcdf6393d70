package handler

import (
	"net/http"
	"strings"

	"atelier-checkout/internal/model"
	"atelier-checkout/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OrderHandler handles order-related HTTP requests.
type OrderHandler struct {
	service service.OrderService
	logger  zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(service service.OrderService, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  logger.With().Str("handler", "order").Logger(),
	}
}

// GetByID handles GET /api/orders/{id} requests.
func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet, h.logger) {
		return
	}

	orderID, ok := h.parseOrderID(w, strings.TrimPrefix(r.URL.Path, "/api/orders/"))
	if !ok {
		return
	}

	order, err := h.service.GetByID(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, err, "failed to retrieve order", h.logger)
		return
	}

	if order == nil {
		writeError(w, http.StatusNotFound, model.ErrCodeOrderNotFound, "order not found", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// UpdateStatus handles POST /api/admin/orders/{id}/status requests.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost, h.logger) {
		return
	}

	// Expecting path: /api/admin/orders/{id}/status
	rest := strings.TrimPrefix(r.URL.Path, "/api/admin/orders/")
	idStr, found := strings.CutSuffix(rest, "/status")
	if !found {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "not found", h.logger)
		return
	}

	orderID, ok := h.parseOrderID(w, idStr)
	if !ok {
		return
	}

	var req model.StatusUpdateRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), orderID, &req)
	if err != nil {
		writeServiceError(w, err, "failed to update order status", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) parseOrderID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	if raw == "" || strings.Contains(raw, "/") {
		writeError(w, http.StatusBadRequest, model.ErrCodeMissingField, "order ID is required", h.logger)
		return uuid.Nil, false
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeMissingField, "invalid order ID format", h.logger)
		return uuid.Nil, false
	}
	return id, true
}
