package handler

import (
	"net/http"
	"strings"

	"atelier-checkout/internal/service"

	"github.com/rs/zerolog"
)

// InventoryHandler serves operator stock lookups.
type InventoryHandler struct {
	service service.InventoryService
	logger  zerolog.Logger
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(service service.InventoryService, logger zerolog.Logger) *InventoryHandler {
	return &InventoryHandler{
		service: service,
		logger:  logger.With().Str("handler", "inventory").Logger(),
	}
}

// GetProduct handles GET /api/admin/products/{id} requests.
func (h *InventoryHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet, h.logger) {
		return
	}

	productID := strings.TrimPrefix(r.URL.Path, "/api/admin/products/")
	product, err := h.service.GetProduct(r.Context(), productID)
	if err != nil {
		writeServiceError(w, err, "failed to retrieve product", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// GetVariantStock handles GET /api/admin/variants/{id}/movements requests.
func (h *InventoryHandler) GetVariantStock(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet, h.logger) {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/admin/variants/")
	variantID, found := strings.CutSuffix(rest, "/movements")
	if !found {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "not found", h.logger)
		return
	}

	stock, err := h.service.GetVariantStock(r.Context(), variantID)
	if err != nil {
		writeServiceError(w, err, "failed to retrieve variant stock", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, stock)
}
