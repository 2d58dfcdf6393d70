package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"atelier-checkout/internal/model"
	"atelier-checkout/internal/payment"

	"github.com/rs/zerolog"
)

// maxBodyBytes bounds request bodies read by the handlers.
const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes an error response with the given status code, code and message.
func writeError(w http.ResponseWriter, status int, code, message string, logger zerolog.Logger) {
	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Str("error", message).Str("code", code).Int("status", status).Msg("handler error")
	writeJSON(w, status, model.ErrorResponse{Error: code, Message: message})
}

// writeServiceError maps a service error onto an HTTP response. Unknown errors
// become a 500 with fallback as the message.
func writeServiceError(w http.ResponseWriter, err error, fallback string, logger zerolog.Logger) {
	var providerErr *payment.ProviderError
	if errors.As(err, &providerErr) {
		logger.Error().Err(err).Msg("payment provider error")
		writeJSON(w, http.StatusBadGateway, model.ErrorResponse{
			Error:   model.ErrCodePaymentProvider,
			Message: providerErr.Message,
		})
		return
	}

	if de, ok := model.AsDomainError(err); ok {
		writeError(w, statusForCode(de.Code), de.Code, de.Message, logger)
		return
	}

	logger.Error().Err(err).Msg(fallback)
	writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{
		Error:   model.ErrCodeInternalError,
		Message: fallback,
	})
}

func statusForCode(code string) int {
	switch code {
	case model.ErrCodeOrderNotFound, model.ErrCodeProductNotFound, model.ErrCodeVariantNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidTransition, model.ErrCodeStatusConflict, model.ErrCodeAlreadyReconciled,
		model.ErrCodePaidAfterCancel:
		return http.StatusConflict
	case model.ErrCodeInvalidSignature, model.ErrCodeUnauthorised:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeInternalError, model.ErrCodeNotificationFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// decodeJSON reads a JSON body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, logger zerolog.Logger) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", logger)
		return false
	}
	return true
}

// requireMethod writes a 405 unless r uses method.
func requireMethod(w http.ResponseWriter, r *http.Request, method string, logger zerolog.Logger) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", logger)
		return false
	}
	return true
}
