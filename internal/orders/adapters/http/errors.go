package http

import (
	"errors"
	"net/http"

	"github.com/dejobratic/storefront/internal/orders/app"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// writeServiceError maps service errors onto status codes. Unknown errors are logged and hidden behind a 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var insufficient *domain.InsufficientStockError
	if errors.As(err, &insufficient) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":     err.Error(),
			"productId": insufficient.ProductID,
			"available": insufficient.Available,
			"requested": insufficient.Requested,
		})
		return
	}

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, status, "internal server error")
		return
	}

	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, ports.ErrInvalidSignature),
		errors.Is(err, ports.ErrPaymentNotCompleted):
		return http.StatusBadRequest
	case errors.Is(err, ports.ErrNotFound),
		errors.Is(err, ports.ErrCartNotFound),
		errors.Is(err, ports.ErrProductNotFound),
		errors.Is(err, app.ErrCartItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, ports.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, app.ErrPaymentsUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
