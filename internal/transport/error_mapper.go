package transport

import (
	"context"
	"errors"
	"net/http"

	"github.com/SARVESHVARADKAR123/marketchat/internal/domain"
	"github.com/SARVESHVARADKAR123/marketchat/internal/observability"
	"github.com/SARVESHVARADKAR123/marketchat/internal/repository"
	"go.uber.org/zap"
)

// Error writes the HTTP rendition of err.
func Error(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrEmptyContent),
		errors.Is(err, domain.ErrSelfMessage),
		errors.Is(err, domain.ErrMessageTooLarge):
		WriteError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, repository.ErrUnavailable):
		observability.Log.Warn("store_unavailable", zap.Error(err))
		WriteError(w, http.StatusServiceUnavailable, "unavailable", "service temporarily unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		WriteError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		observability.Log.Error("internal_error", zap.Error(err))
		WriteError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
	}
}
