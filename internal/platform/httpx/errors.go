// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"
)

// ErrValidation marks malformed client input.
var ErrValidation = errors.New("validation failed")

// RespondError maps domain errors to the JSON error envelope. Unclassified
// errors are logged and answered with a generic message.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		Error(w, http.StatusBadRequest, err.Error())
	default:
		if logger != nil {
			logger.Error("request failed", slog.Any("error", err))
		}
		Error(w, http.StatusInternalServerError, "Internal server error")
	}
}
