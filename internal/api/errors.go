package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"ome/internal/common"
	"ome/internal/engine"
)

// statusFor classifies a core error into the HTTP status spec.md §7
// assigns it. ErrInvalidFill has no HTTP mapping: it indicates a broken
// matching invariant and should be unreachable on valid input, so seeing
// it here is itself a bug — we log it at error level and fall back to
// 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrInvalidOrder):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, engine.ErrInvalidFill):
		log.Error().Err(err).Msg("matching invariant violated")
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}
