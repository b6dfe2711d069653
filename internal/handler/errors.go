package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/pkordes/rideshare-ledger/internal/domain"
)

// errorMapping pairs a domain sentinel with its HTTP status and error code.
// Order matters only for readability; the sentinels are disjoint.
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrValidation, http.StatusUnprocessableEntity, "validation_error"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrInvalidState, http.StatusConflict, "invalid_state"},
	{domain.ErrSeatsExhausted, http.StatusConflict, "seats_exhausted"},
}

// writeError translates a ledger error into an HTTP response.
// Errors outside the domain taxonomy become a 500 with a generic message so
// storage details never leak to clients.
func writeError(w http.ResponseWriter, err error) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			writeJSON(w, m.status, errorBody(m.code, unwrapMessage(err, m.err)))
			return
		}
	}
	writeJSON(w, http.StatusInternalServerError, errorBody("internal_error", "internal server error"))
}

// requestError is used for input rejected before reaching the ledger
// (malformed JSON, bad path or query parameters).
func requestError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody("bad_request", message))
}

func errorBody(code, message string) errorResponse {
	return errorResponse{Error: errorDetail{Code: code, Message: message}}
}

// unwrapMessage extracts the human-readable part that follows the sentinel.
// e.g. "service.TripLedger.CancelTrip: invalid state: trip is cancelled" → "trip is cancelled"
// A bare sentinel yields its own text.
func unwrapMessage(err, sentinel error) string {
	msg := err.Error()
	marker := sentinel.Error() + ": "
	if i := strings.Index(msg, marker); i >= 0 {
		return msg[i+len(marker):]
	}
	return sentinel.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
