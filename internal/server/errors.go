package server

import (
	"encoding/json"
	"errors"
	"net/http"

	goGuard "github.com/MrEthical07/goGuard"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps engine errors to HTTP status codes. Backend failures are 503
// so callers can tell an outage from a throttle; both are denials.
func statusFor(err error) int {
	switch {
	case errors.Is(err, goGuard.ErrInvalidIdentifier):
		return http.StatusBadRequest
	case errors.Is(err, goGuard.ErrConfigurationMissing):
		return http.StatusInternalServerError
	case errors.Is(err, goGuard.ErrEngineClosed), errors.Is(err, goGuard.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
