package server

import (
	"net/http"

	"github.com/google/uuid"

	goGuard "github.com/MrEthical07/goGuard"
)

// RequestIDHeader carries the correlation ID in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestID propagates or mints a request ID and hands it to the engine so
// audit events can be correlated.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(goGuard.WithRequestID(r.Context(), id)))
	})
}
