package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/goGuard/jwt"
)

type operatorContextKey struct{}

// OperatorFromContext returns the verified operator claims set by [RequireAdmin].
func OperatorFromContext(ctx context.Context) (*jwt.OperatorClaims, bool) {
	claims, ok := ctx.Value(operatorContextKey{}).(*jwt.OperatorClaims)
	return claims, ok
}

// RequireAdmin rejects requests that do not carry a valid admin bearer token.
func RequireAdmin(tokens *jwt.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokens == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := tokens.ParseAdmin(token)
			switch {
			case errors.Is(err, jwt.ErrRoleNotAllowed):
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			case err != nil:
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), operatorContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
