package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
)

type compositeContextKey struct{}

// ResultFromContext returns the composite decision made by [Throttle].
func ResultFromContext(ctx context.Context) (goGuard.CompositeResult, bool) {
	res, ok := ctx.Value(compositeContextKey{}).(goGuard.CompositeResult)
	return res, ok
}

// ThrottleOptions selects which identifiers a request is throttled on.
type ThrottleOptions struct {
	// Account extracts the account identifier, if any. If it reads the
	// request body it must put it back.
	Account func(*http.Request) string
	// Session extracts the session identifier, if any.
	Session func(*http.Request) string
	// Risk supplies a per-request risk context.
	Risk func(*http.Request) *goGuard.RiskContext
	// TrustForwardedFor takes the client IP from the first X-Forwarded-For
	// hop. Enable only behind a proxy that overwrites the header.
	TrustForwardedFor bool
}

// Throttle counts one attempt of action for every identifier of the request
// before calling next. Denied requests get 429 with Retry-After and a generic
// message that does not reveal which identifier tripped.
func Throttle(engine *goGuard.Engine, action goGuard.Action, opts ThrottleOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			id := goGuard.Identity{IP: ClientIP(r, opts.TrustForwardedFor)}
			if opts.Account != nil {
				id.Account = opts.Account(r)
			}
			if opts.Session != nil {
				id.Session = opts.Session(r)
			}
			var risk *goGuard.RiskContext
			if opts.Risk != nil {
				risk = opts.Risk(r)
			}

			ctx := goGuard.WithClientIP(r.Context(), id.IP)
			res := engine.CheckAndRecordAll(ctx, action, id, risk)
			if !res.Allowed {
				if res.Err != nil && errors.Is(res.Err, goGuard.ErrInvalidIdentifier) {
					http.Error(w, "bad request", http.StatusBadRequest)
					return
				}
				WriteTooManyRequests(w, res, engine.Now())
				return
			}

			ctx = context.WithValue(ctx, compositeContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WriteTooManyRequests renders a 429 for a denied composite result.
func WriteTooManyRequests(w http.ResponseWriter, res goGuard.CompositeResult, now time.Time) {
	wait := res.RetryAfter(now)
	secs := int64(math.Ceil(wait.Seconds()))
	if secs < 1 {
		secs = 1
	}

	w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	msg := res.MostRestrictive
	msg.LockedUntil = now.Add(wait)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": goGuard.UserMessage(msg, now),
	})
}

// ClientIP returns the request's client address without a port.
func ClientIP(r *http.Request, trustForwardedFor bool) string {
	if trustForwardedFor {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
