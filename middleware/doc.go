// Package middleware adapts the goGuard engine to net/http.
//
//   - [Throttle] counts one attempt per request across the IP, account and
//     session dimensions and answers 429 with Retry-After when any denies.
//   - [RequireAdmin] guards operator endpoints with an admin bearer token.
//
// This package translates HTTP semantics into Engine calls. It makes no
// throttling decisions of its own.
package middleware
