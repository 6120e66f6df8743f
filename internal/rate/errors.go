package rate

import "errors"

var (
	// ErrRateLimited reports a denied attempt.
	ErrRateLimited = errors.New("rate limited")
	// ErrBackendUnavailable reports a store or attempt-log failure. Callers treat it as denied.
	ErrBackendUnavailable = errors.New("rate backend unavailable")
	// ErrInvalidPolicy reports a policy that fails validation.
	ErrInvalidPolicy = errors.New("invalid rate policy")
)
