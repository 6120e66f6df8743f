package goGuard

import (
	"errors"

	"github.com/MrEthical07/goGuard/internal/rate"
)

var (
	// ErrRateLimited is returned alongside a denied result by helpers that
	// need an error value, such as the HTTP middleware.
	ErrRateLimited = rate.ErrRateLimited
	// ErrBackendUnavailable reports a store or attempt-log failure. The
	// accompanying result is always denied.
	ErrBackendUnavailable = rate.ErrBackendUnavailable
	// ErrConfigurationMissing reports a security-critical action with no policy.
	ErrConfigurationMissing = errors.New("rate limit configuration missing")
	// ErrInvalidIdentifier reports an empty or malformed identifier.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrEngineClosed is returned by every Engine method after Close.
	ErrEngineClosed = errors.New("engine closed")
	// ErrEngineNotReady is returned when an Engine was not built by a Builder.
	ErrEngineNotReady = errors.New("engine not initialized")
)
