package goGuard

import "context"

type clientIPContextKey struct{}
type riskContextKey struct{}
type requestIDContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. Audit events carry it
// as metadata even when the IP dimension is not being checked.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithRisk attaches a risk context used by [Engine.CheckAll] and by
// [Engine.CheckAndRecord] when no explicit risk is passed.
func WithRisk(ctx context.Context, risk *RiskContext) context.Context {
	return context.WithValue(ctx, riskContextKey{}, risk)
}

// WithRequestID attaches a correlation ID copied into audit metadata.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func riskFromContext(ctx context.Context) *RiskContext {
	if ctx == nil {
		return nil
	}

	risk, _ := ctx.Value(riskContextKey{}).(*RiskContext)
	return risk
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}
