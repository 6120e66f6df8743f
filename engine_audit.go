package goGuard

import (
	"context"
	"strconv"

	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/google/uuid"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	key Key,
	p Policy,
	res Result,
	risk *RiskContext,
	cause error,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := audit.Event{
		ID:          uuid.NewString(),
		Timestamp:   e.now().UTC(),
		EventType:   eventType,
		Dimension:   key.Dimension.String(),
		Action:      key.Action.String(),
		Identifier:  key.Identifier,
		Window:      p.Window,
		MaxAttempts: p.MaxAttempts,
		LockedUntil: res.LockedUntil,
		Ordinal:     res.LockoutOrdinal,
		Reason:      res.Reason,
		Metadata:    auditMetadata(ctx, risk, cause),
	}

	e.audit.Emit(ctx, event)
}

func auditMetadata(ctx context.Context, risk *RiskContext, cause error) map[string]string {
	md := make(map[string]string, 4)
	if ip := clientIPFromContext(ctx); ip != "" {
		md["client_ip"] = ip
	}
	if id := requestIDFromContext(ctx); id != "" {
		md["request_id"] = id
	}
	if risk != nil {
		md["risk_score"] = strconv.Itoa(risk.Score)
		if risk.PriorViolations > 0 {
			md["prior_violations"] = strconv.Itoa(risk.PriorViolations)
		}
		if risk.Signal != "" {
			md["signal"] = risk.Signal
		}
	}
	if cause != nil {
		md["error"] = cause.Error()
	}
	if len(md) == 0 {
		return nil
	}
	return md
}
