package goGuard

import (
	"io"

	"github.com/MrEthical07/goGuard/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is the violation record handed to an [AuditSink].
type AuditEvent = audit.Event

// AuditSink receives violation events. Emit runs on the dispatcher goroutine;
// a slow or panicking sink never changes a rate-limit decision.
type AuditSink = audit.Sink

// Event types carried by [AuditEvent.EventType].
const (
	AuditEventLockout        = audit.EventLockout
	AuditEventDenied         = audit.EventDenied
	AuditEventBackendFailure = audit.EventFailure
)

type (
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	ZapSink        = audit.ZapSink
	MultiSink      = audit.MultiSink
)

// NewChannelSink returns a sink that buffers events in a channel.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink that writes one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewZapSink returns a sink that logs each event at warn level.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return audit.NewZapSink(logger)
}
