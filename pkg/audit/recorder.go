package audit

import (
	"context"

	"github.com/platinummonkey/tenancy/pkg/contextkeys"
)

// Recorder accepts audit events. Implementations must be best-effort: a
// failure to persist an event is logged and dropped, never surfaced, because
// audit-trail unavailability must not block a legitimate business operation.
// That is why Record has no error return.
type Recorder interface {
	Record(ctx context.Context, event *Event)
}

// NopRecorder discards every event. Useful in tests and in deployments that
// have not wired an audit sink.
type NopRecorder struct{}

// Record discards the event
func (NopRecorder) Record(ctx context.Context, event *Event) {}

// ClientInfo carries network metadata captured at the transport boundary and
// attached to audit events.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// WithClientInfo stores client metadata in the context for later enrichment
func WithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, contextkeys.ClientInfoKey, info)
}

// ClientInfoFromContext retrieves client metadata stored by the transport
// middleware. The zero value is returned when none is present.
func ClientInfoFromContext(ctx context.Context) ClientInfo {
	if info, ok := ctx.Value(contextkeys.ClientInfoKey).(ClientInfo); ok {
		return info
	}
	return ClientInfo{}
}
