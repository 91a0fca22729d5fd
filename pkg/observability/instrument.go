package observability

import (
	"context"
	"strings"
	"time"

	"github.com/platinummonkey/tenancy/pkg/audit"
	"github.com/platinummonkey/tenancy/pkg/ratelimit"
)

// InstrumentedRecorder decorates an audit.Recorder, counting invitation
// lifecycle events and permission denials as they stream past. The wrapped
// recorder keeps sole responsibility for persistence.
type InstrumentedRecorder struct {
	next    audit.Recorder
	metrics *Metrics
}

// NewInstrumentedRecorder wraps next with counters from metrics
func NewInstrumentedRecorder(next audit.Recorder, metrics *Metrics) *InstrumentedRecorder {
	return &InstrumentedRecorder{next: next, metrics: metrics}
}

var _ audit.Recorder = (*InstrumentedRecorder)(nil)

// Record counts the event, then forwards it
func (r *InstrumentedRecorder) Record(ctx context.Context, event *audit.Event) {
	switch {
	case event.Action == audit.ActionAuthzDenied:
		r.metrics.PermissionDenialsTotal.Inc()
	case strings.HasPrefix(string(event.Action), "invitation."):
		outcome := strings.TrimPrefix(string(event.Action), "invitation.")
		r.metrics.InvitationsTotal.WithLabelValues(outcome).Inc()
	}
	r.next.Record(ctx, event)
}

// InstrumentedLimiter decorates a ratelimit.Limiter, counting rejections by
// scope. The scope label is derived from the denial reason.
type InstrumentedLimiter struct {
	next    ratelimit.Limiter
	metrics *Metrics
}

// NewInstrumentedLimiter wraps next with the rejection counter from metrics
func NewInstrumentedLimiter(next ratelimit.Limiter, metrics *Metrics) *InstrumentedLimiter {
	return &InstrumentedLimiter{next: next, metrics: metrics}
}

var _ ratelimit.Limiter = (*InstrumentedLimiter)(nil)
var _ ratelimit.RetryHinter = (*InstrumentedLimiter)(nil)

// Check forwards to the wrapped limiter and counts denials
func (l *InstrumentedLimiter) Check(ctx context.Context, userID, orgID string) (bool, string) {
	allowed, reason := l.next.Check(ctx, userID, orgID)
	if !allowed {
		scope := "org"
		if reason == ratelimit.ReasonUserLimit {
			scope = "user"
		}
		l.metrics.RateLimitRejections.WithLabelValues(scope).Inc()
	}
	return allowed, reason
}

// RetryAfter forwards to the wrapped limiter when it can hint, zero otherwise
func (l *InstrumentedLimiter) RetryAfter(ctx context.Context, userID, orgID string) time.Duration {
	if hinter, ok := l.next.(ratelimit.RetryHinter); ok {
		return hinter.RetryAfter(ctx, userID, orgID)
	}
	return 0
}
