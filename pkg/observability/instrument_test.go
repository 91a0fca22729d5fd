package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/tenancy/pkg/audit"
	"github.com/platinummonkey/tenancy/pkg/ratelimit"
)

type recorderSpy struct {
	events []*audit.Event
}

func (r *recorderSpy) Record(ctx context.Context, event *audit.Event) {
	r.events = append(r.events, event)
}

func TestInstrumentedRecorder_CountsAndForwards(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	spy := &recorderSpy{}
	recorder := NewInstrumentedRecorder(spy, metrics)
	ctx := context.Background()

	recorder.Record(ctx, &audit.Event{Action: audit.ActionAuthzDenied})
	recorder.Record(ctx, &audit.Event{Action: audit.ActionInvitationCreate})
	recorder.Record(ctx, &audit.Event{Action: audit.ActionInvitationAccept})
	recorder.Record(ctx, &audit.Event{Action: audit.ActionOrgCreate})

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.PermissionDenialsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.InvitationsTotal.WithLabelValues("create")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.InvitationsTotal.WithLabelValues("accept")))

	// Every event reaches the wrapped recorder untouched
	require.Len(t, spy.events, 4)
	assert.Equal(t, audit.ActionOrgCreate, spy.events[3].Action)
}

type denyingLimiter struct {
	reason string
}

func (d denyingLimiter) Check(ctx context.Context, userID, orgID string) (bool, string) {
	return false, d.reason
}

type hintingLimiter struct {
	denyingLimiter
	hint time.Duration
}

func (h hintingLimiter) RetryAfter(ctx context.Context, userID, orgID string) time.Duration {
	return h.hint
}

func TestInstrumentedLimiter_CountsByScope(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	ctx := context.Background()

	user := NewInstrumentedLimiter(denyingLimiter{reason: ratelimit.ReasonUserLimit}, metrics)
	org := NewInstrumentedLimiter(denyingLimiter{reason: ratelimit.ReasonOrgLimit}, metrics)

	allowed, reason := user.Check(ctx, "u1", "o1")
	assert.False(t, allowed)
	assert.Equal(t, ratelimit.ReasonUserLimit, reason)
	org.Check(ctx, "u1", "o1")
	org.Check(ctx, "u1", "o1")

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RateLimitRejections.WithLabelValues("user")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.RateLimitRejections.WithLabelValues("org")))
}

func TestInstrumentedLimiter_AllowedNotCounted(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	limiter := NewInstrumentedLimiter(ratelimit.Unlimited{}, metrics)
	allowed, _ := limiter.Check(context.Background(), "u1", "o1")

	assert.True(t, allowed)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.RateLimitRejections.WithLabelValues("user")))
}

func TestInstrumentedLimiter_RetryAfterPassthrough(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	ctx := context.Background()

	hinting := NewInstrumentedLimiter(hintingLimiter{hint: 42 * time.Second}, metrics)
	assert.Equal(t, 42*time.Second, hinting.RetryAfter(ctx, "u1", "o1"))

	plain := NewInstrumentedLimiter(denyingLimiter{}, metrics)
	assert.Equal(t, time.Duration(0), plain.RetryAfter(ctx, "u1", "o1"))
}
