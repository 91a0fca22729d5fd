package ratelimit

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// Buckets idle past their TTL are evicted by the cache rather than by a
// background sweep. A re-created bucket starts with a full burst, which for
// hourly quotas is an acceptable drift.
const (
	bucketTTL  = 2 * time.Hour
	maxBuckets = 16384
)

// Local enforces per-user and per-organization invitation quotas with
// in-process token buckets. The per-second refill rate is quota/3600 and the
// burst equals the full quota, so an idle hour restores the whole allowance.
type Local struct {
	users *lru.LRU[string, *rate.Limiter]
	orgs  *lru.LRU[string, *rate.Limiter]

	userLimit int
	orgLimit  int

	mu sync.Mutex
}

// NewLocal creates a local limiter. Non-positive limits fall back to the
// defaults (20 per user, 5 per organization, each per hour).
func NewLocal(userLimit, orgLimit int) *Local {
	if userLimit <= 0 {
		userLimit = DefaultUserLimit
	}
	if orgLimit <= 0 {
		orgLimit = DefaultOrgLimit
	}
	return &Local{
		users:     lru.NewLRU[string, *rate.Limiter](maxBuckets, nil, bucketTTL),
		orgs:      lru.NewLRU[string, *rate.Limiter](maxBuckets, nil, bucketTTL),
		userLimit: userLimit,
		orgLimit:  orgLimit,
	}
}

// Check consumes one token from the user bucket, then one from the org
// bucket. The user limit is evaluated first.
func (l *Local) Check(ctx context.Context, userID, orgID string) (bool, string) {
	if !l.bucket(l.users, userID, l.userLimit).Allow() {
		return false, ReasonUserLimit
	}
	if !l.bucket(l.orgs, orgID, l.orgLimit).Allow() {
		return false, ReasonOrgLimit
	}
	return true, ""
}

// RetryAfter estimates how long the caller must wait for both buckets to
// admit another invitation. Buckets that don't exist yet contribute nothing.
func (l *Local) RetryAfter(ctx context.Context, userID, orgID string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	var wait time.Duration
	if b, ok := l.users.Get(userID); ok {
		if d := nextTokenDelay(b); d > wait {
			wait = d
		}
	}
	if b, ok := l.orgs.Get(orgID); ok {
		if d := nextTokenDelay(b); d > wait {
			wait = d
		}
	}
	return wait
}

// ResetUser restores a user's full quota
func (l *Local) ResetUser(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.users.Remove(userID)
}

// ResetOrg restores an organization's full quota
func (l *Local) ResetOrg(orgID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.orgs.Remove(orgID)
}

// Stats reports bucket counts and configured quotas
func (l *Local) Stats() map[string]interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return map[string]interface{}{
		"user_buckets": l.users.Len(),
		"org_buckets":  l.orgs.Len(),
		"user_limit":   l.userLimit,
		"org_limit":    l.orgLimit,
	}
}

// bucket returns the limiter for key, creating it on first use. The mutex
// closes the get-then-add race so concurrent callers share one bucket.
func (l *Local) bucket(cache *lru.LRU[string, *rate.Limiter], key string, maxPerHour int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := cache.Get(key); ok {
		return b
	}
	b := rate.NewLimiter(rate.Limit(float64(maxPerHour)/3600.0), maxPerHour)
	cache.Add(key, b)
	return b
}

func nextTokenDelay(b *rate.Limiter) time.Duration {
	r := b.Reserve()
	delay := r.Delay()
	r.Cancel()
	return delay
}
