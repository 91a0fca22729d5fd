// Package ratelimit throttles invitation creation per inviting user and per
// organization.
//
// # Overview
//
// The package exposes a small Limiter port consumed by the invitation flow
// and two implementations:
//
//   - Local: in-process token buckets (golang.org/x/time/rate) held in
//     TTL-bounded LRU caches. Suitable for single-instance deployments.
//   - Redis: a fixed one-hour window shared across replicas, counters kept
//     in Redis. Fails open when Redis is unreachable.
//
// # Usage Example
//
//	limiter := ratelimit.NewLocal(20, 5)
//	allowed, reason := limiter.Check(ctx, userID, orgID)
//	if !allowed {
//	    return fmt.Errorf("throttled: %s", reason)
//	}
//
// # Related Packages
//
//   - pkg/orgs: consumes the Limiter port when creating invitations
//   - pkg/api: surfaces denials as HTTP 429 with a Retry-After header
package ratelimit
