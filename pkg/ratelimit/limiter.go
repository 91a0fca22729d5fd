package ratelimit

import (
	"context"
	"time"
)

// Denial reasons surfaced to callers. The wording is part of the API response
// contract, keep it stable.
const (
	ReasonUserLimit = "user rate limit exceeded"
	ReasonOrgLimit  = "organization rate limit exceeded"
)

// Default invitation quotas per hour
const (
	DefaultUserLimit = 20
	DefaultOrgLimit  = 5
)

// Limiter decides whether an invitation attempt by userID on behalf of orgID
// may proceed. reason is empty when allowed.
type Limiter interface {
	Check(ctx context.Context, userID, orgID string) (allowed bool, reason string)
}

// RetryHinter is implemented by limiters that can estimate how long a denied
// caller should wait before retrying.
type RetryHinter interface {
	RetryAfter(ctx context.Context, userID, orgID string) time.Duration
}

// Unlimited allows everything. Used when rate limiting is disabled.
type Unlimited struct{}

// Check always allows
func (Unlimited) Check(ctx context.Context, userID, orgID string) (bool, string) {
	return true, ""
}
