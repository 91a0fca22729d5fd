package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const redisWindow = time.Hour

// Redis enforces invitation quotas with counters in a fixed one-hour window,
// shared by every replica pointed at the same Redis. When Redis is
// unreachable the limiter fails open: the attempt is allowed and the error
// is logged.
type Redis struct {
	client    *redis.Client
	logger    *logrus.Logger
	userLimit int
	orgLimit  int
}

// NewRedis creates a Redis-backed limiter. Non-positive limits fall back to
// the defaults.
func NewRedis(client *redis.Client, logger *logrus.Logger, userLimit, orgLimit int) *Redis {
	if userLimit <= 0 {
		userLimit = DefaultUserLimit
	}
	if orgLimit <= 0 {
		orgLimit = DefaultOrgLimit
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Redis{
		client:    client,
		logger:    logger,
		userLimit: userLimit,
		orgLimit:  orgLimit,
	}
}

// Check increments the user counter, then the organization counter. The user
// limit is evaluated first.
func (l *Redis) Check(ctx context.Context, userID, orgID string) (bool, string) {
	allowed, err := l.allow(ctx, userKey(userID), l.userLimit)
	if err != nil {
		l.logger.WithError(err).Warn("Rate limit check failed, allowing request")
		return true, ""
	}
	if !allowed {
		return false, ReasonUserLimit
	}

	allowed, err = l.allow(ctx, orgKey(orgID), l.orgLimit)
	if err != nil {
		l.logger.WithError(err).Warn("Rate limit check failed, allowing request")
		return true, ""
	}
	if !allowed {
		return false, ReasonOrgLimit
	}
	return true, ""
}

// RetryAfter reports the longer remaining window TTL of the two counters.
// Errors and missing keys yield zero, meaning no hint.
func (l *Redis) RetryAfter(ctx context.Context, userID, orgID string) time.Duration {
	var wait time.Duration
	for _, key := range []string{userKey(userID), orgKey(orgID)} {
		ttl, err := l.client.TTL(ctx, key).Result()
		if err != nil {
			continue
		}
		if ttl > wait {
			wait = ttl
		}
	}
	return wait
}

// allow bumps the counter and refreshes the window in one round trip
func (l *Redis) allow(ctx context.Context, key string, max int) (bool, error) {
	pipe := l.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, redisWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to check rate limit for %s: %w", key, err)
	}
	return incr.Val() <= int64(max), nil
}

func userKey(userID string) string {
	return "ratelimit:invite:user:" + userID
}

func orgKey(orgID string) string {
	return "ratelimit:invite:org:" + orgID
}
