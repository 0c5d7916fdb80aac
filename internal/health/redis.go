// Package health provides dependency checkers behind the readiness probe.
package health

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisChecker reports redis availability. Redis backs the distributed rate
// limiter, so a failing check degrades but does not disable the API.
type RedisChecker struct {
	client *redis.Client
}

func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

// HealthCheck sends PING.
func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
