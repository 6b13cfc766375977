package health

import (
	"context"

	"github.com/go-redis/redis/v8"

	"github.com/hotvideos/video-info-service/internal/core/ports"
	infraDB "github.com/hotvideos/video-info-service/internal/infrastructure/db"
)

// Pinger is implemented by backends that can report their own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// pingHealthChecker adapts any Pinger into a named health check.
type pingHealthChecker struct {
	name string
	p    Pinger
}

func (c *pingHealthChecker) Name() string                    { return c.name }
func (c *pingHealthChecker) Check(ctx context.Context) error { return c.p.Ping(ctx) }

// redisHealthChecker wraps the redis client for health checks.
type redisHealthChecker struct{ client *redis.Client }

func (r *redisHealthChecker) Name() string                    { return "redis" }
func (r *redisHealthChecker) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }

// NewDBHealthChecker creates a health checker for the database.
func NewDBHealthChecker(db *infraDB.Database) ports.HealthChecker {
	return &pingHealthChecker{name: "database", p: db}
}

// NewRedisHealthChecker creates a health checker for Redis.
func NewRedisHealthChecker(client *redis.Client) ports.HealthChecker {
	return &redisHealthChecker{client: client}
}

// NewDynamoDBHealthChecker creates a health checker for the DynamoDB table.
func NewDynamoDBHealthChecker(table Pinger) ports.HealthChecker {
	return &pingHealthChecker{name: "dynamodb", p: table}
}
