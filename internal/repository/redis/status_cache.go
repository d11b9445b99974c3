package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatusCache keeps the latest known job status hot for the gateway's
// polling endpoint. Postgres stays the source of truth; a cache miss is not
// an error.
type StatusCache struct {
	Client *redis.Client
}

func NewStatusCache(client *redis.Client) *StatusCache {
	return &StatusCache{Client: client}
}

func (c *StatusCache) SetStatus(ctx context.Context, imageID, status string) error {
	return c.Client.Set(ctx, "job_status:"+imageID, status, time.Hour).Err()
}

func (c *StatusCache) GetStatus(ctx context.Context, imageID string) (string, error) {
	status, err := c.Client.Get(ctx, "job_status:"+imageID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return status, err
}
