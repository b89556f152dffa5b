package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReplayCache remembers the Summary of recent submissions so a resubmitted
// batch is answered from the cache instead of being staged twice.
type ReplayCache interface {
	Lookup(ctx context.Context, key string) (*Summary, bool, error)
	Remember(ctx context.Context, key string, summary *Summary) error
}

type NoopReplayCache struct{}

func (NoopReplayCache) Lookup(context.Context, string) (*Summary, bool, error) { return nil, false, nil }
func (NoopReplayCache) Remember(context.Context, string, *Summary) error    { return nil }

type RedisReplayCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisReplayCache(client *redis.Client, ttl time.Duration) *RedisReplayCache {
	return &RedisReplayCache{client: client, ttl: ttl}
}

func (c *RedisReplayCache) Lookup(ctx context.Context, key string) (*Summary, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("replay lookup: %w", err)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false, fmt.Errorf("replay decode: %w", err)
	}
	return &s, true, nil
}

func (c *RedisReplayCache) Remember(ctx context.Context, key string, summary *Summary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("replay encode: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("replay store: %w", err)
	}
	return nil
}

// ReplayKey identifies a submission by its submission key. A request without
// one has no key and is always staged as a new batch.
func ReplayKey(req *Request) string {
	if req.SubmissionKey == "" {
		return ""
	}
	return fmt.Sprintf("staging:ingest:%d:key:%s", req.TargetDistrict, req.SubmissionKey)
}
