package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisSnapshots keeps the snapshot under one key so several engines pointed
// at the same sheet can share a warm cache.
type RedisSnapshots struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisSnapshots(client *redis.Client, key string, ttl time.Duration) *RedisSnapshots {
	return &RedisSnapshots{client: client, key: key, ttl: ttl}
}

// DialRedis connects and pings addr.
func DialRedis(ctx context.Context, addr string) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{Addr: addr})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return c, nil
}

func (r *RedisSnapshots) LoadSnapshot(ctx context.Context) (Snapshot, error) {
	str, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(str), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func (r *RedisSnapshots) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	// ttl 0 keeps the key forever
	return r.client.Set(ctx, r.key, b, r.ttl).Err()
}
