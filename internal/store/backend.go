package store

import (
	"context"
	"fmt"
	"time"

	"leadboard-engine/internal/config"
)

// NewSnapshotStore picks the backend named by cache.backend. The returned
// close func releases any connection the backend opened; db may be nil unless
// the backend is sqlite.
func NewSnapshotStore(ctx context.Context, cfg config.Config, db *DB) (SnapshotStore, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Cache.Backend {
	case config.BackendNone:
		return Nop{}, noop, nil
	case config.BackendRedis:
		client, err := DialRedis(ctx, cfg.Cache.RedisAddr)
		if err != nil {
			return nil, noop, err
		}
		ttl := time.Duration(cfg.Cache.RedisTTLSeconds) * time.Second
		return NewRedisSnapshots(client, cfg.Cache.RedisKey, ttl), client.Close, nil
	case config.BackendSQLite, "":
		if db == nil {
			return nil, noop, fmt.Errorf("sqlite snapshot store: database not open")
		}
		return NewSQLiteSnapshots(db.Pool), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}
