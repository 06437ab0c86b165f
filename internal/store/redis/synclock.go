// Package redis provides the cross-process sync lock. Two synchronize
// runs for the same connection must not interleave; within one process
// the pipeline guards this itself, the redis lock extends the guarantee
// across replicas.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned by Acquire when another sync holds the lock.
var ErrLocked = fmt.Errorf("sync already in progress")

// SyncLock implements a per-connection lock plus a last-synced timestamp
// on Redis. A nil *SyncLock is a no-op: single-process deployments run
// without Redis.
type SyncLock struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, addr, password string, ttl time.Duration) (*SyncLock, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	slog.Info("redis connected", "addr", addr)
	return &SyncLock{client: client, ttl: ttl}, nil
}

func lockKey(connectionID string) string {
	return "waplink:sync:lock:" + connectionID
}

func lastSyncKey(connectionID string) string {
	return "waplink:sync:last:" + connectionID
}

// Acquire takes the sync lock for a connection. Returns ErrLocked if a
// sync is already running elsewhere. The TTL bounds how long a crashed
// holder can block others.
func (l *SyncLock) Acquire(ctx context.Context, connectionID string) error {
	if l == nil {
		return nil
	}

	ok, err := l.client.SetNX(ctx, lockKey(connectionID), time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire sync lock: %w", err)
	}
	if !ok {
		return ErrLocked
	}
	return nil
}

// Release drops the lock and records the sync completion time.
func (l *SyncLock) Release(ctx context.Context, connectionID string) {
	if l == nil {
		return
	}

	pipe := l.client.Pipeline()
	pipe.Del(ctx, lockKey(connectionID))
	pipe.Set(ctx, lastSyncKey(connectionID), time.Now().UTC().Format(time.RFC3339), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("sync lock release failed", "connection", connectionID, "error", err)
	}
}

// LastSynced returns when the connection last completed a sync, or the
// zero time if it never has.
func (l *SyncLock) LastSynced(ctx context.Context, connectionID string) (time.Time, error) {
	if l == nil {
		return time.Time{}, nil
	}

	val, err := l.client.Get(ctx, lastSyncKey(connectionID)).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get last sync: %w", err)
	}
	return time.Parse(time.RFC3339, val)
}

// Close releases the Redis client.
func (l *SyncLock) Close() error {
	if l == nil {
		return nil
	}
	return l.client.Close()
}
