package redis

import (
	"context"
	"fmt"
	"time"

	"lockify/internal/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sweepLeaseKey = "lockify:sweep:lease"

type RedisRepo struct {
	client *redis.Client
	holder string
}

// New connects to Redis. host names this process in the lease it holds.
func New(ctx context.Context, cfg config.Redis, host string) (*RedisRepo, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisRepo{
		client: client,
		holder: leaseHolder(host),
	}, nil
}

// leaseHolder is unique per process even when replicas share a hostname
// or the hostname is unknown.
func leaseHolder(host string) string {
	id := uuid.NewString()
	if host == "" {
		return id
	}

	return host + "-" + id[:8]
}

// AcquireSweepLease reports whether this process may run the sweep now.
// The lease expires on its own after ttl, so a crashed holder never blocks
// the other replicas for longer than that.
func (r *RedisRepo) AcquireSweepLease(ctx context.Context, ttl time.Duration) (bool, error) {
	const op = "storage.redis.AcquireSweepLease"

	// SETNX is atomic: exactly one replica wins per window.
	ok, err := r.client.SetNX(ctx, sweepLeaseKey, r.holder, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return ok, nil
}

func (r *RedisRepo) Close() {
	_ = r.client.Close()
}
