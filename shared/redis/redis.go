package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options configures the redis connection
type Options struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// RedisClient is a thin wrapper over go-redis used for short lived counters
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient creates a client; it does not connect until first use
func NewRedisClient(opts Options) *RedisClient {
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 2 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.DialTimeout,
		WriteTimeout: opts.DialTimeout,
	})
	return &RedisClient{client: client}
}

// Ping checks the connection
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the connection pool
func (r *RedisClient) Close() error {
	return r.client.Close()
}

func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

func (r *RedisClient) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

func (r *RedisClient) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// IncrWindow increments key and starts its expiry on the first increment,
// giving a fixed window counter
func (r *RedisClient) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return incr.Val(), nil
}

// Counter returns the current value of a counter, zero when it does not exist
func (r *RedisClient) Counter(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// AttemptCounter counts failed attempts per key in redis so every replica shares them
type AttemptCounter struct {
	client *RedisClient
	prefix string
	limit  int64
	window time.Duration
}

// NewAttemptCounter blocks a key after limit failures within window
func NewAttemptCounter(client *RedisClient, prefix string, limit int, window time.Duration) *AttemptCounter {
	return &AttemptCounter{client: client, prefix: prefix, limit: int64(limit), window: window}
}

// Blocked reports whether key has reached the limit in the current window
func (a *AttemptCounter) Blocked(ctx context.Context, key string) (bool, error) {
	n, err := a.client.Counter(ctx, a.prefix+key)
	if err != nil {
		return false, err
	}
	return n >= a.limit, nil
}

// RecordFailure counts one failure for key
func (a *AttemptCounter) RecordFailure(ctx context.Context, key string) error {
	_, err := a.client.IncrWindow(ctx, a.prefix+key, a.window)
	return err
}
