package cache

import (
	"context"
	"time"
)

// AttemptCounter counts failed attempts per key in fixed windows.
// It is the in-process counterpart of the redis attempt counter.
type AttemptCounter struct {
	cache  *Cache
	prefix string
	limit  int64
	window time.Duration
}

// NewAttemptCounter blocks a key after limit failures within window
func NewAttemptCounter(c *Cache, prefix string, limit int, window time.Duration) *AttemptCounter {
	return &AttemptCounter{cache: c, prefix: prefix, limit: int64(limit), window: window}
}

// Blocked reports whether key has reached the limit in the current window
func (a *AttemptCounter) Blocked(_ context.Context, key string) (bool, error) {
	v, ok := a.cache.Get(a.prefix + key)
	if !ok {
		return false, nil
	}
	n, _ := v.(int64)
	return n >= a.limit, nil
}

// RecordFailure counts one failure for key
func (a *AttemptCounter) RecordFailure(_ context.Context, key string) error {
	a.cache.Increment(a.prefix+key, a.window)
	return nil
}
