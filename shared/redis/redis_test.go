package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAttemptCounterReportsUnreachableServer(t *testing.T) {
	// nothing listens on port 1
	client := NewRedisClient(Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	defer client.Close()

	counter := NewAttemptCounter(client, "join:", 3, time.Minute)
	ctx := context.Background()

	_, err := counter.Blocked(ctx, "bob")
	assert.Error(t, err)
	assert.Error(t, counter.RecordFailure(ctx, "bob"))
	assert.Error(t, client.Ping(ctx))
}
