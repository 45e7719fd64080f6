package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"dungeon-ledger/backend/pkg/logger"
	"dungeon-ledger/backend/pkg/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingLimiter struct{ calls int }

func (l *failingLimiter) Blocked(context.Context, string) (bool, error) {
	l.calls++
	return false, errors.New("redis down")
}

func (l *failingLimiter) RecordFailure(context.Context, string) error {
	l.calls++
	return errors.New("redis down")
}

func TestFallbackLimiterUsesFallbackWhenPrimaryFails(t *testing.T) {
	primary := &failingLimiter{}
	fallback := newMemoryLimiter(2)
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "join-limiter",
		FailureThreshold: 2,
		SuccessThreshold: 1,
		RetryTimeout:     time.Minute,
	}, logger.NewNop())
	l := NewFallbackLimiter(primary, fallback, breaker, logger.NewNop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, l.RecordFailure(ctx, "bob"))
	}
	blocked, err := l.Blocked(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, blocked)

	// once the breaker opens the primary is no longer called
	assert.Equal(t, 2, primary.calls)
}

func TestIdentity(t *testing.T) {
	assert.False(t, Anonymous.Authenticated())
	assert.False(t, NewIdentity("   ").Authenticated())
	assert.True(t, NewIdentity(" u1 ").Authenticated())
	assert.Equal(t, "u1", NewIdentity(" u1 ").UserID)
	assert.False(t, IsRecordOwner("", Anonymous))
	assert.True(t, IsRecordOwner("u1", NewIdentity("u1")))
}

func TestGenerateJoinCodeShape(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code := GenerateJoinCode()
		require.True(t, IsWellFormedJoinCode(code), code)
	}
	assert.False(t, IsWellFormedJoinCode("abcdefgh"))
	assert.False(t, IsWellFormedJoinCode("ABC"))
	assert.Equal(t, "ABCD1234", NormalizeJoinCode(" abcd1234 "))
}
