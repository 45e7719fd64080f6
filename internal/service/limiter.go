package service

import (
	"context"

	"dungeon-ledger/backend/pkg/logger"
	"dungeon-ledger/backend/pkg/resilience"
)

// AttemptLimiter counts failed attempts per key inside a time window
type AttemptLimiter interface {
	// Blocked reports whether key has used up its failed attempts
	Blocked(ctx context.Context, key string) (bool, error)
	// RecordFailure counts one failed attempt for key
	RecordFailure(ctx context.Context, key string) error
}

type noLimiter struct{}

func (noLimiter) Blocked(context.Context, string) (bool, error) { return false, nil }
func (noLimiter) RecordFailure(context.Context, string) error   { return nil }

// FallbackLimiter sends calls to primary through a circuit breaker and uses
// fallback while the breaker is open or primary fails
type FallbackLimiter struct {
	primary  AttemptLimiter
	fallback AttemptLimiter
	breaker  *resilience.CircuitBreaker
	log      *logger.Logger
}

// NewFallbackLimiter creates a limiter that prefers primary
func NewFallbackLimiter(primary, fallback AttemptLimiter, breaker *resilience.CircuitBreaker, log *logger.Logger) *FallbackLimiter {
	return &FallbackLimiter{primary: primary, fallback: fallback, breaker: breaker, log: log}
}

// Blocked implements AttemptLimiter
func (l *FallbackLimiter) Blocked(ctx context.Context, key string) (bool, error) {
	var blocked bool
	err := l.breaker.Execute(func() error {
		var err error
		blocked, err = l.primary.Blocked(ctx, key)
		return err
	})
	if err == nil {
		return blocked, nil
	}
	l.log.Debug("Attempt limiter falling back", "error", err.Error())
	return l.fallback.Blocked(ctx, key)
}

// RecordFailure implements AttemptLimiter
func (l *FallbackLimiter) RecordFailure(ctx context.Context, key string) error {
	err := l.breaker.Execute(func() error {
		return l.primary.RecordFailure(ctx, key)
	})
	if err == nil {
		return nil
	}
	l.log.Debug("Attempt limiter falling back", "error", err.Error())
	return l.fallback.RecordFailure(ctx, key)
}
