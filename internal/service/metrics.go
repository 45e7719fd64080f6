package service

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "dungeon-ledger/backend/internal/service"

var tracer = otel.Tracer(instrumentationName)

// serviceMetrics holds the domain counters exported through OpenTelemetry
type serviceMetrics struct {
	campaignsCreated      metric.Int64Counter
	campaignsDeleted      metric.Int64Counter
	campaignJoins         metric.Int64Counter
	joinFailures          metric.Int64Counter
	joinCodeCollisions    metric.Int64Counter
	sessionsCreated       metric.Int64Counter
	characterLinksCreated metric.Int64Counter
	charactersCreated     metric.Int64Counter
}

var (
	metricsOnce sync.Once
	metricsInst *serviceMetrics
)

func defaultMetrics() *serviceMetrics {
	metricsOnce.Do(func() {
		meter := otel.Meter(instrumentationName)
		counter := func(name, desc string) metric.Int64Counter {
			c, err := meter.Int64Counter(name, metric.WithDescription(desc))
			if err != nil {
				otel.Handle(err)
			}
			return c
		}
		metricsInst = &serviceMetrics{
			campaignsCreated:      counter("campaigns_created", "Campaigns created"),
			campaignsDeleted:      counter("campaigns_deleted", "Campaigns deleted"),
			campaignJoins:         counter("campaign_joins", "Players that joined a campaign by code"),
			joinFailures:          counter("campaign_join_failures", "Join attempts with an unknown code"),
			joinCodeCollisions:    counter("join_code_collisions", "Generated join codes that were already taken"),
			sessionsCreated:       counter("sessions_created", "Sessions scheduled"),
			characterLinksCreated: counter("character_links_created", "Character links added"),
			charactersCreated:     counter("characters_created", "Character sheets added"),
		}
	})
	return metricsInst
}

func (m *serviceMetrics) add(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if m == nil || c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// finish ends span, recording err unless it is an expected outcome
func finish(span trace.Span, err *error) {
	if err != nil && *err != nil && !errors.Is(*err, ErrNotFound) && !IsValidationError(*err) {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}
