package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"dungeon-ledger/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// Options selects which signals are exported
type Options struct {
	ServiceName    string
	TracingEnabled bool
	MetricsEnabled bool
	// TraceOutput receives spans when tracing is enabled; defaults to stdout
	TraceOutput io.Writer
}

// Provider owns the telemetry pipelines of the process
type Provider struct {
	registry       *prom.Registry
	meterProvider  *metric.MeterProvider
	tracerProvider *trace.TracerProvider
	requests       *prom.HistogramVec
	log            *logger.Logger
}

// Setup installs the global OpenTelemetry providers.
// Metrics go to a Prometheus registry served by Handler; spans are printed by
// the stdout exporter.
func Setup(opts Options, log *logger.Logger) (*Provider, error) {
	if log == nil {
		log = logger.NewNop()
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(opts.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("build telemetry resource: %w", err)
	}

	p := &Provider{registry: prom.NewRegistry(), log: log}

	if opts.MetricsEnabled {
		p.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		exp, err := otelprom.New(otelprom.WithRegisterer(p.registry))
		if err != nil {
			return nil, fmt.Errorf("initialize prometheus exporter: %w", err)
		}
		p.meterProvider = metric.NewMeterProvider(
			metric.WithReader(exp),
			metric.WithResource(res),
		)
		otel.SetMeterProvider(p.meterProvider)

		p.requests = prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route and status",
			Buckets: prom.DefBuckets,
		}, []string{"method", "route", "status"})
		p.registry.MustRegister(p.requests)
	}

	if opts.TracingEnabled {
		out := opts.TraceOutput
		if out == nil {
			out = os.Stdout
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(out))
		if err != nil {
			return nil, fmt.Errorf("initialize stdouttrace exporter: %w", err)
		}
		p.tracerProvider = trace.NewTracerProvider(
			trace.WithBatcher(exp),
			trace.WithResource(res),
		)
		otel.SetTracerProvider(p.tracerProvider)
	}

	log.Info("Telemetry configured",
		"service", opts.ServiceName,
		"metrics", opts.MetricsEnabled,
		"tracing", opts.TracingEnabled,
	)
	return p, nil
}

// Middleware records the duration of every request. It is a no-op when metrics are disabled.
func (p *Provider) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if p.requests == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		p.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler serves the Prometheus registry
func (p *Provider) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

// Shutdown flushes pending spans and metrics
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tracerProvider != nil {
		errs = append(errs, p.tracerProvider.Shutdown(ctx))
	}
	if p.meterProvider != nil {
		errs = append(errs, p.meterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
