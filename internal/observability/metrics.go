package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/librasys/admin-portal/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/exemplar"
	"go.opentelemetry.io/otel/sdk/resource"
)

type AppMetrics struct {
	adminListRequests    metric.Int64Counter
	adminListReqDuration metric.Float64Histogram
	adminListPageSize    metric.Float64Histogram
	adminMutations       metric.Int64Counter
	adminListCacheEvents metric.Int64Counter
	repositoryOps        metric.Int64Counter
	compromisedChecks    metric.Int64Counter
	healthCheckResults   metric.Int64Counter
	rateLimitEvents      metric.Int64Counter
	idempotencyEvents    metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithExemplarFilter(exemplar.TraceBasedFilter),
		sdkmetric.WithView(sdkmetric.NewView(
			sdkmetric.Instrument{Name: "admin.list.request.duration"},
			sdkmetric.Stream{
				Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
					Boundaries: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
				},
			},
		)),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter("admin-portal")
	listRequests, err := meter.Int64Counter("admin.list.requests")
	if err != nil {
		return nil, err
	}
	listDuration, err := meter.Float64Histogram("admin.list.request.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of admin listing requests in seconds"))
	if err != nil {
		return nil, err
	}
	listPageSize, err := meter.Float64Histogram("admin.list.page_size",
		metric.WithDescription("Requested page size of admin listing requests"))
	if err != nil {
		return nil, err
	}
	mutations, err := meter.Int64Counter("admin.mutations")
	if err != nil {
		return nil, err
	}
	cacheEvents, err := meter.Int64Counter("admin.list.cache.events")
	if err != nil {
		return nil, err
	}
	repoOps, err := meter.Int64Counter("repository.operations")
	if err != nil {
		return nil, err
	}
	compromised, err := meter.Int64Counter("password.compromised.checks")
	if err != nil {
		return nil, err
	}
	healthResults, err := meter.Int64Counter("health.check.results")
	if err != nil {
		return nil, err
	}
	rateLimits, err := meter.Int64Counter("http.rate_limit.events")
	if err != nil {
		return nil, err
	}
	idempotency, err := meter.Int64Counter("http.idempotency.events")
	if err != nil {
		return nil, err
	}

	metricsMu.Lock()
	appMetrics = &AppMetrics{
		adminListRequests:    listRequests,
		adminListReqDuration: listDuration,
		adminListPageSize:    listPageSize,
		adminMutations:       mutations,
		adminListCacheEvents: cacheEvents,
		repositoryOps:        repoOps,
		compromisedChecks:    compromised,
		healthCheckResults:   healthResults,
		rateLimitEvents:      rateLimits,
		idempotencyEvents:    idempotency,
	}
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint, "interval", cfg.OTELMetricsExportInterval.String())
	return mp, nil
}

func current() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func RecordAdminListRequest(ctx context.Context, status string, pageSize int, duration time.Duration) {
	m := current()
	if m == nil {
		return
	}
	m.adminListRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.adminListReqDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("status", status)))
	m.adminListPageSize.Record(ctx, float64(pageSize))
}

// RecordAdminMutation counts create/delete outcomes against admin records.
// Status is one of success, rejected, not_found, error.
func RecordAdminMutation(ctx context.Context, action, status string) {
	m := current()
	if m == nil {
		return
	}
	m.adminMutations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("status", status),
	))
}

func RecordAdminListCacheEvent(ctx context.Context, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.adminListCacheEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordRepositoryOperation(ctx context.Context, entity, operation, status string) {
	m := current()
	if m == nil {
		return
	}
	m.repositoryOps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("operation", operation),
		attribute.String("status", status),
	))
}

func RecordCompromisedCheck(ctx context.Context, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.compromisedChecks.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordHealthCheckResult(ctx context.Context, check, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.healthCheckResults.Add(ctx, 1, metric.WithAttributes(
		attribute.String("check", check),
		attribute.String("outcome", outcome),
	))
}

// RecordRateLimitEvent counts limiter decisions per scope. Outcome is one of
// allowed, limited, backend_error.
func RecordRateLimitEvent(ctx context.Context, scope, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.rateLimitEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
	))
}

func RecordIdempotencyEvent(ctx context.Context, scope, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.idempotencyEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
	))
}
