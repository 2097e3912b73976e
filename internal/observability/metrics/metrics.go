package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	generations      metric.Int64Counter
	synthesisRetries metric.Int64Counter
	billingEvents    metric.Int64Counter
	rateLimitAllowed metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
	generationTime   metric.Float64Histogram
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "sona"
	}
	meter := provider.Meter(name)

	generations, err := meter.Int64Counter("sona_generations_total")
	if err != nil {
		return nil, err
	}
	synthesisRetries, err := meter.Int64Counter("sona_synthesis_retries_total")
	if err != nil {
		return nil, err
	}
	billingEvents, err := meter.Int64Counter("sona_billing_events_total")
	if err != nil {
		return nil, err
	}
	rateLimitAllowed, err := meter.Int64Counter("sona_rate_limit_allowed_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("sona_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}
	generationTime, err := meter.Float64Histogram("sona_generation_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		generations:      generations,
		synthesisRetries: synthesisRetries,
		billingEvents:    billingEvents,
		rateLimitAllowed: rateLimitAllowed,
		rateLimitDenied:  rateLimitDenied,
		generationTime:   generationTime,
	}, nil
}

// RecordGeneration increments generation counts per duration and outcome.
func (m *Metrics) RecordGeneration(ctx context.Context, durationMinutes int, status string) {
	if m == nil {
		return
	}
	m.generations.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("duration_minutes", durationMinutes),
		attribute.String("status", strings.TrimSpace(status)),
	))
}

// RecordGenerationTime observes the wall time of a full generation.
func (m *Metrics) RecordGenerationTime(ctx context.Context, seconds float64) {
	if m == nil {
		return
	}
	m.generationTime.Record(ctx, seconds)
}

// RecordSynthesisRetry increments retry counts for speech synthesis attempts.
func (m *Metrics) RecordSynthesisRetry(ctx context.Context) {
	if m == nil {
		return
	}
	m.synthesisRetries.Add(ctx, 1)
}

// RecordBillingEvent increments processed billing event counts per type.
func (m *Metrics) RecordBillingEvent(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.billingEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", strings.TrimSpace(eventType)),
	))
}

// RecordRateLimit increments rate limit decision counts.
func (m *Metrics) RecordRateLimit(ctx context.Context, allowed bool) {
	if m == nil {
		return
	}
	if allowed {
		m.rateLimitAllowed.Add(ctx, 1)
		return
	}
	m.rateLimitDenied.Add(ctx, 1)
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		return otlpmetrichttp.New(context.Background(),
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	case "grpc", "":
		return otlpmetricgrpc.New(context.Background(),
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported otlp protocol %q", protocol)
	}
}
