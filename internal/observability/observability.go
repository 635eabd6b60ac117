// Package observability wires an OpenTelemetry tracer and meter to this
// service's actual signals: renders started/completed/cancelled, render
// duration, blocks mixed and validation failures by kind. OTLP network
// exporters are not configured here (see DESIGN.md) — this Provider
// always uses in-process SDK providers, which is enough to register
// instruments and exercise the same construction path.
package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

func attrKind(kind string) attribute.KeyValue {
	return attribute.String("kind", kind)
}

// Config configures the Provider.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Enabled        bool
}

// DefaultConfig returns sane defaults for the audio engine service.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "edl-audio-engine",
		ServiceVersion: "0.1.0",
		Enabled:        true,
	}
}

// Provider owns this service's tracer, meter and the render-specific
// instruments derived from it.
type Provider struct {
	config Config
	logger *slog.Logger

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter

	rendersStarted   metric.Int64Counter
	rendersCompleted metric.Int64Counter
	rendersCancelled metric.Int64Counter
	renderDuration   metric.Float64Histogram
	blocksMixed      metric.Int64Counter
	validationFailed metric.Int64Counter
}

// New builds a Provider. When cfg.Enabled is false, every method is a
// safe no-op.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	p := &Provider{config: cfg, logger: slog.Default().With("component", "observability")}
	if !cfg.Enabled {
		p.logger.InfoContext(ctx, "observability disabled")
		return p, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: build resource: %w", err)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	p.meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
	otel.SetTracerProvider(p.tracerProvider)
	otel.SetMeterProvider(p.meterProvider)

	p.tracer = p.tracerProvider.Tracer(cfg.ServiceName)
	p.meter = p.meterProvider.Meter(cfg.ServiceName)

	if err := p.buildInstruments(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) buildInstruments() error {
	var err error
	if p.rendersStarted, err = p.meter.Int64Counter("edl.renders.started"); err != nil {
		return err
	}
	if p.rendersCompleted, err = p.meter.Int64Counter("edl.renders.completed"); err != nil {
		return err
	}
	if p.rendersCancelled, err = p.meter.Int64Counter("edl.renders.cancelled"); err != nil {
		return err
	}
	if p.renderDuration, err = p.meter.Float64Histogram("edl.render.duration_seconds"); err != nil {
		return err
	}
	if p.blocksMixed, err = p.meter.Int64Counter("edl.render.blocks_mixed"); err != nil {
		return err
	}
	if p.validationFailed, err = p.meter.Int64Counter("edl.validation.failed"); err != nil {
		return err
	}
	return nil
}

// RenderStarted, RenderCompleted, RenderCancelled, RenderDuration,
// BlockMixed and ValidationFailed record their respective events. All are
// nil-safe no-ops when the provider was constructed with Enabled: false.
func (p *Provider) RenderStarted(ctx context.Context) {
	if p.rendersStarted != nil {
		p.rendersStarted.Add(ctx, 1)
	}
}

func (p *Provider) RenderCompleted(ctx context.Context, durationSec float64) {
	if p.rendersCompleted != nil {
		p.rendersCompleted.Add(ctx, 1)
	}
	if p.renderDuration != nil {
		p.renderDuration.Record(ctx, durationSec)
	}
}

func (p *Provider) RenderCancelled(ctx context.Context) {
	if p.rendersCancelled != nil {
		p.rendersCancelled.Add(ctx, 1)
	}
}

func (p *Provider) BlockMixed(ctx context.Context) {
	if p.blocksMixed != nil {
		p.blocksMixed.Add(ctx, 1)
	}
}

func (p *Provider) ValidationFailed(ctx context.Context, kind string) {
	if p.validationFailed != nil {
		p.validationFailed.Add(ctx, 1, metric.WithAttributes(attrKind(kind)))
	}
}

// Shutdown flushes and stops the underlying providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			return err
		}
	}
	if p.meterProvider != nil {
		return p.meterProvider.Shutdown(ctx)
	}
	return nil
}
