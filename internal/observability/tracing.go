// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package observability

import (
	"context"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// TracingOptions configure NewTracerProvider.
type TracingOptions struct {
	Service string
	Version string
	// Endpoint is an OTLP/HTTP collector URL. Empty records spans without
	// exporting them, which still gives log lines a trace_id.
	Endpoint string
	// SampleRatio is the share of new traces sampled. Incoming sampled
	// parents are always honoured.
	SampleRatio float64
}

// NewTracerProvider builds an SDK tracer provider. The caller owns it and
// must Shutdown it to flush pending spans.
func NewTracerProvider(ctx context.Context, opts TracingOptions) (*sdktrace.TracerProvider, error) {
	res := resource.NewSchemaless(
		attribute.String("service.name", opts.Service),
		attribute.String("service.version", opts.Version),
	)
	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SampleRatio))),
	}

	if opts.Endpoint != "" {
		exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(opts.Endpoint))
		if err != nil {
			return nil, oops.Code("TRACING_EXPORTER_FAILED").With("endpoint", opts.Endpoint).Wrap(err)
		}
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exporter))
	}
	return sdktrace.NewTracerProvider(providerOpts...), nil
}

// SetupTracing installs a tracer provider and the W3C trace-context
// propagator as the process globals. The returned function flushes and
// stops the provider.
func SetupTracing(ctx context.Context, opts TracingOptions) (func(context.Context) error, error) {
	tp, err := NewTracerProvider(ctx, opts)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}
