package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

type Observability struct {
	meterProvider  *metric.MeterProvider
	meter          otelmetric.Meter
	offerCounter   otelmetric.Int64Counter
	acceptDuration otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	offerCounter, _ := meter.Int64Counter(
		"dispatch.offers",
		otelmetric.WithDescription("Number of offers issued"),
	)

	acceptDuration, _ := meter.Float64Histogram(
		"dispatch.accept.duration",
		otelmetric.WithDescription("Accept resolution duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:  provider,
		meter:          meter,
		offerCounter:   offerCounter,
		acceptDuration: acceptDuration,
	}
}

func (o *Observability) RecordOfferIssued(ctx context.Context, category string) {
	if o != nil && o.offerCounter != nil {
		o.offerCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("category", category),
		))
	}
}

func (o *Observability) RecordAcceptDuration(ctx context.Context, duration time.Duration, result string) {
	if o != nil && o.acceptDuration != nil {
		o.acceptDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("result", result),
		))
	}
}

func (o *Observability) Shutdown() {
	if o != nil && o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
