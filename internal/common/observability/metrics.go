package observability

import (
	"context"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability carries the otel meter that records job processing.
type Observability struct {
	meterProvider *metric.MeterProvider
	jobCounter    otelmetric.Int64Counter
	jobDuration   otelmetric.Float64Histogram
}

// New registers an otel prometheus exporter on registerer (the default
// registerer when nil) and returns the job meters. A failing exporter yields
// an Observability whose recorders are no-ops.
func New(serviceName string, registerer promclient.Registerer) (*Observability, error) {
	opts := []prometheus.Option{}
	if registerer != nil {
		opts = append(opts, prometheus.WithRegisterer(registerer))
	}

	exporter, err := prometheus.New(opts...)
	if err != nil {
		return &Observability{}, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter(serviceName)

	jobCounter, err := meter.Int64Counter(
		"staging.jobs.processed",
		otelmetric.WithDescription("Number of staging jobs processed"),
	)
	if err != nil {
		return &Observability{meterProvider: provider}, err
	}

	jobDuration, err := meter.Float64Histogram(
		"staging.jobs.duration",
		otelmetric.WithDescription("Staging job processing duration"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return &Observability{meterProvider: provider}, err
	}

	return &Observability{
		meterProvider: provider,
		jobCounter:    jobCounter,
		jobDuration:   jobDuration,
	}, nil
}

// RecordJob records one processed job of taskType with its outcome.
func (o *Observability) RecordJob(ctx context.Context, taskType, status string, duration time.Duration) {
	attrs := otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("status", status),
	)
	if o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, attrs)
	}
	if o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.meterProvider.Shutdown(ctx)
	}
}
