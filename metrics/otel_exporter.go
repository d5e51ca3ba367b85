package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

/* OTelExporter records relay and forwarding instruments and serves them in Prometheus format
 * Gauges are observed from the Collector at scrape time; a nil Collector disables them
 */
type OTelExporter struct {
	meterProvider *sdkmetric.MeterProvider
	registry      *prom.Registry
	collector     Collector

	meter             metric.Meter
	deliveries        metric.Int64Counter
	deliveryDuration  metric.Float64Histogram
	executions        metric.Int64Counter
	executionDuration metric.Float64Histogram
	filtered          metric.Int64Counter
}

// NewOTelExporter creates the exporter on its own Prometheus registry
func NewOTelExporter(collector Collector) (*OTelExporter, error) {
	registry := prom.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(meterProvider)

	oe := &OTelExporter{
		meterProvider: meterProvider,
		registry:      registry,
		collector:     collector,
		meter:         meterProvider.Meter("webhook-relay", metric.WithInstrumentationVersion("1.0.0")),
	}
	if err := oe.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}
	return oe, nil
}

func (oe *OTelExporter) registerInstruments() error {
	var err error

	oe.deliveries, err = oe.meter.Int64Counter(
		"relay.deliveries",
		metric.WithDescription("Events delivered to the local service by terminal status"),
		metric.WithUnit("{events}"),
	)
	if err != nil {
		return fmt.Errorf("creating deliveries counter: %w", err)
	}

	oe.deliveryDuration, err = oe.meter.Float64Histogram(
		"relay.delivery.duration",
		metric.WithDescription("Time to deliver an event to the local service"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("creating delivery duration histogram: %w", err)
	}

	oe.executions, err = oe.meter.Int64Counter(
		"forwarding.executions",
		metric.WithDescription("Forwarding executions by destination type and outcome"),
		metric.WithUnit("{executions}"),
	)
	if err != nil {
		return fmt.Errorf("creating executions counter: %w", err)
	}

	oe.executionDuration, err = oe.meter.Float64Histogram(
		"forwarding.execution.duration",
		metric.WithDescription("Time from rule start to dispatch completion"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("creating execution duration histogram: %w", err)
	}

	oe.filtered, err = oe.meter.Int64Counter(
		"forwarding.filtered",
		metric.WithDescription("Rules skipped because their filter rejected the event"),
		metric.WithUnit("{rules}"),
	)
	if err != nil {
		return fmt.Errorf("creating filtered counter: %w", err)
	}

	if oe.collector == nil {
		return nil
	}

	_, err = oe.meter.Int64ObservableGauge(
		"relay.events.status.count",
		metric.WithDescription("Number of events by status"),
		metric.WithUnit("{events}"),
		metric.WithInt64Callback(oe.observeStatusCounts),
	)
	if err != nil {
		return fmt.Errorf("creating status count gauge: %w", err)
	}

	_, err = oe.meter.Int64ObservableGauge(
		"relay.connections.open",
		metric.WithDescription("Number of open relay connections per endpoint"),
		metric.WithUnit("{connections}"),
		metric.WithInt64Callback(oe.observeOpenConnections),
	)
	if err != nil {
		return fmt.Errorf("creating open connections gauge: %w", err)
	}

	return nil
}

func (oe *OTelExporter) DeliveryFinished(ctx context.Context, endpointID, status string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("endpoint.id", endpointID),
		attribute.String("event.status", status),
	)
	oe.deliveries.Add(ctx, 1, attrs)
	oe.deliveryDuration.Record(ctx, milliseconds(elapsed), attrs)
}

func (oe *OTelExporter) ExecutionFinished(ctx context.Context, destinationType string, success bool, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("destination.type", destinationType),
		attribute.Bool("success", success),
	)
	oe.executions.Add(ctx, 1, attrs)
	oe.executionDuration.Record(ctx, milliseconds(elapsed), attrs)
}

func (oe *OTelExporter) Filtered(ctx context.Context, endpointID string) {
	oe.filtered.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint.id", endpointID)))
}

func (oe *OTelExporter) observeStatusCounts(ctx context.Context, observer metric.Int64Observer) error {
	counts, err := oe.collector.GetStatusCounts(ctx)
	if err != nil {
		return err
	}
	for status, count := range counts {
		observer.Observe(count, metric.WithAttributes(attribute.String("event.status", status)))
	}
	return nil
}

func (oe *OTelExporter) observeOpenConnections(ctx context.Context, observer metric.Int64Observer) error {
	open, err := oe.collector.GetOpenConnections(ctx)
	if err != nil {
		return err
	}
	for endpointID, count := range open {
		observer.Observe(count, metric.WithAttributes(attribute.String("endpoint.id", endpointID)))
	}
	return nil
}

// Handler serves the registry in Prometheus text format
func (oe *OTelExporter) Handler() http.Handler {
	return promhttp.HandlerFor(oe.registry, promhttp.HandlerOpts{})
}

func (oe *OTelExporter) Shutdown(ctx context.Context) error {
	if oe.meterProvider != nil {
		return oe.meterProvider.Shutdown(ctx)
	}
	return nil
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
