package metrics

import (
	"cmp"
	"context"
	"errors"
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

const exportInterval = 10 * time.Second

// Metrics holds the claim-domain instruments. A nil *Metrics records
// nothing.
type Metrics struct {
	recordWrites     metric.Int64Counter
	imagesStored     metric.Int64Counter
	imagesDropped    metric.Int64Counter
	artifactRenders  metric.Int64Counter
	artifactDuration metric.Float64Histogram
	rateLimitDenied  metric.Int64Counter
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
		return nil, fmt.Errorf("metrics exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(provider)
	if lc != nil {
		lc.Append(fx.StopHook(provider.Shutdown))
	}

	log.Info("metrics exporter started",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
		zap.Duration("interval", exportInterval),
	)
	return provider, nil
}

// New creates the claim-domain instruments on provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(cmp.Or(strings.TrimSpace(cfg.ServiceName), "nanolite"))

	var errs []error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}

	m := &Metrics{
		recordWrites:    counter("nanolite_record_writes_total", "Garansi and order creates and updates."),
		imagesStored:    counter("nanolite_images_stored_total", "Inline images decoded and written to the blob store."),
		imagesDropped:   counter("nanolite_images_dropped_total", "Inline images skipped during ingestion."),
		artifactRenders: counter("nanolite_artifact_renders_total", "PDF and spreadsheet renders."),
		rateLimitDenied: counter("nanolite_rate_limit_denied_total", "Requests rejected by the token bucket."),
	}
	var err error
	m.artifactDuration, err = meter.Float64Histogram("nanolite_artifact_render_seconds",
		metric.WithDescription("Artifact render latency."),
		metric.WithUnit("s"),
	)
	if err = errors.Join(append(errs, err)...); err != nil {
		return nil, err
	}
	return m, nil
}

// NewNoop returns instruments backed by the noop provider, for tests.
func NewNoop() *Metrics {
	m, err := New(Config{}, noop.NewMeterProvider())
	if err != nil {
		panic(fmt.Sprintf("noop metrics: %v", err))
	}
	return m
}

// RecordWrite counts a persisted create or update of a claim record.
func (m *Metrics) RecordWrite(ctx context.Context, entity, operation string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("entity", strings.TrimSpace(entity)),
		attribute.String("operation", strings.TrimSpace(operation)),
	)
	m.recordWrites.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordImageStored counts an inline image written to the blob store.
func (m *Metrics) RecordImageStored(ctx context.Context, folder string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("folder", strings.TrimSpace(folder)))
	m.imagesStored.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordImageDropped counts an inline image skipped during ingestion.
func (m *Metrics) RecordImageDropped(ctx context.Context, folder, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("folder", strings.TrimSpace(folder)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.imagesDropped.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordArtifactRender counts one PDF or spreadsheet render and its latency.
func (m *Metrics) RecordArtifactRender(ctx context.Context, entity, kind, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("entity", strings.TrimSpace(entity)),
		attribute.String("kind", strings.TrimSpace(kind)),
		attribute.String("result", strings.TrimSpace(result)),
	)
	m.artifactRenders.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.artifactDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"entity":      {},
	"operation":   {},
	"folder":      {},
	"kind":        {},
	"result":      {},
	"endpoint":    {},
	"method":      {},
	"status_code": {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
