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
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const exportInterval = 10 * time.Second

// Config controls OTLP export of the domain counters. Prometheus HTTP
// metrics are served separately and do not depend on it.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

func (c Config) meterName() string {
	if name := strings.TrimSpace(c.ServiceName); name != "" {
		return name
	}
	return "rollcall"
}

// Metrics is the set of business counters. A nil *Metrics records nothing.
type Metrics struct {
	coursesCreated    metric.Int64Counter
	sessionsGenerated metric.Int64Counter
	tenantResolutions metric.Int64Counter
}

// NewProvider returns a noop meter provider unless OTLP export is enabled.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if !cfg.Enabled {
		mp := noop.NewMeterProvider()
		otel.SetMeterProvider(mp)
		return mp, nil
	}

	exporter, err := dialExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}
	res, err := resource.New(context.Background(), resource.WithAttributes(
		attribute.String("service.name", cfg.meterName()),
		attribute.String("deployment.environment", cfg.Environment),
	))
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(mp)

	if lc != nil {
		lc.Append(fx.Hook{OnStop: func(ctx context.Context) error {
			log.Info("flushing domain metrics")
			return mp.Shutdown(ctx)
		}})
	}
	log.Info("otlp metrics export enabled",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return mp, nil
}

// New registers the domain counters on the given provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(cfg.meterName())
	m := &Metrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		help string
	}{
		{&m.coursesCreated, "rollcall_courses_created_total", "Courses created, by schedule mode."},
		{&m.sessionsGenerated, "rollcall_sessions_generated_total", "Sessions written when a course is created."},
		{&m.tenantResolutions, "rollcall_tenant_resolutions_total", "Active tenant resolutions, by winning source."},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.help))
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", c.name, err)
		}
		*c.dst = counter
	}
	return m, nil
}

func (m *Metrics) RecordCourseCreated(ctx context.Context, mode string) {
	if m == nil {
		return
	}
	add(ctx, m.coursesCreated, 1, "mode", mode)
}

// RecordSessionsGenerated ignores empty schedules.
func (m *Metrics) RecordSessionsGenerated(ctx context.Context, mode string, count int) {
	if m == nil || count <= 0 {
		return
	}
	add(ctx, m.sessionsGenerated, int64(count), "mode", mode)
}

func (m *Metrics) RecordTenantResolution(ctx context.Context, source string) {
	if m == nil {
		return
	}
	add(ctx, m.tenantResolutions, 1, "source", source)
}

func add(ctx context.Context, counter metric.Int64Counter, n int64, key, value string) {
	attrs := FilterAttributes(attribute.String(key, strings.TrimSpace(value)))
	counter.Add(ctx, n, metric.WithAttributes(attrs...))
}

func dialExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx := context.Background()
	switch p := strings.ToLower(strings.TrimSpace(protocol)); p {
	case "", "grpc", "grpc/protobuf":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case "http", "http/protobuf":
		var opts []otlpmetrichttp.Option
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("metrics: unsupported otlp protocol %q", p)
	}
}

// Label keys that are safe to export. Identifiers such as org_id or user_id
// are unbounded and never become labels.
var lowCardinalityKeys = map[attribute.Key]bool{
	"mode":   true,
	"source": true,
	"route":  true,
	"status": true,
	"reason": true,
}

// FilterAttributes drops every attribute whose key is not low cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := attrs[:0:0]
	for _, kv := range attrs {
		if lowCardinalityKeys[kv.Key] {
			out = append(out, kv)
		}
	}
	return out
}
