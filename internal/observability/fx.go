package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/rollcall/internal/config"
	courseservice "github.com/smallbiznis/rollcall/internal/course/service"
	"github.com/smallbiznis/rollcall/internal/observability/logger"
	"github.com/smallbiznis/rollcall/internal/observability/metrics"
	"github.com/smallbiznis/rollcall/internal/observability/tracing"
	"github.com/smallbiznis/rollcall/internal/tenantcontext"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		logger.NewLevel,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
		func() prometheus.Registerer { return prometheus.DefaultRegisterer },
		func() prometheus.Gatherer { return prometheus.DefaultGatherer },
		func(m *metrics.Metrics) tenantcontext.Recorder { return m },
		func(m *metrics.Metrics) courseservice.Recorder { return m },
	),
	// The tracer provider registers itself globally; nothing else asks for it.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
	fx.Invoke(config.WatchLogLevel),
)
