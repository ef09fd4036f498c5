package observability

import (
	"strings"

	"github.com/smallbiznis/rollcall/internal/config"
	"github.com/smallbiznis/rollcall/internal/observability/logger"
	"github.com/smallbiznis/rollcall/internal/observability/metrics"
	"github.com/smallbiznis/rollcall/internal/observability/tracing"
	"go.uber.org/fx"
)

// Config is the process identity shared by logs, spans and metrics.
type Config struct {
	ServiceName string
	Environment string
	Version     string
	LogLevel    string
}

// Debug enables verbose request logs in local environments or when the log
// level asks for it.
func (c Config) Debug() bool {
	if strings.EqualFold(c.LogLevel, "debug") {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

// Settings fans the app config out to each telemetry component.
type Settings struct {
	fx.Out

	Identity Config
	Logger   logger.Config
	Tracing  tracing.Config
	Metrics  metrics.Config
}

func LoadConfig(cfg config.Config) Settings {
	id := Config{
		ServiceName: orDefault(cfg.AppName, "rollcall"),
		Environment: strings.TrimSpace(cfg.Environment),
		Version:     strings.TrimSpace(cfg.AppVersion),
		LogLevel:    strings.TrimSpace(cfg.Log.Level),
	}
	protocol := orDefault(cfg.Otel.ExporterProtocol, "grpc")
	endpoint := strings.TrimSpace(cfg.Otel.ExporterEndpoint)
	debug := id.Debug()

	return Settings{
		Identity: id,
		Logger: logger.Config{
			ServiceName:         id.ServiceName,
			Environment:         id.Environment,
			Version:             id.Version,
			Level:               id.LogLevel,
			Format:              strings.TrimSpace(cfg.Log.Format),
			Debug:               debug,
			IncludeCaller:       true,
			IncludeStackOnError: debug,
		},
		Tracing: tracing.Config{
			Enabled:          cfg.Otel.Enabled,
			ServiceName:      id.ServiceName,
			ServiceVersion:   id.Version,
			Environment:      id.Environment,
			ExporterEndpoint: endpoint,
			ExporterProtocol: protocol,
			SamplingRatio:    cfg.Otel.SamplingRatio,
		},
		Metrics: metrics.Config{
			Enabled:          cfg.Otel.Enabled,
			ExporterEndpoint: endpoint,
			ExporterProtocol: protocol,
			ServiceName:      id.ServiceName,
			Environment:      id.Environment,
		},
	}
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
