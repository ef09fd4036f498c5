package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	ConfigFile  string

	// TrustedProxies lists the proxy addresses or CIDRs whose
	// X-Forwarded-For is believed. Empty means the socket address is the
	// client IP.
	TrustedProxies []string

	Auth        AuthConfig
	Tenant      TenantConfig
	RateLimit   RateLimitConfig
	Log         LogConfig
	Otel        OtelConfig
	MetricsPush MetricsPushConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
}

type AuthConfig struct {
	JWTSecret    string
	JWTIssuer    string
	JWTAudience  string
	CookieSecure bool
}

type TenantConfig struct {
	CacheTTLDays int
}

type RateLimitConfig struct {
	Backend       string
	WindowSeconds int
	SweepSeconds  int
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type LogConfig struct {
	Level  string
	Format string
}

type OtelConfig struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64
}

// MetricsPushConfig configures the optional push of the prometheus registry
// to a remote_write endpoint or a pushgateway.
type MetricsPushConfig struct {
	Exporter        string
	Endpoint        string
	IntervalSeconds int
	BearerToken     string
}

const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

const (
	MetricsPushNone        = "none"
	MetricsPushRemoteWrite = "remote_write"
	MetricsPushGateway     = "pushgateway"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	cookieSecure := environment == "production"
	if !cookieSecure {
		cookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	return Config{
		AppName:        getenv("APP_SERVICE", "rollcall"),
		AppVersion:     getenv("APP_VERSION", "0.1.0"),
		Environment:    environment,
		HTTPAddr:       getenv("HTTP_ADDR", ":8080"),
		ConfigFile:     strings.TrimSpace(getenv("CONFIG_FILE", "")),
		TrustedProxies: getenvList("HTTP_TRUSTED_PROXIES"),
		Auth: AuthConfig{
			JWTSecret:    strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
			JWTIssuer:    strings.TrimSpace(getenv("AUTH_JWT_ISSUER", "")),
			JWTAudience:  strings.TrimSpace(getenv("AUTH_JWT_AUDIENCE", "")),
			CookieSecure: cookieSecure,
		},
		Tenant: TenantConfig{
			CacheTTLDays: getenvInt("TENANT_CACHE_TTL_DAYS", 30),
		},
		RateLimit: RateLimitConfig{
			Backend:       normalizeBackend(getenv("RATE_LIMIT_BACKEND", RateLimitBackendMemory)),
			WindowSeconds: getenvInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			SweepSeconds:  getenvInt("RATE_LIMIT_SWEEP_SECONDS", 300),
			RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			RedisPassword: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			RedisDB:       getenvInt("REDIS_DB", 0),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getenv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getenv("LOG_FORMAT", "json")),
		},
		Otel: OtelConfig{
			Enabled:          getenvBool("OTEL_ENABLED", false),
			ExporterEndpoint: strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")),
			ExporterProtocol: strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
			SamplingRatio:    getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
		MetricsPush: MetricsPushConfig{
			Exporter:        normalizePushExporter(getenv("METRICS_PUSH_EXPORTER", MetricsPushNone)),
			Endpoint:        strings.TrimSpace(getenv("METRICS_PUSH_ENDPOINT", "")),
			IntervalSeconds: getenvInt("METRICS_PUSH_INTERVAL_SECONDS", 30),
			BearerToken:     strings.TrimSpace(getenv("METRICS_PUSH_BEARER_TOKEN", "")),
		},
		DBType:            strings.ToLower(getenv("DATABASE_TYPE", "postgres")),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "rollcall"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "rollcall.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

var Module = fx.Module("config",
	fx.Provide(Load),
)

func normalizeBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case RateLimitBackendRedis:
		return RateLimitBackendRedis
	default:
		return RateLimitBackendMemory
	}
}

func normalizePushExporter(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case MetricsPushRemoteWrite, "remote-write", "prometheus_remote_write":
		return MetricsPushRemoteWrite
	case MetricsPushGateway:
		return MetricsPushGateway
	default:
		return MetricsPushNone
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
