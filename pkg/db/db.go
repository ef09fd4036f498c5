package db

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/rollcall/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	gormprometheus "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(ConfigFromApp),
	fx.Provide(NewDB),
)

// NewDB opens the configured database, installs the tracing and pool
// metrics plugins and closes the pool on shutdown.
func NewDB(lc fx.Lifecycle, cfg Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	gormCfg := logger.DefaultGormLoggerConfig()
	if cfg.Debug {
		gormCfg.Level = gormlogger.Info
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.NewGormLogger(gormCfg),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Type, err)
	}

	if err := installPlugins(conn, cfg); err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	configurePool(sqlDB, cfg)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return sqlDB.PingContext(ctx)
			},
			OnStop: func(context.Context) error {
				log.Info("closing database pool")
				return sqlDB.Close()
			},
		})
	}

	log.Info("database configured", zap.String("type", cfg.Type), zap.String("name", cfg.Name))
	return conn, nil
}

type poolSetter interface {
	SetMaxIdleConns(int)
	SetMaxOpenConns(int)
	SetConnMaxLifetime(time.Duration)
	SetConnMaxIdleTime(time.Duration)
}

func configurePool(p poolSetter, cfg Config) {
	if cfg.MaxIdleConn > 0 {
		p.SetMaxIdleConns(cfg.MaxIdleConn)
	}
	if cfg.MaxOpenConn > 0 {
		p.SetMaxOpenConns(cfg.MaxOpenConn)
	}
	if cfg.ConnMaxLifetime > 0 {
		p.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}
	if cfg.ConnMaxIdleTime > 0 {
		p.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Second)
	}
}

func installPlugins(conn *gorm.DB, cfg Config) error {
	if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithDBName(cfg.Name))); err != nil {
		return fmt.Errorf("install otelgorm: %w", err)
	}

	promCfg := gormprometheus.Config{
		DBName:          metricsDBName(cfg),
		RefreshInterval: 15,
		Labels:          map[string]string{"service": cfg.ServiceName},
	}
	if cfg.Type == TypePostgres {
		promCfg.MetricsCollector = []gormprometheus.MetricsCollector{
			&gormprometheus.Postgres{VariableNames: []string{"Threads_running"}},
		}
	}
	if err := conn.Use(gormprometheus.New(promCfg)); err != nil {
		return fmt.Errorf("install gorm prometheus: %w", err)
	}
	return nil
}

func metricsDBName(cfg Config) string {
	if cfg.Type == TypeSQLite {
		return "sqlite"
	}
	if cfg.Name == "" {
		return cfg.Type
	}
	return cfg.Name
}
