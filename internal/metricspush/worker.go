package metricspush

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/rollcall/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("metrics.push",
	fx.Provide(NewPusher),
	fx.Provide(NewInventory),
	fx.Invoke(Run),
)

// Inventory exposes row counts that are only refreshed before a push.
type Inventory struct {
	db            *gorm.DB
	organizations prometheus.Gauge
	courses       prometheus.Gauge
	sessions      prometheus.Gauge
}

func NewInventory(db *gorm.DB, reg prometheus.Registerer) (*Inventory, error) {
	inv := &Inventory{
		db: db,
		organizations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rollcall_organizations",
			Help: "Organizations stored.",
		}),
		courses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rollcall_courses",
			Help: "Courses stored across all organizations.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rollcall_sessions",
			Help: "Sessions stored across all organizations.",
		}),
	}
	for _, c := range []prometheus.Collector{inv.organizations, inv.courses, inv.sessions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return inv, nil
}

// Refresh recounts the inventory tables. Failed counts keep the last value.
func (i *Inventory) Refresh(ctx context.Context) {
	if i == nil || i.db == nil {
		return
	}
	for table, gauge := range map[string]prometheus.Gauge{
		"organizations": i.organizations,
		"courses":       i.courses,
		"sessions":      i.sessions,
	} {
		var count int64
		if err := i.db.WithContext(ctx).Table(table).Count(&count).Error; err != nil {
			continue
		}
		gauge.Set(float64(count))
	}
}

// Worker pushes on a fixed interval until stopped.
type Worker struct {
	pusher    Pusher
	gatherer  prometheus.Gatherer
	inventory *Inventory
	interval  time.Duration
	log       *zap.Logger

	cancel context.CancelFunc
	done   sync.WaitGroup
}

func NewWorker(pusher Pusher, gatherer prometheus.Gatherer, inventory *Inventory, interval time.Duration, log *zap.Logger) *Worker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		pusher:    pusher,
		gatherer:  gatherer,
		inventory: inventory,
		interval:  interval,
		log:       log.Named("metrics.push"),
	}
}

// PushOnce refreshes the inventory and ships one snapshot.
func (w *Worker) PushOnce(ctx context.Context) error {
	w.inventory.Refresh(ctx)
	pushCtx, cancel := context.WithTimeout(ctx, defaultPushTimeout)
	defer cancel()
	return w.pusher.Push(pushCtx, w.gatherer)
}

func (w *Worker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done.Add(1)
	go func() {
		defer w.done.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := w.PushOnce(ctx); err != nil {
					w.log.Warn("metrics push failed", zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the loop and makes a final push so short-lived processes still
// report.
func (w *Worker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}
	w.done.Wait()
	return w.PushOnce(ctx)
}

// Run attaches the worker to the application lifecycle when a pusher is
// configured.
func Run(lc fx.Lifecycle, cfg config.Config, pusher Pusher, gatherer prometheus.Gatherer, inventory *Inventory, log *zap.Logger) {
	if pusher == nil {
		return
	}
	w := NewWorker(pusher, gatherer, inventory, time.Duration(cfg.MetricsPush.IntervalSeconds)*time.Second, log)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("starting metrics push", zap.String("exporter", cfg.MetricsPush.Exporter))
			w.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := w.Stop(ctx); err != nil {
				log.Warn("final metrics push failed", zap.Error(err))
			}
			return nil
		},
	})
}
