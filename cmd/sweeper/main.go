// Command sweeper applies due subscription transitions on a schedule,
// records the daily MRR snapshot and serves health probes.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sourcegraph/conc/pool"

	"github.com/salonkit/billingcore/pkg/config"
	"github.com/salonkit/billingcore/pkg/httpserver"
	"github.com/salonkit/billingcore/pkg/logger"
	"github.com/salonkit/billingcore/pkg/pg"
	"github.com/salonkit/billingcore/pkg/plan"
	"github.com/salonkit/billingcore/pkg/platform"
	"github.com/salonkit/billingcore/pkg/redis"
	"github.com/salonkit/billingcore/pkg/store/pgstore"
	"github.com/salonkit/billingcore/pkg/subscription"
	"github.com/salonkit/billingcore/pkg/sweep"
)

type appConfig struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:""`
	PlanCatalog string `env:"PLAN_CATALOG_PATH"` // YAML catalog upserted at start-up

	Postgres     pg.Config
	Redis        redis.Config
	Sweep        sweep.Config
	HTTP         httpserver.Config
	Subscription subscription.Config
}

func main() {
	// A missing .env file is fine outside development.
	_ = config.LoadEnv()

	var cfg appConfig
	config.MustLoad(&cfg)

	opts := []logger.Option{logger.WithEnvironment(cfg.Env, "sweeper")}
	if cfg.LogLevel != "" {
		opts = append(opts, logger.WithLevel(logger.ParseLevel(cfg.LogLevel)))
	}
	log := logger.New(opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("sweeper stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	db, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := pgstore.Migrate(ctx, db, cfg.Postgres, log); err != nil {
		return err
	}

	if cfg.PlanCatalog != "" {
		src, err := plan.LoadYAMLFile(cfg.PlanCatalog)
		if err != nil {
			return err
		}
		plans, err := src.Load(ctx)
		if err != nil {
			return err
		}
		if err := pgstore.SavePlans(ctx, db, plans); err != nil {
			return err
		}
		log.InfoContext(ctx, "plan catalog saved", logger.Count(len(plans)))
	}

	plans, err := plan.NewRegistry(ctx, pgstore.NewPlanSource(db))
	if err != nil {
		return err
	}

	rdb, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	store := pgstore.New(db)
	machine := subscription.NewMachine(store, plans,
		subscription.WithConfig(cfg.Subscription),
		subscription.WithLogger(log),
	)
	reporter := platform.NewReporter(store, platform.WithLogger(log))
	runner := sweep.NewRunner(machine, cfg.Sweep,
		sweep.WithLocker(redis.NewLocker(rdb, cfg.Redis.LockPrefix)),
		sweep.WithSnapshots(reporter),
		sweep.WithLogger(log),
	)

	probes := httpserver.Probes(log, cfg.HTTP.CheckTimeout,
		httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(db)},
		httpserver.Check{Name: "redis", Fn: redis.Healthcheck(rdb)},
	)
	srv := httpserver.New(cfg.HTTP, httpserver.WithLogger(log))

	p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error { return runner.Run(ctx) })
	p.Go(func(ctx context.Context) error { return srv.Run(ctx, probes) })

	if err := p.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.InfoContext(ctx, "sweeper stopped cleanly")
	return nil
}
