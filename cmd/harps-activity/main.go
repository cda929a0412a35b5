package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/orchestra-survey/harps-pipeline/internal/activity"
	"github.com/orchestra-survey/harps-pipeline/internal/config"
	"github.com/orchestra-survey/harps-pipeline/internal/db"
	"github.com/orchestra-survey/harps-pipeline/internal/logging"
	"github.com/orchestra-survey/harps-pipeline/internal/metrics"
	"github.com/orchestra-survey/harps-pipeline/internal/retry"
	"github.com/orchestra-survey/harps-pipeline/internal/spectra"
)

func main() {
	cfg := config.MustLoad()
	logging.Setup(logging.Config(cfg.Log))
	metrics.Init(metrics.Config(cfg.Metrics))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		sig := <-ch
		log.Printf("[shutdown] received signal: %v", sig)
		cancel()
	}()

	dsn, err := cfg.Database.ResolveDSN()
	if err != nil {
		log.Fatalf("[main] failed to resolve database DSN: %v", err)
	}

	store, err := db.Connect(ctx, dsn)
	if err != nil {
		log.Fatalf("[main] failed to connect to database: %v", err)
	}
	defer store.Close()

	specs, err := spectra.OpenStore(cfg.Measure.DataDir)
	if err != nil {
		log.Fatalf("[main] failed to open spectrum store: %v", err)
	}
	defer specs.Close()

	dialer := activity.DialerFunc(func(ctx context.Context) (activity.Store, error) {
		return db.Dial(ctx, dsn)
	})
	reconnect := retry.Jitter(cfg.Measure.ReconnectMin, cfg.Measure.ReconnectMax)

	pool := activity.NewPool(cfg.Measure.Workers, dialer, specs, reconnect)
	runner := activity.NewRunner(store, specs, pool)

	if err := runner.Run(ctx); err != nil {
		if ctx.Err() != nil {
			log.Printf("[main] shutdown complete")
			return
		}
		log.Fatalf("[main] measurement failed: %v", err)
	}

	log.Println("[main] measurement stopped cleanly")
}
