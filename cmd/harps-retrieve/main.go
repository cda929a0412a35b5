package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/orchestra-survey/harps-pipeline/internal/archive"
	"github.com/orchestra-survey/harps-pipeline/internal/checkpoint"
	"github.com/orchestra-survey/harps-pipeline/internal/config"
	"github.com/orchestra-survey/harps-pipeline/internal/db"
	"github.com/orchestra-survey/harps-pipeline/internal/logging"
	"github.com/orchestra-survey/harps-pipeline/internal/metrics"
	"github.com/orchestra-survey/harps-pipeline/internal/retrieve"
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

	acc, err := checkpoint.Open(cfg.Retrieve.RequestNumbersPath, cfg.Retrieve.RemotePathsPath, cfg.Retrieve.Resume)
	if errors.Is(err, checkpoint.ErrCheckpointExists) {
		log.Fatalf("[main] %v -- refusing to overwrite prior progress; set RESUME=true or move the files", err)
	}
	if err != nil {
		log.Fatalf("[main] failed to open checkpoint: %v", err)
	}

	client := archive.NewClient(cfg.Archive)
	runner := retrieve.NewRunner(cfg.Retrieve, store, client, acc, nil)

	if err := runner.Run(ctx); err != nil {
		if ctx.Err() != nil {
			log.Printf("[main] shutdown complete")
			return
		}
		log.Fatalf("[main] retrieval failed: %v", err)
	}

	log.Println("[main] retrieval stopped cleanly")
}
