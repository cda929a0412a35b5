// Package retrieve drives the batch retrieval pipeline: pending datasets
// are partitioned into fixed-size batches, each batch is submitted to the
// archive, polled to completion, and its remote paths accumulated, with
// the final result rendered as a download script.
package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/orchestra-survey/harps-pipeline/internal/checkpoint"
	"github.com/orchestra-survey/harps-pipeline/internal/config"
	"github.com/orchestra-survey/harps-pipeline/internal/logging"
	"github.com/orchestra-survey/harps-pipeline/internal/metrics"
	"github.com/orchestra-survey/harps-pipeline/internal/retry"
)

// DatasetSource yields the dataset identifiers still awaiting retrieval.
type DatasetSource interface {
	PendingDatasets(ctx context.Context) ([]string, error)
}

// Archive is the portal surface the runner needs.
type Archive interface {
	Submit(ctx context.Context, datasets []string) (int, error)
	AwaitComplete(ctx context.Context, requestNumber int, policy retry.Policy) error
	FetchPaths(ctx context.Context, requestNumber int) ([]string, error)
}

// Runner orchestrates the retrieval pipeline. Strictly sequential: one
// batch is fully submitted, polled, and extracted before the next begins.
type Runner struct {
	cfg  config.RetrieveConfig
	src  DatasetSource
	arc  Archive
	acc  *checkpoint.Accumulator
	poll retry.Policy
	log  *slog.Logger
}

// NewRunner wires a retrieval runner. A nil poll policy defaults to the
// configured fixed wait time, unbounded.
func NewRunner(cfg config.RetrieveConfig, src DatasetSource, arc Archive, acc *checkpoint.Accumulator, poll retry.Policy) *Runner {
	if poll == nil {
		poll = retry.Fixed(cfg.WaitTime)
	}
	return &Runner{
		cfg:  cfg,
		src:  src,
		arc:  arc,
		acc:  acc,
		poll: poll,
		log:  slog.With("component", "retrieve"),
	}
}

// Run executes the full pipeline and renders the download script.
func (r *Runner) Run(ctx context.Context) error {
	datasets, err := r.src.PendingDatasets(ctx)
	if err != nil {
		return fmt.Errorf("load pending datasets: %w", err)
	}

	batches := PartitionDatasets(datasets, r.cfg.BatchSize)

	skip := r.cfg.Skip
	if r.cfg.Resume {
		skip = r.acc.CompletedBatches()
		r.log.Info("resuming from checkpoint", "completed_batches", skip)
	}

	r.log.Info("starting retrieval",
		"datasets", len(datasets),
		"batches", len(batches),
		"batch_size", r.cfg.BatchSize,
		"skip", skip,
	)

	startTime := time.Now()

	for i, batch := range batches {
		if i < skip {
			r.log.Info("skipping batch", "batch", i+1, "batches_total", len(batches))
			continue
		}

		log := logging.BatchLogger(uuid.New().String(), i+1, len(batches))

		if err := r.runBatch(ctx, log, batch); err != nil {
			return fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
		}
	}

	if err := RenderScript(r.cfg.TemplatePath, r.cfg.ScriptPath, r.acc.Paths()); err != nil {
		return err
	}

	r.log.Info("retrieval complete",
		"requests", len(r.acc.Requests()),
		"remote_paths", len(r.acc.Paths()),
		"script", r.cfg.ScriptPath,
		"duration", time.Since(startTime).String(),
	)
	r.log.Info("next steps: run the download script, untar the products, then ingest headers")

	return nil
}

// runBatch submits one batch, checkpoints its request number, waits for
// the archive to prepare it, and checkpoints the extracted paths.
func (r *Runner) runBatch(ctx context.Context, log *slog.Logger, batch []string) error {
	log.Info("submitting batch", "datasets", len(batch))

	requestNumber, err := r.arc.Submit(ctx, batch)
	if err != nil {
		// Fatal: no retry. Resubmission risks duplicate archive-side
		// requests.
		return err
	}
	if m := metrics.Get(); m != nil {
		m.BatchesSubmitted.Inc()
	}

	if err := r.acc.AppendRequest(requestNumber); err != nil {
		return err
	}
	log.Info("batch accepted", "request_number", requestNumber)

	if err := r.arc.AwaitComplete(ctx, requestNumber, r.poll); err != nil {
		return err
	}
	if m := metrics.Get(); m != nil {
		m.BatchesCompleted.Inc()
	}

	paths, err := r.arc.FetchPaths(ctx, requestNumber)
	if err != nil {
		return err
	}

	if err := r.acc.AppendPaths(paths); err != nil {
		return err
	}
	if m := metrics.Get(); m != nil {
		m.RemotePaths.Add(float64(len(paths)))
	}

	log.Info("remote paths recorded",
		"request_number", requestNumber,
		"paths", len(paths),
		"paths_total", len(r.acc.Paths()),
	)
	return nil
}
