package activity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/orchestra-survey/harps-pipeline/internal/spectra"
)

// FilenameSource yields the filenames already ingested into the database.
type FilenameSource interface {
	IngestedFilenames(ctx context.Context) ([]string, error)
}

// Lister discovers local reduced spectra.
type Lister interface {
	ListReduced(ctx context.Context) ([]string, error)
}

// Runner wires discovery, the already-processed filter, and the worker
// pool into the measurement pipeline.
type Runner struct {
	filenames FilenameSource
	lister    Lister
	pool      *Pool
	log       *slog.Logger
}

// NewRunner creates a measurement runner.
func NewRunner(filenames FilenameSource, lister Lister, pool *Pool) *Runner {
	return &Runner{
		filenames: filenames,
		lister:    lister,
		pool:      pool,
		log:       slog.With("component", "measure"),
	}
}

// Run discovers spectra, drops the ones already ingested, and measures
// the rest. Per-file failures surface only as logs and skipped results;
// the error return covers wiring-level failures and exhausted reconnect
// budgets.
func (r *Runner) Run(ctx context.Context) error {
	keys, err := r.lister.ListReduced(ctx)
	if err != nil {
		return fmt.Errorf("discover spectra: %w", err)
	}
	r.log.Info("found reduced spectra", "count", len(keys))

	ingested, err := r.filenames.IngestedFilenames(ctx)
	if err != nil {
		return fmt.Errorf("load ingested filenames: %w", err)
	}

	work := spectra.FilterProcessed(keys, ingested)
	r.log.Info("work after already-processed filter",
		"candidates", len(keys),
		"already_done", len(keys)-len(work),
		"to_measure", len(work),
	)

	startTime := time.Now()
	results, runErr := r.pool.Run(ctx, work)

	var measured, undefined, skipped int
	for _, res := range results {
		switch res.Outcome {
		case OutcomeMeasured:
			measured++
		case OutcomeUndefined:
			undefined++
		case OutcomeSkipped:
			skipped++
		}
	}

	r.log.Info("measurement run finished",
		"measured", measured,
		"undefined", undefined,
		"skipped", skipped,
		"duration", time.Since(startTime).String(),
	)

	return runErr
}
