package activity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/orchestra-survey/harps-pipeline/internal/db"
	"github.com/orchestra-survey/harps-pipeline/internal/logging"
	"github.com/orchestra-survey/harps-pipeline/internal/metrics"
	"github.com/orchestra-survey/harps-pipeline/internal/retry"
	"github.com/orchestra-survey/harps-pipeline/internal/spectra"
)

// Store is the per-worker database surface. One Store belongs to exactly
// one worker at a time and is replaced wholesale after a connection
// failure.
type Store interface {
	StellarRV(ctx context.Context, dateObs string) (float64, error)
	InsertActivity(ctx context.Context, m db.Measurement) error
	Close(ctx context.Context) error
}

// Dialer opens fresh worker connections.
type Dialer interface {
	Dial(ctx context.Context) (Store, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Store, error)

func (f DialerFunc) Dial(ctx context.Context) (Store, error) { return f(ctx) }

// Opener yields spectrum file contents by key.
type Opener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Outcome classifies what happened to one spectrum file.
type Outcome int

const (
	// OutcomeMeasured means an index was computed and ingested.
	OutcomeMeasured Outcome = iota
	// OutcomeUndefined means the reference velocity was non-finite and
	// the NaN sentinel measurement was ingested instead.
	OutcomeUndefined
	// OutcomeSkipped means a data-quality problem; the file is dropped
	// permanently with a log line.
	OutcomeSkipped
)

// Result is the per-file outcome emitted by the pool.
type Result struct {
	Key         string
	Outcome     Outcome
	Measurement db.Measurement
	Reason      string
	Err         error
}

// Pool distributes spectrum files over a fixed number of workers through
// a shared task queue, so a slow file does not stall a whole
// statically-assigned chunk. Each worker owns one database connection.
type Pool struct {
	workers   int
	dialer    Dialer
	opener    Opener
	reconnect retry.Policy
	log       *slog.Logger
}

// NewPool creates a measurement worker pool. A nil reconnect policy
// defaults to an unbounded 5-10s jitter.
func NewPool(workers int, dialer Dialer, opener Opener, reconnect retry.Policy) *Pool {
	if workers < 1 {
		workers = 1
	}
	if reconnect == nil {
		reconnect = retry.Jitter(5*time.Second, 10*time.Second)
	}
	return &Pool{
		workers:   workers,
		dialer:    dialer,
		opener:    opener,
		reconnect: reconnect,
		log:       slog.With("component", "pool"),
	}
}

// Run processes every key and returns the per-file results. Only
// database connectivity failures are retried (same file, fresh
// connection, jittered wait); data-quality failures come back as skipped
// results. With the default unbounded policy Run does not give up on
// connectivity loss, matching the at-least-once ingest contract.
func (p *Pool) Run(ctx context.Context, keys []string) ([]Result, error) {
	queue := make(chan string)
	resultCh := make(chan Result, len(keys))
	errCh := make(chan error, p.workers)
	done := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := p.workerLoop(ctx, id, queue, resultCh); err != nil {
				errCh <- err
			}
		}(i)
	}

	go func() {
		defer close(queue)
		for _, key := range keys {
			select {
			case queue <- key:
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	wg.Wait()
	close(done)
	close(resultCh)
	close(errCh)

	results := make([]Result, 0, len(keys))
	for res := range resultCh {
		results = append(results, res)
	}
	for err := range errCh {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// workerLoop drains the queue with one connection, redialing on
// connectivity loss and retrying the in-flight file.
func (p *Pool) workerLoop(ctx context.Context, id int, queue <-chan string, results chan<- Result) error {
	log := logging.WorkerLogger(id)

	store, err := p.redial(ctx, log, nil)
	if err != nil {
		return err
	}

	for key := range queue {
		attempt := 0
		for {
			if store == nil {
				store, err = p.redial(ctx, log, &attempt)
				if err != nil {
					return fmt.Errorf("worker %d: %w", id, err)
				}
			}

			res, err := p.processFile(ctx, log, store, key)
			if err == nil {
				results <- res
				break
			}
			if ctx.Err() != nil {
				_ = store.Close(ctx)
				return ctx.Err()
			}

			log.Warn("lost database connection, reconnecting", "key", key, "error", err)
			_ = store.Close(ctx)
			store = nil
		}
	}

	return store.Close(ctx)
}

// redial opens a fresh connection, waiting with jitter before each
// attempt when attempt tracking is supplied. Dial failures count as
// further attempts against the policy.
func (p *Pool) redial(ctx context.Context, log *slog.Logger, attempt *int) (Store, error) {
	for {
		if attempt != nil {
			*attempt++
			if m := metrics.Get(); m != nil {
				m.Reconnects.Inc()
			}
			if err := retry.Wait(ctx, p.reconnect, *attempt); err != nil {
				return nil, err
			}
		}

		store, err := p.dialer.Dial(ctx)
		if err == nil {
			return store, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == nil {
			// Initial dial has no retry budget of its own.
			return nil, err
		}
		log.Warn("reconnect failed", "error", err)
	}
}

// processFile measures one spectrum and ingests the result. A non-nil
// error means the connection is unusable and the same file must be
// retried on a fresh one; everything else is folded into the Result.
func (p *Pool) processFile(ctx context.Context, log *slog.Logger, store Store, key string) (Result, error) {
	start := time.Now()

	rc, err := p.opener.Open(ctx, key)
	if err != nil {
		return p.skip(log, key, "open", err), nil
	}
	spec, err := spectra.ReadSpectrum(rc, key)
	_ = rc.Close()
	if err != nil {
		return p.skip(log, key, "fits", err), nil
	}

	rv, err := store.StellarRV(ctx, spec.DateObs)
	if errors.Is(err, db.ErrNoRV) {
		log.Warn("no headers ingested for observation", "date_obs", spec.DateObs, "filename", spec.Filename)
		return p.skip(log, key, "no_rv", err), nil
	}
	if err != nil {
		if db.IsConnectionError(err) {
			return Result{}, err
		}
		return p.skip(log, key, "rv_query", err), nil
	}

	m := db.Measurement{DateObs: spec.DateObs, Filename: spec.Filename}
	outcome := OutcomeMeasured

	if math.IsNaN(rv) || math.IsInf(rv, 0) {
		// Cannot shift to the rest frame; record the sentinel instead of
		// a computed number.
		m.SHK, m.ESHK = math.NaN(), math.NaN()
		outcome = OutcomeUndefined
		log.Warn("radial velocity is not finite",
			"date_obs", spec.DateObs, "filename", spec.Filename)
	} else {
		s, e, err := SHKIndex(spec.Wavelength, spec.Flux, rv)
		if err != nil {
			return p.skip(log, key, "index", err), nil
		}
		m.SHK, m.ESHK = s, e
		log.Info("measured activity index",
			"s_hk", fmt.Sprintf("%.2f", s),
			"e_s_hk", fmt.Sprintf("%.2e", e),
			"object", spec.Object,
			"filename", spec.Filename,
			"date_obs", spec.DateObs,
		)
	}

	if err := store.InsertActivity(ctx, m); err != nil {
		if db.IsConnectionError(err) {
			return Result{}, err
		}
		// Constraint violations and data exceptions are data-quality
		// failures; the file is dropped without retry.
		return p.skip(log, key, "insert", err), nil
	}

	if mt := metrics.Get(); mt != nil {
		mt.MeasureDuration.Observe(time.Since(start).Seconds())
		switch outcome {
		case OutcomeUndefined:
			mt.UndefinedMeasurements.Inc()
		default:
			mt.FilesMeasured.Inc()
		}
	}

	return Result{Key: key, Outcome: outcome, Measurement: m}, nil
}

func (p *Pool) skip(log *slog.Logger, key, reason string, err error) Result {
	log.Warn("skipping spectrum", "key", key, "reason", reason, "error", err)
	if m := metrics.Get(); m != nil {
		m.FilesSkipped.WithLabelValues(reason).Inc()
	}
	return Result{Key: key, Outcome: OutcomeSkipped, Reason: reason, Err: err}
}
