package benchmark

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/chalk-ai/batch-loader-benchmark/parse"
)

// BatchLoader is the consumer side of a loader as seen by the runner.
type BatchLoader interface {
	Next(ctx context.Context) (*parse.Batch, error)
	Close() error
}

// LoaderFactory opens the loader a run is measured against.
type LoaderFactory func(ctx context.Context, cfg Config, logger *slog.Logger) (BatchLoader, error)

// OpenLoader is the default LoaderFactory: a parse.Loader over
// cfg.SourceIdentifier.
func OpenLoader(ctx context.Context, cfg Config, logger *slog.Logger) (BatchLoader, error) {
	loader, err := parse.Open(ctx, cfg.SourceIdentifier, cfg.LoaderConfig(), parse.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return loader, nil
}

// RunError reports where a run failed. Iteration is -1 for failures outside
// an iteration.
type RunError struct {
	Phase     Phase
	Iteration int
	Err       error
}

func (e *RunError) Error() string {
	if e.Iteration < 0 {
		return fmt.Sprintf("%s: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("%s iteration %d: %v", e.Phase, e.Iteration, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

type Option func(*runner)

func WithProcessor(p Processor) Option {
	return func(r *runner) {
		r.processor = p
	}
}

func WithObserver(o Observer) Option {
	return func(r *runner) {
		r.observer = o
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *runner) {
		r.logger = logger
	}
}

func WithLoaderFactory(f LoaderFactory) Option {
	return func(r *runner) {
		r.openLoader = f
	}
}

type runner struct {
	cfg        Config
	processor  Processor
	observer   Observer
	logger     *slog.Logger
	openLoader LoaderFactory
}

// Run drives a loader through WarmupIterations untimed fetch-and-process
// cycles, then times NumIterations more and summarizes their latencies.
//
// Any failure aborts the run and is returned as a *RunError naming the phase
// and iteration; no partial report is produced. The loader is closed on every
// exit path.
func Run(ctx context.Context, cfg Config, opts ...Option) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	r := &runner{
		cfg:        cfg,
		processor:  DefaultProcessor(DefaultProcessingDelay),
		observer:   NopObserver{},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		openLoader: OpenLoader,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r.run(ctx)
}

func (r *runner) run(ctx context.Context) (report *Report, err error) {
	loader, err := r.openLoader(ctx, r.cfg, r.logger)
	if err != nil {
		return nil, &RunError{Phase: PhaseOpen, Iteration: -1, Err: err}
	}
	defer func() {
		if cerr := loader.Close(); cerr != nil && err == nil {
			report, err = nil, fmt.Errorf("failed to close loader: %w", cerr)
		}
	}()

	r.logger.Info("starting benchmark",
		"source", r.cfg.SourceIdentifier,
		"iterations", r.cfg.NumIterations,
		"warmup", r.cfg.WarmupIterations,
		"batch_size", r.cfg.BatchSize,
		"prefetch", r.cfg.PrefetchDepth,
	)

	if err := r.warmup(ctx, loader); err != nil {
		return nil, err
	}
	latencies, err := r.measure(ctx, loader)
	if err != nil {
		return nil, err
	}

	stats, err := Summarize(latencies)
	if err != nil {
		return nil, err
	}
	r.logger.Info("benchmark finished", "mean_ms", stats.Mean, "stddev_ms", stats.StdDev)
	return &Report{
		Stats:       stats,
		Percentiles: CalculatePercentiles(latencies),
		Iterations:  r.cfg.NumIterations,
		BatchSize:   r.cfg.BatchSize,
		Latencies:   latencies,
	}, nil
}

func (r *runner) warmup(ctx context.Context, loader BatchLoader) error {
	total := r.cfg.WarmupIterations
	r.observer.PhaseStarted(PhaseWarmup, total)
	for i := 0; i < total; i++ {
		if err := r.iterate(ctx, loader); err != nil {
			return &RunError{Phase: PhaseWarmup, Iteration: i, Err: err}
		}
		r.progress(PhaseWarmup, i+1, total)
	}
	r.observer.PhaseFinished(PhaseWarmup)
	return nil
}

func (r *runner) measure(ctx context.Context, loader BatchLoader) ([]float64, error) {
	total := r.cfg.NumIterations
	latencies := make([]float64, 0, total)
	r.observer.PhaseStarted(PhaseMeasure, total)
	for i := 0; i < total; i++ {
		start := time.Now()
		if err := r.iterate(ctx, loader); err != nil {
			return nil, &RunError{Phase: PhaseMeasure, Iteration: i, Err: err}
		}
		latencies = append(latencies, float64(time.Since(start))/float64(time.Millisecond))
		r.progress(PhaseMeasure, i+1, total)
	}
	r.observer.PhaseFinished(PhaseMeasure)
	return latencies, nil
}

func (r *runner) iterate(ctx context.Context, loader BatchLoader) error {
	batch, err := loader.Next(ctx)
	if err != nil {
		return err
	}
	return r.processor.Process(ctx, batch)
}

func (r *runner) progress(phase Phase, done, total int) {
	if done%r.cfg.ProgressEvery == 0 || done == total {
		r.observer.Progress(phase, done, total)
	}
}
