package benchmark

import (
	"context"
	"time"

	"github.com/chalk-ai/batch-loader-benchmark/parse"
)

// DefaultProcessingDelay is the simulated per-batch work of the default
// processor.
const DefaultProcessingDelay = time.Millisecond

// Processor is the consumer-side step timed together with each fetch.
type Processor interface {
	Process(ctx context.Context, batch *parse.Batch) error
}

type ProcessorFunc func(ctx context.Context, batch *parse.Batch) error

func (f ProcessorFunc) Process(ctx context.Context, batch *parse.Batch) error {
	return f(ctx, batch)
}

// SleepProcessor simulates a fixed amount of work per batch.
type SleepProcessor struct {
	Delay time.Duration
}

func (p SleepProcessor) Process(ctx context.Context, _ *parse.Batch) error {
	if p.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ConvertProcessor stacks the batch features into a dense matrix, the
// conversion a training step performs before handing data to a model.
type ConvertProcessor struct{}

func (ConvertProcessor) Process(_ context.Context, batch *parse.Batch) error {
	_ = batch.Matrix()
	return nil
}

// Chain runs processors in order and stops at the first error.
type Chain []Processor

func (c Chain) Process(ctx context.Context, batch *parse.Batch) error {
	for _, p := range c {
		if err := p.Process(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

// DefaultProcessor converts the batch and then simulates delay of work.
func DefaultProcessor(delay time.Duration) Processor {
	return Chain{ConvertProcessor{}, SleepProcessor{Delay: delay}}
}
