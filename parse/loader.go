package parse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// LoaderConfig controls how a Loader reads its source.
type LoaderConfig struct {
	// BatchSize is the row count used by streaming and synthetic sources.
	// Decoded blobs keep their own sample count.
	BatchSize int

	// PrefetchDepth is the maximum number of decoded, validated batches the
	// loader holds ahead of consumption. Zero decodes synchronously in Next.
	PrefetchDepth int

	// Shuffle and DropLast only affect synthetic and parquet generation of
	// batches; decoded batches are never reordered.
	Shuffle  bool
	DropLast bool

	// Cycle rewinds the source when it is exhausted instead of ending the
	// stream.
	Cycle bool

	Seed int64
}

type LoaderOption func(*Loader)

// WithLogger sets the logger used for debug output. By default nothing is
// logged.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

type fetchResult struct {
	batch *Batch
	err   error
}

// Loader produces validated batches from a Source in strict source order.
//
// With PrefetchDepth > 0 a background goroutine reads, decodes and validates
// ahead of the consumer. It sends into a channel of capacity PrefetchDepth-1
// and holds at most one more result while blocked on that send, so no more
// than PrefetchDepth decoded batches are ever held by the loader.
type Loader struct {
	source  Source
	decoder Decoder
	cfg     LoaderConfig
	logger  *slog.Logger

	// index is the next record index; owned by whoever calls fetch.
	index int

	// synchronous mode
	mu    sync.Mutex
	ended bool

	// prefetch mode
	ctx    context.Context
	cancel context.CancelFunc
	queue  chan fetchResult
	done   chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Open resolves identifier with OpenSource and starts a loader over it. It
// fails with ErrSourceNotFound when the source cannot be read. ctx bounds the
// lifetime of the background producer.
func Open(ctx context.Context, identifier string, cfg LoaderConfig, opts ...LoaderOption) (*Loader, error) {
	source, decoder, err := OpenSource(identifier, cfg)
	if err != nil {
		return nil, err
	}
	return NewLoader(ctx, source, decoder, cfg, opts...), nil
}

// NewLoader starts a loader over an already opened source. The loader takes
// ownership of source and closes it in Close.
func NewLoader(ctx context.Context, source Source, decoder Decoder, cfg LoaderConfig, opts ...LoaderOption) *Loader {
	l := &Loader{
		source:  source,
		decoder: decoder,
		cfg:     cfg,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}

	if cfg.PrefetchDepth > 0 {
		l.ctx, l.cancel = context.WithCancel(ctx)
		l.queue = make(chan fetchResult, cfg.PrefetchDepth-1)
		l.done = make(chan struct{})
		go l.producer()
	}
	l.logger.Debug("loader started", "prefetch_depth", cfg.PrefetchDepth, "cycle", cfg.Cycle)
	return l
}

// Next blocks until the next batch is available and transfers its ownership
// to the caller. A record that fails to decode or validate is reported as a
// *DecodeError or *ValidationError; the loader has already moved past it, so
// the following call returns the next record. ErrEndOfStream marks an
// exhausted source.
func (l *Loader) Next(ctx context.Context) (*Batch, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	if l.queue == nil {
		return l.nextSync(ctx)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res, ok := <-l.queue:
		if ok {
			return res.batch, res.err
		}
		if l.closed.Load() {
			return nil, ErrClosed
		}
		if err := l.ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrEndOfStream
	}
}

func (l *Loader) nextSync(ctx context.Context) (*Batch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed.Load() {
		return nil, ErrClosed
	}
	if l.ended {
		return nil, ErrEndOfStream
	}
	batch, err := l.fetch(ctx)
	if err != nil && !isRecordError(err) && ctx.Err() == nil {
		// end of stream or a failing source: nothing more will be read
		l.ended = true
	}
	return batch, err
}

// producer is the only goroutine touching the source in prefetch mode.
func (l *Loader) producer() {
	defer close(l.done)
	defer close(l.queue)

	for {
		batch, err := l.fetch(l.ctx)
		if errors.Is(err, ErrEndOfStream) {
			l.logger.Debug("source exhausted", "records", l.index)
			return
		}
		if l.ctx.Err() != nil {
			return
		}

		// blocks while the queue is full
		select {
		case l.queue <- fetchResult{batch: batch, err: err}:
		case <-l.ctx.Done():
			return
		}

		if err != nil && !isRecordError(err) {
			l.logger.Debug("source failed, stopping producer", "error", err)
			return
		}
	}
}

// fetch reads, decodes and validates the next record.
func (l *Loader) fetch(ctx context.Context) (*Batch, error) {
	data, err := l.source.Next(ctx)
	if errors.Is(err, ErrEndOfStream) && l.cfg.Cycle && l.index > 0 {
		l.logger.Debug("rewinding source", "records", l.index)
		if err := l.source.Reset(ctx); err != nil {
			return nil, fmt.Errorf("failed to rewind source: %w", err)
		}
		data, err = l.source.Next(ctx)
	}
	if err != nil {
		return nil, err
	}

	index := l.index
	l.index++

	batch, err := l.decoder.Decode(data)
	if err != nil {
		l.logger.Debug("record failed to decode", "index", index, "error", err)
		return nil, &DecodeError{Index: index, Err: err}
	}
	if err := batch.Validate(); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			verr.Index = index
		}
		l.logger.Debug("record failed validation", "index", index, "error", err)
		return nil, err
	}
	return batch, nil
}

// Close stops the producer, drops any buffered batches and closes the
// source. It is safe to call more than once.
func (l *Loader) Close() error {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		if l.cancel != nil {
			l.cancel()
			<-l.done
			for range l.queue {
			}
		}

		l.mu.Lock()
		defer l.mu.Unlock()
		l.closeErr = l.source.Close()
		l.logger.Debug("loader closed", "records", l.index)
	})
	return l.closeErr
}

func isRecordError(err error) bool {
	return errors.Is(err, ErrDecode) || errors.Is(err, ErrValidation)
}
