package parse

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func arrowBlobs(t *testing.T, batches ...*Batch) [][]byte {
	t.Helper()
	blobs := make([][]byte, len(batches))
	for i, b := range batches {
		data, err := EncodeArrow(b)
		require.NoError(t, err)
		blobs[i] = data
	}
	return blobs
}

func numberedBatches(n int) []*Batch {
	batches := make([]*Batch, n)
	for i := range batches {
		batches[i] = testBatch("1", fmt.Sprintf("b%d", i))
	}
	return batches
}

// countingDecoder counts every decode attempt.
type countingDecoder struct {
	decodes atomic.Int64
}

func (d *countingDecoder) Decode(data []byte) (*Batch, error) {
	d.decodes.Add(1)
	return ArrowDecoder{}.Decode(data)
}

// stuckSource never produces a record until its context ends.
type stuckSource struct {
	closed atomic.Bool
}

func (s *stuckSource) Next(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *stuckSource) Reset(context.Context) error { return nil }

func (s *stuckSource) Close() error {
	s.closed.Store(true)
	return nil
}

// failingSource returns its blobs, then err.
type failingSource struct {
	MemorySource
	err error
}

func (s *failingSource) Next(ctx context.Context) ([]byte, error) {
	data, err := s.MemorySource.Next(ctx)
	if errors.Is(err, ErrEndOfStream) {
		return nil, s.err
	}
	return data, err
}

func TestLoaderPreservesOrderForEveryDepth(t *testing.T) {
	const n = 6
	blobs := arrowBlobs(t, numberedBatches(n)...)

	for depth := 0; depth <= n; depth++ {
		t.Run(fmt.Sprintf("depth=%d", depth), func(t *testing.T) {
			ctx := context.Background()
			loader := NewLoader(ctx, NewMemorySource(blobs...), ArrowDecoder{}, LoaderConfig{PrefetchDepth: depth})
			defer loader.Close()

			for i := 0; i < n; i++ {
				b, err := loader.Next(ctx)
				require.NoError(t, err)
				assert.Equal(t, fmt.Sprintf("b%d", i), b.Samples[0].ID)
			}
			_, err := loader.Next(ctx)
			assert.ErrorIs(t, err, ErrEndOfStream)
			_, err = loader.Next(ctx)
			assert.ErrorIs(t, err, ErrEndOfStream)
		})
	}
}

func TestLoaderPrefetchIsBounded(t *testing.T) {
	const depth = 3
	ctx := context.Background()
	decoder := &countingDecoder{}
	loader := NewLoader(ctx, NewMemorySource(arrowBlobs(t, numberedBatches(10)...)...), decoder, LoaderConfig{PrefetchDepth: depth})
	defer loader.Close()

	require.Eventually(t, func() bool { return decoder.decodes.Load() == depth }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, depth, decoder.decodes.Load(), "producer must stop when the buffer is full")

	for consumed := 1; consumed <= 4; consumed++ {
		_, err := loader.Next(ctx)
		require.NoError(t, err)
		want := int64(consumed + depth)
		require.Eventually(t, func() bool { return decoder.decodes.Load() == want }, time.Second, time.Millisecond)
		time.Sleep(5 * time.Millisecond)
		assert.LessOrEqual(t, decoder.decodes.Load()-int64(consumed), int64(depth))
	}
}

func TestLoaderSynchronousModeDecodesOnDemand(t *testing.T) {
	ctx := context.Background()
	decoder := &countingDecoder{}
	loader := NewLoader(ctx, NewMemorySource(arrowBlobs(t, numberedBatches(3)...)...), decoder, LoaderConfig{})
	defer loader.Close()

	time.Sleep(10 * time.Millisecond)
	assert.EqualValues(t, 0, decoder.decodes.Load())
	_, err := loader.Next(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, decoder.decodes.Load())
}

func TestLoaderSurfacesBadRecordsAndAdvances(t *testing.T) {
	valid := arrowBlobs(t, testBatch("1", "first"), testBatch("", "unversioned"), testBatch("1", "last"))
	empty := testBatch("1", "ok", "hollow")
	empty.Samples[1].Features = nil
	emptyBlob := arrowBlobs(t, empty)[0]

	blobs := [][]byte{valid[0], valid[1], []byte("garbage"), emptyBlob, valid[2]}

	for _, depth := range []int{0, 1, 2, 8} {
		t.Run(fmt.Sprintf("depth=%d", depth), func(t *testing.T) {
			ctx := context.Background()
			loader := NewLoader(ctx, NewMemorySource(blobs...), ArrowDecoder{}, LoaderConfig{PrefetchDepth: depth})
			defer loader.Close()

			b, err := loader.Next(ctx)
			require.NoError(t, err)
			assert.Equal(t, "first", b.Samples[0].ID)

			_, err = loader.Next(ctx)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, 1, verr.Index)
			assert.Equal(t, "missing version", verr.Reason)

			_, err = loader.Next(ctx)
			var derr *DecodeError
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, 2, derr.Index)
			assert.ErrorIs(t, err, ErrDecode)

			_, err = loader.Next(ctx)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), "empty features for sample hollow")

			b, err = loader.Next(ctx)
			require.NoError(t, err)
			assert.Equal(t, "last", b.Samples[0].ID)

			_, err = loader.Next(ctx)
			assert.ErrorIs(t, err, ErrEndOfStream)
		})
	}
}

func TestLoaderSourceFailureIsTerminal(t *testing.T) {
	boom := errors.New("disk on fire")
	for _, depth := range []int{0, 2} {
		ctx := context.Background()
		src := &failingSource{MemorySource: *NewMemorySource(arrowBlobs(t, testBatch("1", "a"))...), err: boom}
		loader := NewLoader(ctx, src, ArrowDecoder{}, LoaderConfig{PrefetchDepth: depth})

		_, err := loader.Next(ctx)
		require.NoError(t, err)
		_, err = loader.Next(ctx)
		assert.ErrorIs(t, err, boom)
		_, err = loader.Next(ctx)
		assert.ErrorIs(t, err, ErrEndOfStream)
		require.NoError(t, loader.Close())
	}
}

func TestLoaderCycleRewindsSource(t *testing.T) {
	ctx := context.Background()
	for _, depth := range []int{0, 2} {
		loader := NewLoader(ctx, NewMemorySource(arrowBlobs(t, numberedBatches(2)...)...), ArrowDecoder{}, LoaderConfig{PrefetchDepth: depth, Cycle: true})
		for i := 0; i < 5; i++ {
			b, err := loader.Next(ctx)
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("b%d", i%2), b.Samples[0].ID)
		}
		require.NoError(t, loader.Close())
	}
}

func TestLoaderCycleOnEmptySourceEnds(t *testing.T) {
	ctx := context.Background()
	loader := NewLoader(ctx, NewMemorySource(), ArrowDecoder{}, LoaderConfig{Cycle: true})
	defer loader.Close()
	_, err := loader.Next(ctx)
	assert.ErrorIs(t, err, ErrEndOfStream)
}

func TestLoaderNextHonorsCancellation(t *testing.T) {
	for _, depth := range []int{0, 2} {
		t.Run(fmt.Sprintf("depth=%d", depth), func(t *testing.T) {
			src := &stuckSource{}
			loader := NewLoader(context.Background(), src, ArrowDecoder{}, LoaderConfig{PrefetchDepth: depth})

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			_, err := loader.Next(ctx)
			assert.ErrorIs(t, err, context.DeadlineExceeded)

			require.NoError(t, loader.Close())
			assert.True(t, src.closed.Load())
		})
	}
}

func TestLoaderCloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	for _, depth := range []int{0, 3} {
		loader := NewLoader(ctx, NewMemorySource(arrowBlobs(t, numberedBatches(5)...)...), ArrowDecoder{}, LoaderConfig{PrefetchDepth: depth})
		require.NoError(t, loader.Close())
		require.NoError(t, loader.Close())

		_, err := loader.Next(ctx)
		assert.ErrorIs(t, err, ErrClosed)
	}
}

func TestLoaderStopsWhenParentContextEnds(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	loader := NewLoader(parent, &stuckSource{}, ArrowDecoder{}, LoaderConfig{PrefetchDepth: 2})
	defer loader.Close()
	cancel()

	_, err := loader.Next(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenMissingSource(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing.arrow"), LoaderConfig{PrefetchDepth: 2})
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestOpenStaticFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.arrow")
	data, err := EncodeArrow(testBatch("1", "a", "b", "c"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	ctx := context.Background()
	loader, err := Open(ctx, path, LoaderConfig{PrefetchDepth: 2})
	require.NoError(t, err)
	defer loader.Close()

	b, err := loader.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Len())
	_, err = loader.Next(ctx)
	assert.ErrorIs(t, err, ErrEndOfStream)
}
