package parse

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// SyntheticScheme prefixes identifiers of generated sources, e.g.
// synthetic://?batches=8&features=32&version=2&seed=7
const SyntheticScheme = "synthetic://"

const (
	DefaultBatchSize        = 64
	DefaultSyntheticWidth   = 16
	DefaultSyntheticVersion = "1"
)

// SyntheticSpec describes a generated dataset.
type SyntheticSpec struct {
	// Samples is the total number of samples across all batches.
	Samples int
	// Features is the feature vector width, or the maximum width when
	// Variable is set.
	Features int
	Variable bool
	Version  string
	Seed     int64
}

// ParseSyntheticIdentifier reads a SyntheticSpec from a synthetic:// URI.
// Recognized parameters: samples, batches, features, variable, version, seed.
// batches is a shorthand for samples = batches * batchSize. An empty
// version= parameter produces batches without a version.
func ParseSyntheticIdentifier(identifier string, batchSize int, seed int64) (SyntheticSpec, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	u, err := url.Parse(identifier)
	if err != nil || !strings.HasPrefix(identifier, SyntheticScheme) {
		return SyntheticSpec{}, fmt.Errorf("invalid synthetic source %q", identifier)
	}
	q := u.Query()
	spec := SyntheticSpec{
		Samples:  batchSize,
		Features: DefaultSyntheticWidth,
		Version:  DefaultSyntheticVersion,
		Seed:     seed,
	}

	intParam := func(key string, dst *int) error {
		if !q.Has(key) {
			return nil
		}
		v, err := strconv.Atoi(q.Get(key))
		if err != nil || v < 0 {
			return fmt.Errorf("synthetic source: %s must be a non-negative integer, got %q", key, q.Get(key))
		}
		*dst = v
		return nil
	}

	var batches int
	if q.Has("batches") {
		if err := intParam("batches", &batches); err != nil {
			return SyntheticSpec{}, err
		}
		spec.Samples = batches * batchSize
	}
	if err := intParam("samples", &spec.Samples); err != nil {
		return SyntheticSpec{}, err
	}
	if err := intParam("features", &spec.Features); err != nil {
		return SyntheticSpec{}, err
	}
	if q.Has("variable") {
		spec.Variable, err = strconv.ParseBool(q.Get("variable"))
		if err != nil {
			return SyntheticSpec{}, fmt.Errorf("synthetic source: variable: %w", err)
		}
	}
	if q.Has("version") {
		spec.Version = q.Get("version")
	}
	if q.Has("seed") {
		spec.Seed, err = strconv.ParseInt(q.Get("seed"), 10, 64)
		if err != nil {
			return SyntheticSpec{}, fmt.Errorf("synthetic source: seed: %w", err)
		}
	}
	return spec, nil
}

// SyntheticSource generates Arrow-encoded batches on demand. Sample ids are
// split into chunks of LoaderConfig.BatchSize; Shuffle permutes the ids
// before chunking and DropLast drops a short final chunk. Generation is
// deterministic for a given SyntheticSpec and config.
type SyntheticSource struct {
	spec   SyntheticSpec
	chunks [][]int
	pos    int
}

func NewSyntheticSource(identifier string, cfg LoaderConfig) (*SyntheticSource, error) {
	spec, err := ParseSyntheticIdentifier(identifier, cfg.BatchSize, cfg.Seed)
	if err != nil {
		return nil, err
	}
	return NewSyntheticSourceFromSpec(spec, cfg), nil
}

func NewSyntheticSourceFromSpec(spec SyntheticSpec, cfg LoaderConfig) *SyntheticSource {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	ids := make([]int, spec.Samples)
	for i := range ids {
		ids[i] = i
	}
	if cfg.Shuffle {
		rng := rand.New(rand.NewSource(spec.Seed))
		rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	}
	chunks := lo.Chunk(ids, batchSize)
	if cfg.DropLast && len(chunks) > 0 && len(chunks[len(chunks)-1]) < batchSize {
		chunks = chunks[:len(chunks)-1]
	}
	return &SyntheticSource{spec: spec, chunks: chunks}
}

// NumBatches returns the number of batches one pass over the source yields.
func (s *SyntheticSource) NumBatches() int {
	return len(s.chunks)
}

// Batch generates batch i. Feature values depend only on the sample id and
// the seed, so shuffling changes order but never content.
func (s *SyntheticSource) Batch(i int) *Batch {
	chunk := s.chunks[i]
	batch := &Batch{Version: s.spec.Version, Samples: make([]Sample, 0, len(chunk))}
	for _, id := range chunk {
		rng := rand.New(rand.NewSource(s.spec.Seed*1_000_003 + int64(id)))
		width := s.spec.Features
		if s.spec.Variable && width > 0 {
			width = 1 + rng.Intn(width)
		}
		features := make([]float32, width)
		for j := range features {
			features[j] = rng.Float32()
		}
		batch.Samples = append(batch.Samples, Sample{ID: strconv.Itoa(id), Features: features})
	}
	return batch
}

func (s *SyntheticSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.chunks) {
		return nil, ErrEndOfStream
	}
	batch := s.Batch(s.pos)
	s.pos++
	return EncodeArrow(batch)
}

func (s *SyntheticSource) Reset(context.Context) error {
	s.pos = 0
	return nil
}

func (s *SyntheticSource) Close() error {
	return nil
}
