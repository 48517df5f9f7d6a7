package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chalk-ai/batch-loader-benchmark/benchmark"
	"github.com/chalk-ai/batch-loader-benchmark/parse"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func generateOpts(t *testing.T, format string, compress bool) generateOptions {
	return generateOptions{
		Output:    filepath.Join(t.TempDir(), "dataset"),
		Format:    format,
		Batches:   3,
		BatchSize: 4,
		Features:  5,
		Version:   "1",
		Seed:      7,
		Zstd:      compress,
	}
}

func TestGenerateEveryFormatRoundTrips(t *testing.T) {
	cases := []struct {
		format   string
		compress bool
	}{
		{"arrow", false},
		{"arrow", true},
		{"proto", false},
		{"proto", true},
		{"json", false},
		{"json", true},
		{"parquet", false},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s/zstd=%t", tc.format, tc.compress), func(t *testing.T) {
			path, err := Generate(generateOpts(t, tc.format, tc.compress))
			require.NoError(t, err)

			var out bytes.Buffer
			summary, err := ValidateSource(context.Background(), path, parse.LoaderConfig{BatchSize: 4, PrefetchDepth: 2}, &out, discard)
			require.NoError(t, err)
			assert.Equal(t, ValidationSummary{Batches: 3, Samples: 12}, summary)
			assert.Empty(t, out.String())

			cfg := benchmark.DefaultConfig(path)
			cfg.NumIterations = 2
			cfg.WarmupIterations = 1
			cfg.BatchSize = 4
			report, err := benchmark.Run(context.Background(), cfg, benchmark.WithProcessor(benchmark.DefaultProcessor(0)))
			require.NoError(t, err)
			assert.Len(t, report.Latencies, 2)
		})
	}
}

func TestGenerateSingleBatchIsAFile(t *testing.T) {
	opts := generateOpts(t, "proto", false)
	opts.Batches = 1
	path, err := Generate(opts)
	require.NoError(t, err)
	assert.Equal(t, opts.Output+".pb", path)
	assert.FileExists(t, path)
}

func TestGenerateRejectsBadOptions(t *testing.T) {
	opts := generateOpts(t, "parquet", true)
	_, err := Generate(opts)
	assert.ErrorContains(t, err, "--zstd does not apply")

	opts = generateOpts(t, "csv", false)
	_, err = Generate(opts)
	assert.ErrorContains(t, err, "unknown batch format")

	opts = generateOpts(t, "arrow", false)
	opts.Batches = 0
	_, err = Generate(opts)
	assert.Error(t, err)
}

func TestValidateSourceReportsInvalidBatches(t *testing.T) {
	opts := generateOpts(t, "arrow", false)
	opts.Version = ""
	path, err := Generate(opts)
	require.NoError(t, err)

	var out bytes.Buffer
	summary, err := ValidateSource(context.Background(), path, parse.LoaderConfig{BatchSize: 4}, &out, discard)
	require.NoError(t, err)
	assert.Equal(t, ValidationSummary{Invalid: 3}, summary)
	assert.Contains(t, out.String(), "missing version")
}

func TestValidateSourceMissing(t *testing.T) {
	_, err := ValidateSource(context.Background(), filepath.Join(t.TempDir(), "none.arrow"), parse.LoaderConfig{}, io.Discard, discard)
	assert.ErrorIs(t, err, parse.ErrSourceNotFound)
}
