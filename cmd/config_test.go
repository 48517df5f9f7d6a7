package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chalk-ai/batch-loader-benchmark/benchmark"
)

func newTestRunCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "run"}
	addRunFlags(cmd.Flags())
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func withConfigFile(t *testing.T, name, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	configFile = path
	t.Cleanup(func() { configFile = "" })
}

func TestLoadRunOptionsDefaults(t *testing.T) {
	opts, err := loadRunOptions(newTestRunCommand(t, "--source", "synthetic://"))
	require.NoError(t, err)

	want := benchmark.DefaultConfig("synthetic://")
	assert.Equal(t, want, opts.Config)
	assert.Equal(t, benchmark.DefaultProcessingDelay, opts.ProcessingDelay)
	assert.Equal(t, "json", opts.ReportType)
	assert.False(t, opts.NoProgress)
}

func TestLoadRunOptionsFlags(t *testing.T) {
	opts, err := loadRunOptions(newTestRunCommand(t,
		"-s", "data/",
		"-n", "25",
		"--warmup", "0",
		"--prefetch", "0",
		"--batch_size", "8",
		"--cycle",
		"--seed", "42",
		"--processing_delay", "5ms",
	))
	require.NoError(t, err)
	assert.Equal(t, "data/", opts.SourceIdentifier)
	assert.Equal(t, 25, opts.NumIterations)
	assert.Equal(t, 0, opts.WarmupIterations)
	assert.Equal(t, 0, opts.PrefetchDepth)
	assert.Equal(t, 8, opts.BatchSize)
	assert.True(t, opts.Cycle)
	assert.Equal(t, int64(42), opts.Seed)
	assert.Equal(t, 5*time.Millisecond, opts.ProcessingDelay)
}

func TestLoadRunOptionsPrecedence(t *testing.T) {
	withConfigFile(t, "bench.yaml", `
source: synthetic://?batches=4
iterations: 50
warmup: 5
batch_size: 16
report_type: summary
`)
	t.Setenv("BATCHBENCH_WARMUP", "3")
	t.Setenv("BATCHBENCH_PROCESSING_DELAY", "0s")

	opts, err := loadRunOptions(newTestRunCommand(t, "--iterations", "9"))
	require.NoError(t, err)
	assert.Equal(t, "synthetic://?batches=4", opts.SourceIdentifier)
	assert.Equal(t, 9, opts.NumIterations, "flag beats config file")
	assert.Equal(t, 3, opts.WarmupIterations, "environment beats config file")
	assert.Equal(t, 16, opts.BatchSize)
	assert.Equal(t, "summary", opts.ReportType)
	assert.Zero(t, opts.ProcessingDelay)
}

func TestLoadRunOptionsRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "no source", args: nil, wantErr: "source must be set"},
		{name: "zero iterations", args: []string{"-s", "x", "-n", "0"}, wantErr: "iterations must be >= 1"},
		{name: "negative prefetch", args: []string{"-s", "x", "-p", "-1"}, wantErr: "prefetch must be >= 0"},
		{name: "negative delay", args: []string{"-s", "x", "--processing_delay", "-1ms"}, wantErr: "processing_delay must be >= 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadRunOptions(newTestRunCommand(t, tt.args...))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadRunOptionsMissingConfigFile(t *testing.T) {
	configFile = filepath.Join(t.TempDir(), "missing.yaml")
	t.Cleanup(func() { configFile = "" })

	_, err := loadRunOptions(newTestRunCommand(t, "-s", "x"))
	assert.ErrorContains(t, err, "failed to read config file")
}
