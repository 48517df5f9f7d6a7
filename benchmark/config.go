package benchmark

import (
	"errors"
	"fmt"

	"github.com/chalk-ai/batch-loader-benchmark/parse"
)

const (
	DefaultNumIterations    = 100
	DefaultWarmupIterations = 10
	DefaultPrefetchDepth    = 2
	DefaultProgressEvery    = 10
)

// Config captures the knobs of one benchmark run.
type Config struct {
	SourceIdentifier string `mapstructure:"source"`
	NumIterations    int    `mapstructure:"iterations"`
	WarmupIterations int    `mapstructure:"warmup"`
	BatchSize        int    `mapstructure:"batch_size"`
	PrefetchDepth    int    `mapstructure:"prefetch"`
	Shuffle          bool   `mapstructure:"shuffle"`
	DropLast         bool   `mapstructure:"drop_last"`
	Cycle            bool   `mapstructure:"cycle"`
	Seed             int64  `mapstructure:"seed"`
	ProgressEvery    int    `mapstructure:"progress_every"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig(source string) Config {
	return Config{
		SourceIdentifier: source,
		NumIterations:    DefaultNumIterations,
		WarmupIterations: DefaultWarmupIterations,
		BatchSize:        parse.DefaultBatchSize,
		PrefetchDepth:    DefaultPrefetchDepth,
		ProgressEvery:    DefaultProgressEvery,
	}
}

// Validate verifies the config is runnable and fills in ProgressEvery.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.SourceIdentifier == "" {
		return errors.New("source must be set")
	}
	if c.NumIterations < 1 {
		return fmt.Errorf("iterations must be >= 1 (got %d)", c.NumIterations)
	}
	if c.WarmupIterations < 0 {
		return fmt.Errorf("warmup must be >= 0 (got %d)", c.WarmupIterations)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be >= 1 (got %d)", c.BatchSize)
	}
	if c.PrefetchDepth < 0 {
		return fmt.Errorf("prefetch must be >= 0 (got %d)", c.PrefetchDepth)
	}
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = DefaultProgressEvery
	}
	return nil
}

// LoaderConfig forwards the loader-related fields.
func (c Config) LoaderConfig() parse.LoaderConfig {
	return parse.LoaderConfig{
		BatchSize:     c.BatchSize,
		PrefetchDepth: c.PrefetchDepth,
		Shuffle:       c.Shuffle,
		DropLast:      c.DropLast,
		Cycle:         c.Cycle,
		Seed:          c.Seed,
	}
}
