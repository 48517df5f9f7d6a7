package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/chalk-ai/batch-loader-benchmark/parse"
)

type generateOptions struct {
	Output    string `mapstructure:"output"`
	Format    string `mapstructure:"format"`
	Batches   int    `mapstructure:"batches"`
	BatchSize int    `mapstructure:"batch_size"`
	Features  int    `mapstructure:"features"`
	Variable  bool   `mapstructure:"variable"`
	Version   string `mapstructure:"version"`
	Seed      int64  `mapstructure:"seed"`
	Zstd      bool   `mapstructure:"zstd"`
}

// Generate writes a synthetic dataset and returns the path a run should use
// as its source. Parquet and plain JSON hold every batch in one file; the
// other layouts hold one batch per file, so several batches go to a
// directory.
func Generate(opts generateOptions) (string, error) {
	format, err := parse.ParseFormat(opts.Format)
	if err != nil {
		return "", err
	}
	if opts.Output == "" {
		return "", fmt.Errorf("output must be set")
	}
	if opts.Batches < 1 || opts.BatchSize < 1 {
		return "", fmt.Errorf("batches and batch_size must be >= 1")
	}
	if format == parse.FormatParquet && opts.Zstd {
		return "", fmt.Errorf("parquet output is compressed by the parquet writer, --zstd does not apply")
	}

	spec := parse.SyntheticSpec{
		Samples:  opts.Batches * opts.BatchSize,
		Features: opts.Features,
		Variable: opts.Variable,
		Version:  opts.Version,
		Seed:     opts.Seed,
	}
	src := parse.NewSyntheticSourceFromSpec(spec, parse.LoaderConfig{BatchSize: opts.BatchSize})
	batches := lo.Times(src.NumBatches(), src.Batch)

	ext := format.Extension()
	if opts.Zstd {
		ext += parse.ZstdExtension
	}

	switch {
	case format == parse.FormatParquet:
		path := withExtension(opts.Output, ext)
		return path, parse.WriteParquetFile(path, opts.Version, batches)
	case format == parse.FormatJSON && !opts.Zstd && len(batches) > 1:
		data, err := parse.EncodeJSONList(batches)
		if err != nil {
			return "", err
		}
		path := withExtension(opts.Output, ext)
		return path, os.WriteFile(path, data, 0644)
	}

	encode, err := parse.EncoderFor(format)
	if err != nil {
		return "", err
	}
	if len(batches) == 1 {
		path := withExtension(opts.Output, ext)
		return path, writeBatch(path, batches[0], encode, opts.Zstd)
	}
	if err := os.MkdirAll(opts.Output, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	for i, b := range batches {
		path := filepath.Join(opts.Output, fmt.Sprintf("batch-%05d%s", i, ext))
		if err := writeBatch(path, b, encode, opts.Zstd); err != nil {
			return "", err
		}
	}
	return opts.Output, nil
}

func writeBatch(path string, b *parse.Batch, encode parse.Encoder, compress bool) error {
	data, err := encode(b)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if compress {
		if data, err = parse.CompressZstd(data); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

func withExtension(path, ext string) string {
	if strings.HasSuffix(strings.ToLower(path), ext) {
		return path
	}
	return path + ext
}

var generateCmd = &cobra.Command{
	Use:   "generate --output <path> --format <arrow|proto|json|parquet>",
	Short: "Write a synthetic batch dataset to use as a benchmark source",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		v := OrFatal(newViper(cmd.Flags()))("to load configuration")
		var opts generateOptions
		ExitIfError(v.Unmarshal(&opts), "failed to decode configuration")
		path := OrFatal(Generate(opts))("to generate dataset")
		fmt.Printf("Wrote %d batches of %d samples to %s\n", opts.Batches, opts.BatchSize, path)
	},
}

func init() {
	flags := generateCmd.Flags()
	flags.StringP("output", "o", "", "Output file, or directory when batches are written one per file.")
	flags.StringP("format", "f", string(parse.FormatArrow), "Batch format: arrow, proto, json or parquet.")
	flags.Int("batches", 1, "Number of batches to generate.")
	flags.IntP("batch_size", "b", parse.DefaultBatchSize, "Samples per batch.")
	flags.Int("features", parse.DefaultSyntheticWidth, "Feature vector width.")
	flags.Bool("variable", false, "Draw each sample's width uniformly from 1..features.")
	flags.String("version", parse.DefaultSyntheticVersion, "Batch version tag. Empty writes batches without a version.")
	flags.Int64("seed", 0, "Seed for feature values.")
	flags.Bool("zstd", false, "Compress each written blob with zstd.")
	rootCmd.AddCommand(generateCmd)
}
