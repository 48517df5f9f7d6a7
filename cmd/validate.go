package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/chalk-ai/batch-loader-benchmark/parse"
)

// ValidationSummary counts the outcome of reading a source to the end.
type ValidationSummary struct {
	Batches int
	Samples int
	Invalid int
}

// ValidateSource reads every record of source through a loader and reports
// each decode or validation failure to out. A failing source stops the scan.
func ValidateSource(ctx context.Context, source string, cfg parse.LoaderConfig, out io.Writer, logger *slog.Logger) (ValidationSummary, error) {
	cfg.Cycle = false
	loader, err := parse.Open(ctx, source, cfg, parse.WithLogger(logger))
	if err != nil {
		return ValidationSummary{}, err
	}
	defer loader.Close()

	var summary ValidationSummary
	for {
		batch, err := loader.Next(ctx)
		var decodeErr *parse.DecodeError
		var validationErr *parse.ValidationError
		switch {
		case err == nil:
			summary.Batches++
			summary.Samples += batch.Len()
		case errors.Is(err, parse.ErrEndOfStream):
			return summary, nil
		case errors.As(err, &decodeErr), errors.As(err, &validationErr):
			summary.Invalid++
			fmt.Fprintln(out, err)
		default:
			return summary, err
		}
	}
}

var validateCmd = &cobra.Command{
	Use:   "validate --source <source>",
	Short: "Decode and validate every batch of a source without timing",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		v := OrFatal(newViper(cmd.Flags()))("to load configuration")
		cfg := parse.LoaderConfig{
			BatchSize:     v.GetInt("batch_size"),
			PrefetchDepth: v.GetInt("prefetch"),
			DropLast:      v.GetBool("drop_last"),
			Shuffle:       v.GetBool("shuffle"),
			Seed:          v.GetInt64("seed"),
		}
		source := v.GetString("source")
		if source == "" {
			ExitIfError(errors.New("source must be set"), "invalid configuration")
		}

		summary, err := ValidateSource(cmd.Context(), source, cfg, os.Stderr, newLogger(verbose))
		ExitIfError(err, "failed to read source")
		fmt.Printf("%d valid batches (%d samples), %d invalid records\n", summary.Batches, summary.Samples, summary.Invalid)
		if summary.Invalid > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	flags := validateCmd.Flags()
	flags.StringP("source", "s", "", "Batch source to validate.")
	flags.IntP("batch_size", "b", parse.DefaultBatchSize, "Samples per batch for parquet and synthetic sources.")
	flags.IntP("prefetch", "p", 0, "Prefetch depth used while reading.")
	flags.Bool("shuffle", false, "Shuffle sample order before batching (synthetic sources).")
	flags.Bool("drop_last", false, "Drop a trailing batch smaller than batch_size.")
	flags.Int64("seed", 0, "Seed for synthetic sources.")
	rootCmd.AddCommand(validateCmd)
}
