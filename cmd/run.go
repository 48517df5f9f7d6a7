package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/chalk-ai/batch-loader-benchmark/benchmark"
	"github.com/chalk-ai/batch-loader-benchmark/parse"
	"github.com/chalk-ai/batch-loader-benchmark/report"
)

// runOptions is everything the run command reads from flags, environment and
// config file.
type runOptions struct {
	benchmark.Config `mapstructure:",squash"`
	ProcessingDelay  time.Duration `mapstructure:"processing_delay"`
	OutputFile       string        `mapstructure:"output_file"`
	ReportType       string        `mapstructure:"report_type"`
	NoProgress       bool          `mapstructure:"no_progress"`
}

func loadRunOptions(cmd *cobra.Command) (runOptions, error) {
	v, err := newViper(cmd.Flags())
	if err != nil {
		return runOptions{}, err
	}
	opts := runOptions{Config: benchmark.DefaultConfig("")}
	if err := v.Unmarshal(&opts); err != nil {
		return runOptions{}, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := opts.Config.Validate(); err != nil {
		return runOptions{}, err
	}
	if opts.ProcessingDelay < 0 {
		return runOptions{}, fmt.Errorf("processing_delay must be >= 0 (got %s)", opts.ProcessingDelay)
	}
	return opts, nil
}

var runCmd = &cobra.Command{
	Use:   "run --source <source>",
	Short: "Benchmark the loader against a batch source",
	Long: `Sources are a file (.arrow, .pb, .json, optionally .zst), a directory of such
files, a .parquet file, or a generated dataset such as
synthetic://?batches=200&features=32.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		opts := OrFatal(loadRunOptions(cmd))("to load configuration")
		reportType := OrFatal(report.ParseReportType(opts.ReportType))("to parse report type")
		logger := newLogger(verbose)

		var observer benchmark.Observer = benchmark.LogObserver{Logger: logger}
		if !opts.NoProgress {
			observer = newProgressObserver(os.Stderr)
		}

		result, err := benchmark.Run(cmd.Context(), opts.Config,
			benchmark.WithProcessor(benchmark.DefaultProcessor(opts.ProcessingDelay)),
			benchmark.WithObserver(observer),
			benchmark.WithLogger(logger),
		)
		ExitIfError(err, "benchmark failed")

		fmt.Println("\nPrinting Report...")
		ExitIfError(report.PrintReport(cmd.OutOrStdout(), result), "failed to print report")
		if opts.OutputFile != "" {
			reportFile := OrFatal(report.SaveReport(opts.OutputFile, result, reportType))("to save report")
			fmt.Printf("Wrote report file to %s\n", reportFile)
		}
	},
}

func addRunFlags(flags *pflag.FlagSet) {
	flags.StringP("source", "s", "", "Batch source: a file, a directory, a .parquet file or synthetic://?batches=N&features=F.")
	flags.IntP("iterations", "n", benchmark.DefaultNumIterations, "Number of timed iterations.")
	flags.IntP("warmup", "w", benchmark.DefaultWarmupIterations, "Number of untimed warmup iterations.")
	flags.IntP("batch_size", "b", parse.DefaultBatchSize, "Samples per batch for parquet and synthetic sources.")
	flags.IntP("prefetch", "p", benchmark.DefaultPrefetchDepth, "Maximum number of decoded batches held ahead of the consumer. 0 decodes on demand.")
	flags.Bool("shuffle", false, "Shuffle sample order before batching (synthetic sources).")
	flags.Bool("drop_last", false, "Drop a trailing batch smaller than batch_size.")
	flags.Bool("cycle", false, "Rewind the source when it runs out instead of failing the run.")
	flags.Int64("seed", 0, "Seed for synthetic data and shuffling.")
	flags.Int("progress_every", benchmark.DefaultProgressEvery, "Report progress every N iterations.")
	flags.Duration("processing_delay", benchmark.DefaultProcessingDelay, "Simulated per-batch work done by the consumer.")
	flags.StringP("output_file", "o", "", "Save the report to this file, with the report type as extension.")
	flags.String("report_type", string(report.ReportTypeJSON), "Format of the saved report: json or summary.")
	flags.Bool("no_progress", false, "Log progress instead of drawing progress bars.")
}

func init() {
	addRunFlags(runCmd.Flags())
	rootCmd.AddCommand(runCmd)
}
