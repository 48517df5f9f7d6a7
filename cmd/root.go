package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. BATCHBENCH_ITERATIONS=500.
const EnvPrefix = "BATCHBENCH"

var rootCmd = &cobra.Command{
	Use:   "batch-loader-benchmark",
	Short: "Measure fetch latency of a prefetching record-batch loader",
	Long: `Reads serialized feature batches from a source, feeds them through a bounded
prefetching loader and reports per-iteration latency after a warmup period.`,
	SilenceUsage: true,
}

var configFile string
var verbose bool

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (yaml, json or toml) providing defaults for any flag.")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log loader and runner activity at debug level.")
}

// newViper layers the config file, BATCHBENCH_* environment variables and the
// command's flags, in increasing precedence.
func newViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}
	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	return v, nil
}
