package cmd

import (
	"fmt"
	"log/slog"
	"os"
)

func ExitIfError(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", msg, err)
		os.Exit(1)
	}
}

// OrFatal exits when err is set, otherwise returns value. Usage:
//
//	loader := OrFatal(parse.Open(ctx, source, cfg))("to open source")
func OrFatal[T any](value T, err error) func(string) T {
	return func(action string) T {
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed %s with error: %s\n", action, err)
			os.Exit(1)
		}
		return value
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
