package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"

	"github.com/chalk-ai/batch-loader-benchmark/benchmark"
)

func CurDir() string {
	cwd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	return cwd
}

type ReportType string

var (
	ReportTypeJSON    ReportType = "json"
	ReportTypeSummary ReportType = "summary"
)

func ParseReportType(s string) (ReportType, error) {
	switch t := ReportType(strings.ToLower(s)); t {
	case ReportTypeJSON, ReportTypeSummary:
		return t, nil
	}
	return "", fmt.Errorf("unknown report type %q, expected json or summary", s)
}

// PrintReport writes the human readable summary of result to w.
func PrintReport(w io.Writer, result *benchmark.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nSummary:")
	fmt.Fprintf(tw, "  Iterations:\t%d\n", result.Iterations)
	fmt.Fprintf(tw, "  Batch size:\t%d\n", result.BatchSize)
	fmt.Fprintf(tw, "  Total:\t%.4f ms\n", result.Total)
	fmt.Fprintf(tw, "  Mean:\t%.4f ms\n", result.Mean)
	fmt.Fprintf(tw, "  Std dev:\t%.4f ms\n", result.StdDev)
	fmt.Fprintf(tw, "  Min:\t%.4f ms\n", result.Min)
	fmt.Fprintf(tw, "  Max:\t%.4f ms\n", result.Max)
	fmt.Fprintln(tw, "\nLatency distribution:")
	fmt.Fprintf(tw, "  50 %%\tin %.4f ms\n", result.Percentiles.P50)
	fmt.Fprintf(tw, "  95 %%\tin %.4f ms\n", result.Percentiles.P95)
	fmt.Fprintf(tw, "  99 %%\tin %.4f ms\n", result.Percentiles.P99)
	return tw.Flush()
}

// WriteReport renders result to w in the given format.
func WriteReport(w io.Writer, result *benchmark.Report, reportType ReportType) error {
	switch reportType {
	case ReportTypeSummary:
		return PrintReport(w, result)
	case ReportTypeJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return fmt.Errorf("unknown report type %q", reportType)
}

// SaveReport writes result to outputFilename in the current directory, adding
// the report type as extension, and returns the path written.
func SaveReport(outputFilename string, result *benchmark.Report, reportType ReportType) (string, error) {
	filenameNoPrefix := strings.TrimSuffix(outputFilename, "."+string(reportType))
	reportFile := fmt.Sprintf("%s.%s", filenameNoPrefix, reportType)
	if !filepath.IsAbs(reportFile) {
		reportFile = filepath.Join(CurDir(), reportFile)
	}
	outputFile, err := os.OpenFile(reportFile, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0660)
	if err != nil {
		return "", fmt.Errorf("failed to open report file: %w", err)
	}
	defer outputFile.Close()

	if err := WriteReport(outputFile, result, reportType); err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}
	return reportFile, nil
}
