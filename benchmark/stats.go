package benchmark

import (
	"errors"
	"math"
	"slices"

	"github.com/samber/lo"
)

// ErrNoSamples is returned by Summarize for an empty latency list.
var ErrNoSamples = errors.New("no latency samples")

// Stats summarizes a latency list in milliseconds.
type Stats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Total  float64 `json:"total"`
}

// Summarize reduces latencies to Stats. StdDev is the sample standard
// deviation and is 0 for a single sample. An empty list is rejected.
func Summarize(latencies []float64) (Stats, error) {
	if len(latencies) == 0 {
		return Stats{}, ErrNoSamples
	}
	n := float64(len(latencies))
	total := lo.Sum(latencies)
	mean := total / n

	var stddev float64
	if len(latencies) > 1 {
		squares := lo.SumBy(latencies, func(x float64) float64 {
			return (x - mean) * (x - mean)
		})
		stddev = math.Sqrt(squares / (n - 1))
	}

	return Stats{
		Mean:   mean,
		StdDev: stddev,
		Min:    lo.Min(latencies),
		Max:    lo.Max(latencies),
		Total:  total,
	}, nil
}

// Percentiles holds latency percentiles in milliseconds.
type Percentiles struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// CalculatePercentiles picks the ceil(n*p)-th smallest latency for each
// percentile, clamped to the largest.
func CalculatePercentiles(latencies []float64) Percentiles {
	if len(latencies) == 0 {
		return Percentiles{}
	}
	sorted := slices.Clone(latencies)
	slices.Sort(sorted)
	at := func(p float64) float64 {
		idx := int(math.Ceil(float64(len(sorted)) * p))
		return sorted[min(idx, len(sorted)-1)]
	}
	return Percentiles{P50: at(.5), P95: at(.95), P99: at(.99)}
}

// Report is the outcome of a successful run.
type Report struct {
	Stats
	Percentiles Percentiles `json:"percentiles"`
	Iterations  int         `json:"iterations"`
	BatchSize   int         `json:"batch_size"`
	Latencies   []float64   `json:"latencies_ms"`
}

// Fields flattens the report into field name -> value.
func (r *Report) Fields() map[string]float64 {
	return map[string]float64{
		"mean":       r.Mean,
		"stddev":     r.StdDev,
		"min":        r.Min,
		"max":        r.Max,
		"total":      r.Total,
		"p50":        r.Percentiles.P50,
		"p95":        r.Percentiles.P95,
		"p99":        r.Percentiles.P99,
		"iterations": float64(r.Iterations),
		"batch_size": float64(r.BatchSize),
	}
}
