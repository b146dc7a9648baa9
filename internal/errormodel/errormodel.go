// Package errormodel compares a sample's derived workload features against
// a full-trace reference and reduces the comparison to a single scalar score
// (spec.md §4.5).
package errormodel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/pbhandar2/blocksample/internal/workloadstats"
)

// Metric selects which scalar summary GreedyOptimizer optimizes against.
type Metric string

const (
	MetricMean  Metric = "mean"
	MetricMax   Metric = "max"
	MetricWMean Metric = "wmean"
)

// featureNames fixes the compared-feature tuple and its iteration order, so
// featureValues and every column layout built from FeatureNames line up the
// same way across calls —
// the "narrow and stable" set of spec.md §4.5.
var featureNames = []string{
	"mean_read_size",
	"mean_write_size",
	"mean_read_iat",
	"mean_write_iat",
	"misalign_per_read",
	"misalign_per_write",
}

// FeatureNames returns the compared-feature tuple in fixed iteration order,
// for callers (CheckpointLog) that need a stable column layout.
func FeatureNames() []string {
	out := make([]string, len(featureNames))
	copy(out, featureNames)
	return out
}

func featureValues(f workloadstats.Features) []float64 {
	return []float64{
		f.MeanReadSize,
		f.MeanWriteSize,
		f.MeanReadIAT,
		f.MeanWriteIAT,
		f.MisalignPerRead,
		f.MisalignPerWrite,
	}
}

// Report is the per-feature signed error vector plus the three scalar
// summaries computed from it.
type Report struct {
	FeatureErrors map[string]float64
	Mean          float64
	Max           float64
	WMean         float64
}

// Score returns the scalar named by m.
func (r Report) Score(m Metric) (float64, error) {
	switch m {
	case MetricMean:
		return r.Mean, nil
	case MetricMax:
		return r.Max, nil
	case MetricWMean:
		return r.WMean, nil
	default:
		return 0, fmt.Errorf("unknown error metric %q", m)
	}
}

// Evaluate computes e_f = 100 * (full_f - sample_f) / full_f for every
// compared feature (0 when full_f is 0), then the mean/max/wmean summaries
// over |e_f|.
func Evaluate(full, sample workloadstats.Features) Report {
	fullVals := featureValues(full)
	sampleVals := featureValues(sample)

	abs := make([]float64, len(featureNames))
	errs := make(map[string]float64, len(featureNames))
	for i, name := range featureNames {
		var e float64
		if fullVals[i] != 0 {
			e = 100 * (fullVals[i] - sampleVals[i]) / fullVals[i]
		}
		errs[name] = e
		abs[i] = math.Abs(e)
	}

	var maxAbs float64
	sumAbs := 0.0
	for _, a := range abs {
		if a > maxAbs {
			maxAbs = a
		}
		sumAbs += a
	}
	meanAbs := sumAbs / float64(len(abs))

	// wmean = Σ|e_f|·(|e_f|/Σ|e_f|), which is exactly the weighted mean of
	// abs weighted by itself. Guard the all-zero-error case explicitly:
	// stat.Mean divides by Σweights, which is 0/0 here, not 0.
	wmean := 0.0
	if sumAbs != 0 {
		wmean = stat.Mean(abs, abs)
	}

	return Report{
		FeatureErrors: errs,
		Mean:          meanAbs,
		Max:           maxAbs,
		WMean:         wmean,
	}
}
