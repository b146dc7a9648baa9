package errormodel_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pbhandar2/blocksample/internal/errormodel"
	"github.com/pbhandar2/blocksample/internal/workloadstats"
)

func TestEvaluate_IdenticalFeaturesYieldZeroErrors(t *testing.T) {
	// GIVEN identical full and sample features
	f := workloadstats.Features{MeanReadSize: 4096, MeanWriteSize: 4096, MeanReadIAT: 100, MeanWriteIAT: 200, MisalignPerRead: 0.1, MisalignPerWrite: 0.2}

	// WHEN evaluated against itself
	report := errormodel.Evaluate(f, f)

	// THEN every error and summary is zero
	require.Zero(t, report.Mean)
	require.Zero(t, report.Max)
	require.Zero(t, report.WMean)
	for _, v := range report.FeatureErrors {
		require.Zero(t, v)
	}
}

func TestEvaluate_ZeroFullFeatureYieldsZeroError(t *testing.T) {
	// GIVEN a full feature that is zero
	full := workloadstats.Features{MeanWriteSize: 0}
	sample := workloadstats.Features{MeanWriteSize: 1000}

	// WHEN evaluated
	report := errormodel.Evaluate(full, sample)

	// THEN the corresponding error is defined as zero, not a division result
	require.Zero(t, report.FeatureErrors["mean_write_size"])
}

func TestEvaluate_SignedErrorDirectionMatchesUnderOrOverEstimate(t *testing.T) {
	// GIVEN a sample that underestimates the full feature
	full := workloadstats.Features{MeanReadSize: 1000}
	sample := workloadstats.Features{MeanReadSize: 900}

	// WHEN evaluated
	report := errormodel.Evaluate(full, sample)

	// THEN the error is positive (sample falls short)
	require.InDelta(t, 10.0, report.FeatureErrors["mean_read_size"], 1e-9)
}

func TestEvaluate_WMeanWeightsLargerErrorsMoreThanMean(t *testing.T) {
	// GIVEN features where one error dominates the rest
	full := workloadstats.Features{MeanReadSize: 100, MeanWriteSize: 100, MeanReadIAT: 100, MeanWriteIAT: 100, MisalignPerRead: 100, MisalignPerWrite: 100}
	sample := workloadstats.Features{MeanReadSize: 100, MeanWriteSize: 100, MeanReadIAT: 100, MeanWriteIAT: 100, MisalignPerRead: 100, MisalignPerWrite: 0}

	// WHEN evaluated
	report := errormodel.Evaluate(full, sample)

	// THEN wmean is pulled toward the single large error, above the plain mean
	require.Greater(t, report.WMean, report.Mean)
}

func TestReport_Score_UnknownMetric(t *testing.T) {
	// GIVEN a report
	report := errormodel.Evaluate(workloadstats.Features{}, workloadstats.Features{})

	// WHEN scored with an invalid metric name
	_, err := report.Score(errormodel.Metric("bogus"))

	// THEN it's rejected
	require.Error(t, err)
}
