package optimizer_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pbhandar2/blocksample/internal/bafm"
	"github.com/pbhandar2/blocksample/internal/blockio"
	"github.com/pbhandar2/blocksample/internal/checkpoint"
	"github.com/pbhandar2/blocksample/internal/errormodel"
	"github.com/pbhandar2/blocksample/internal/optimizer"
	"github.com/pbhandar2/blocksample/internal/workloadstats"
)

func buildTestBAFM(t *testing.T, reqs []blockio.BlockRequest, cfg blockio.Config) *bafm.Map {
	t.Helper()
	var blockBuf bytes.Buffer
	bw := blockio.NewBlockTraceWriter(&blockBuf)
	for _, r := range reqs {
		require.NoError(t, bw.Write(r))
	}
	require.NoError(t, bw.Flush())
	var cacheBuf bytes.Buffer
	require.NoError(t, blockio.ConvertBlockToCache(blockio.NewBlockTraceReader(&blockBuf), blockio.NewCacheTraceWriter(&cacheBuf), cfg))
	m, err := bafm.BuildFromCacheTrace(blockio.NewCacheTraceReader(&cacheBuf))
	require.NoError(t, err)
	return m
}

func bigTrace() []blockio.BlockRequest {
	var reqs []blockio.BlockRequest
	ts := int64(0)
	for i := int64(0); i < 12; i++ {
		ts += 100
		reqs = append(reqs, blockio.BlockRequest{TsUs: ts, LBA: i * 8, Write: i%3 == 0, SizeByte: 4096})
	}
	return reqs
}

// S5: greedy removal terminates immediately when the sample already
// matches the full trace (all feature errors zero).
func TestOptimizer_TerminatesImmediatelyAtLocalOptimum(t *testing.T) {
	cfg := blockio.DefaultConfig()
	m := buildTestBAFM(t, bigTrace(), cfg)
	stats := m.AggregateStats(cfg)
	full := stats.FeatureDict()

	var logBuf bytes.Buffer
	w, err := checkpoint.NewWriter(&logBuf, true)
	require.NoError(t, err)

	opt := optimizer.New(optimizer.Config{
		Metric:     errormodel.MetricMean,
		TargetRate: 0,
	}, cfg, m, stats, full, int64(m.Len()), w)

	require.NoError(t, opt.Run())

	rows, err := checkpoint.ReadAll(&logBuf)
	require.NoError(t, err)
	require.Empty(t, rows, "no candidate can strictly improve an already-zero error, so the log stays empty")
}

func TestOptimizer_RemovesAddressesTowardTargetRate(t *testing.T) {
	cfg := blockio.DefaultConfig()
	m := buildTestBAFM(t, bigTrace(), cfg)
	stats := m.AggregateStats(cfg)
	full := workloadstats.Features{MeanReadSize: 4096, MeanWriteSize: 4096, MeanReadIAT: 50, MeanWriteIAT: 50}
	totalUnique := int64(m.Len())

	var logBuf bytes.Buffer
	w, err := checkpoint.NewWriter(&logBuf, true)
	require.NoError(t, err)

	opt := optimizer.New(optimizer.Config{
		Metric:     errormodel.MetricMean,
		TargetRate: 0.95,
	}, cfg, m, stats, full, totalUnique, w)

	require.NoError(t, opt.Run())

	require.LessOrEqual(t, float64(m.Len())/float64(totalUnique), 0.95)

	rows, err := checkpoint.ReadAll(&logBuf)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	require.Equal(t, totalUnique-int64(m.Len()), int64(len(rows)))
}

func TestOptimizer_SerialAndParallelScanProduceIdenticalLogs(t *testing.T) {
	// S6: with a deterministic tie-breaker, serial and parallel scans agree.
	cfg := blockio.DefaultConfig()
	full := workloadstats.Features{MeanReadSize: 4096, MeanWriteSize: 4096, MeanReadIAT: 50, MeanWriteIAT: 50}

	run := func(parallel bool) []checkpoint.Row {
		m := buildTestBAFM(t, bigTrace(), cfg)
		stats := m.AggregateStats(cfg)
		var logBuf bytes.Buffer
		w, err := checkpoint.NewWriter(&logBuf, true)
		require.NoError(t, err)
		opt := optimizer.New(optimizer.Config{
			Metric:     errormodel.MetricMean,
			TargetRate: 0.3,
			Parallel:   parallel,
		}, cfg, m, stats, full, int64(m.Len()), w)
		require.NoError(t, opt.Run())
		rows, err := checkpoint.ReadAll(&logBuf)
		require.NoError(t, err)
		return rows
	}

	serial := run(false)
	parallel := run(true)
	require.Equal(t, len(serial), len(parallel))
	for i := range serial {
		require.Equal(t, serial[i].Addr, parallel[i].Addr)
	}
}

func TestOptimizer_RegionCandidateLogsOneRowPerAddress(t *testing.T) {
	// GIVEN Bits grouping addresses into regions wider than one address
	cfg := blockio.DefaultConfig()
	m := buildTestBAFM(t, bigTrace(), cfg)
	stats := m.AggregateStats(cfg)
	full := workloadstats.Features{MeanReadSize: 4096, MeanWriteSize: 4096, MeanReadIAT: 50, MeanWriteIAT: 50}
	totalUnique := int64(m.Len())

	var logBuf bytes.Buffer
	w, err := checkpoint.NewWriter(&logBuf, true)
	require.NoError(t, err)

	opt := optimizer.New(optimizer.Config{
		Metric:     errormodel.MetricMean,
		TargetRate: 0.3,
		Bits:       2,
	}, cfg, m, stats, full, totalUnique, w)

	require.NoError(t, opt.Run())

	rows, err := checkpoint.ReadAll(&logBuf)
	require.NoError(t, err)

	// THEN the number of logged rows always equals the number of addresses
	// actually removed, never the number of region candidates applied.
	require.Equal(t, totalUnique-int64(m.Len()), int64(len(rows)))
	seen := make(map[int64]bool)
	for _, r := range rows {
		require.False(t, seen[r.Addr], "address %d logged twice", r.Addr)
		seen[r.Addr] = true
	}
}
