package checkpoint_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pbhandar2/blocksample/internal/bafm"
	"github.com/pbhandar2/blocksample/internal/blockio"
	"github.com/pbhandar2/blocksample/internal/checkpoint"
	"github.com/pbhandar2/blocksample/internal/errormodel"
	"github.com/pbhandar2/blocksample/internal/workloadstats"
)

func buildSampleBAFM(t *testing.T) (*bafm.Map, blockio.Config) {
	t.Helper()
	cfg := blockio.DefaultConfig()
	reqs := []blockio.BlockRequest{
		{TsUs: 0, LBA: 0, Write: false, SizeByte: 4096},
		{TsUs: 1000, LBA: 8, Write: false, SizeByte: 4096},
		{TsUs: 2000, LBA: 16, Write: true, SizeByte: 4096},
	}
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
	return m, cfg
}

func TestResume_ReplaysLogAndMatchesLiveRun(t *testing.T) {
	// GIVEN a BAFM and a log produced by actually removing address 0
	m, cfg := buildSampleBAFM(t)
	stats := m.AggregateStats(cfg)
	full := workloadstats.Features{MeanReadSize: 4096, MeanWriteSize: 4096, MeanReadIAT: 500, MeanWriteIAT: 0}

	addr := m.IterAddrs()[0]
	e, ok := m.Get(addr)
	require.True(t, ok)
	newStats := bafm.FeatureDelta(stats, e, cfg)
	require.NoError(t, m.Remove(addr))
	report := errormodel.Evaluate(full, newStats.FeatureDict())

	var logBuf bytes.Buffer
	w, err := checkpoint.NewWriter(&logBuf, true)
	require.NoError(t, err)
	require.NoError(t, w.Append(checkpoint.Row{Report: report, Addr: addr, BlockCount: int64(m.Len()), Rate: 0.5, RuntimeNs: 10}))

	rows, err := checkpoint.ReadAll(&logBuf)
	require.NoError(t, err)

	// WHEN a fresh BAFM is replayed against that log
	freshM, freshCfg := buildSampleBAFM(t)
	freshStats := freshM.AggregateStats(freshCfg)
	resumed, err := checkpoint.Resume(freshM, freshStats, full, freshCfg, rows)

	// THEN the reconstructed aggregate matches the live run exactly
	require.NoError(t, err)
	require.Equal(t, newStats, resumed)
	require.Equal(t, m.IterAddrs(), freshM.IterAddrs())
}

func TestResume_DetectsBlockCountMismatch(t *testing.T) {
	// GIVEN a log row claiming a block_count inconsistent with replay
	m, cfg := buildSampleBAFM(t)
	stats := m.AggregateStats(cfg)
	full := workloadstats.Features{}

	addr := m.IterAddrs()[0]
	row := checkpoint.Row{
		Report:     errormodel.Evaluate(full, stats.FeatureDict()),
		Addr:       addr,
		BlockCount: 999999,
		Rate:       0.5,
		RuntimeNs:  1,
	}

	// WHEN resumed
	_, err := checkpoint.Resume(m, stats, full, cfg, []checkpoint.Row{row})

	// THEN it fails fast as resume-corrupt rather than silently continuing
	require.Error(t, err)
}
