package blockio_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pbhandar2/blocksample/internal/blockio"
)

func convertTrace(t *testing.T, reqs []blockio.BlockRequest, cfg blockio.Config) []blockio.CacheRequest {
	t.Helper()
	var blockBuf bytes.Buffer
	bw := blockio.NewBlockTraceWriter(&blockBuf)
	for _, r := range reqs {
		require.NoError(t, bw.Write(r))
	}
	require.NoError(t, bw.Flush())

	var cacheBuf bytes.Buffer
	br := blockio.NewBlockTraceReader(&blockBuf)
	cw := blockio.NewCacheTraceWriter(&cacheBuf)
	require.NoError(t, blockio.ConvertBlockToCache(br, cw, cfg))

	cr := blockio.NewCacheTraceReader(&cacheBuf)
	var all []blockio.CacheRequest
	for {
		group, err := cr.NextGroup()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		all = append(all, group...)
	}
	return all
}

func TestConvertBlockToCache_SingleBlockAlignedRead(t *testing.T) {
	// GIVEN a single-block aligned read
	cfg := blockio.DefaultConfig()
	rows := convertTrace(t, []blockio.BlockRequest{
		{TsUs: 0, LBA: 0, Write: false, SizeByte: 4096},
	}, cfg)

	// THEN it produces exactly one cache row with no misalignment
	require.Len(t, rows, 1)
	require.Equal(t, int64(0), rows[0].CacheAddr)
	require.False(t, rows[0].Write)
	require.Zero(t, rows[0].FrontMisalign)
	require.Zero(t, rows[0].RearMisalign)
}

func TestConvertBlockToCache_MultiBlockWriteNoMisalignment(t *testing.T) {
	// GIVEN a write spanning exactly two aligned cache blocks (S2)
	cfg := blockio.DefaultConfig()
	rows := convertTrace(t, []blockio.BlockRequest{
		{TsUs: 0, LBA: 0, Write: true, SizeByte: 8192},
	}, cfg)

	// THEN no auxiliary read rows appear, and the write spans addr 0 and 1
	require.Len(t, rows, 2)
	require.Equal(t, int64(0), rows[0].CacheAddr)
	require.Equal(t, int64(1), rows[1].CacheAddr)
	for _, r := range rows {
		require.True(t, r.Write)
		require.Zero(t, r.FrontMisalign)
		require.Zero(t, r.RearMisalign)
	}
}

func TestConvertBlockToCache_WriteWithMisalignedEdgesEmitsAuxiliaryReads(t *testing.T) {
	// GIVEN a write lba=1, size=4096 (S3): start_offset=512, spans blocks {0,1}
	cfg := blockio.DefaultConfig()
	req := blockio.BlockRequest{TsUs: 0, LBA: 1, Write: true, SizeByte: 4096}
	require.Equal(t, int64(0), req.StartCacheAddr(cfg))
	require.Equal(t, int64(1), req.EndCacheAddr(cfg))
	require.Equal(t, int64(512), req.FrontMisalignByte(cfg))
	require.Equal(t, int64(3584), req.RearMisalignByte(cfg))

	rows := convertTrace(t, []blockio.BlockRequest{req}, cfg)

	// THEN exactly two auxiliary read rows precede the two write rows, all
	// sharing req_index 1, one read+write pair per touched block
	require.Len(t, rows, 4)
	reads, writes := 0, 0
	for _, r := range rows {
		require.Equal(t, int64(1), r.ReqIndex)
		if r.Write {
			writes++
		} else {
			reads++
		}
	}
	require.Equal(t, 2, reads)
	require.Equal(t, 2, writes)
}

func TestConvertBlockToCache_ThreeContiguousSmallReadsCollapseToOneAddress(t *testing.T) {
	// GIVEN three 512-byte reads at lba 0,1,2 (S4): all land on cache addr 0
	cfg := blockio.DefaultConfig()
	rows := convertTrace(t, []blockio.BlockRequest{
		{TsUs: 0, LBA: 0, Write: false, SizeByte: 512},
		{TsUs: 100, LBA: 1, Write: false, SizeByte: 512},
		{TsUs: 300, LBA: 2, Write: false, SizeByte: 512},
	}, cfg)

	// THEN all three rows land on cache address 0, each its own req_index
	require.Len(t, rows, 3)
	for _, r := range rows {
		require.Equal(t, int64(0), r.CacheAddr)
	}
	require.Equal(t, int64(0), rows[0].IATUs)
	require.Equal(t, int64(100), rows[1].IATUs)
	require.Equal(t, int64(200), rows[2].IATUs)
}

func TestCoalesceGroup_RoundTripsAMultiBlockWrite(t *testing.T) {
	// GIVEN a misaligned multi-block write converted to cache rows
	cfg := blockio.DefaultConfig()
	original := blockio.BlockRequest{TsUs: 5000, LBA: 1, Write: true, SizeByte: 4096}
	rows := convertTrace(t, []blockio.BlockRequest{original}, cfg)

	// WHEN the group is coalesced back for the write op (the first request
	// in any trace always has iat_us=0, so the caller's prevTs must be the
	// original timestamp itself to round-trip)
	rebuilt, err := blockio.CoalesceGroup(rows, true, original.TsUs, cfg)
	require.NoError(t, err)

	// THEN it reproduces the original request's byte range and timestamp
	require.Equal(t, original.TsUs, rebuilt.TsUs)
	require.Equal(t, original.StartOffset(cfg), rebuilt.StartOffset(cfg))
	require.Equal(t, original.SizeByte, rebuilt.SizeByte)
}
