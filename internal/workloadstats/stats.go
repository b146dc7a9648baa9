// Package workloadstats accumulates the aggregate read/write features of a
// block-request stream (spec.md §3, §4.1). All counters are 64-bit
// integers; derived float features are computed only on read, never
// persisted, following spec.md §9's design note.
package workloadstats

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pbhandar2/blocksample/internal/bafmerr"
	"github.com/pbhandar2/blocksample/internal/blockio"
)

// Stats holds the six read and six write counters of spec.md §3. Zero value
// is a valid empty accumulator.
type Stats struct {
	ReadCount               int64
	WriteCount              int64
	ReadByteSum             int64
	WriteByteSum            int64
	ReadIATSum              int64
	WriteIATSum             int64
	MisalignedReadCount     int64
	MisalignedWriteCount    int64
	MisalignedReadByte      int64
	MisalignedWriteByte     int64
	MisalignedReadCacheReq  int64
	MisalignedWriteCacheReq int64

	// TotalUniqueAddrs is the full trace's unique cache-block address count
	// — the fixed denominator GreedyOptimizer divides by for its sampling
	// rate (spec.md §4.4 point 4). It is meaningful only on the full-trace
	// reference Stats loaded once at optimizer startup; zero on a sample's
	// own running aggregate.
	TotalUniqueAddrs int64

	prevTs  int64
	hasSeen bool
}

// Track folds one block request into the counters. The first request
// tracked contributes IAT 0; subsequent requests contribute ts - prev_ts.
func (s *Stats) Track(req blockio.BlockRequest, cfg blockio.Config) {
	if !s.hasSeen {
		s.prevTs = req.TsUs
		s.hasSeen = true
	}
	iat := req.TsUs - s.prevTs
	s.prevTs = req.TsUs

	front := req.FrontMisalignByte(cfg)
	rear := req.RearMisalignByte(cfg)
	multiBlock := req.StartCacheAddr(cfg) != req.EndCacheAddr(cfg)

	if req.Write {
		s.WriteCount++
		s.WriteByteSum += req.SizeByte
		s.WriteIATSum += iat
		if front > 0 {
			s.MisalignedWriteCount++
			s.MisalignedWriteByte += front
		}
		if rear > 0 {
			s.MisalignedWriteCount++
			s.MisalignedWriteByte += rear
		}
		if front > 0 || rear > 0 {
			s.MisalignedWriteCacheReq += misalignedCacheReqDelta(front, rear, multiBlock)
		}
	} else {
		s.ReadCount++
		s.ReadByteSum += req.SizeByte
		s.ReadIATSum += iat
		if front > 0 {
			s.MisalignedReadCount++
			s.MisalignedReadByte += front
		}
		if rear > 0 {
			s.MisalignedReadCount++
			s.MisalignedReadByte += rear
		}
		if front > 0 || rear > 0 {
			s.MisalignedReadCacheReq += misalignedCacheReqDelta(front, rear, multiBlock)
		}
	}
}

// misalignedCacheReqDelta mirrors MisalignStats.track in the original
// source: a single-block request with any misalignment contributes 1 (one
// cache request carries both edges); a multi-block request contributes 1
// per misaligned edge, since front and rear land on different cache blocks.
func misalignedCacheReqDelta(front, rear int64, multiBlock bool) int64 {
	if !multiBlock {
		return 1
	}
	var n int64
	if front > 0 {
		n++
	}
	if rear > 0 {
		n++
	}
	return n
}

// Features are the derived aggregate features compared by ErrorModel
// (spec.md §4.5): the "narrow and stable" six-feature set confirmed against
// original_source's WorkloadStats.get_workload_feature_dict.
type Features struct {
	MeanReadSize     float64
	MeanWriteSize    float64
	MeanReadIAT      float64
	MeanWriteIAT     float64
	MisalignPerRead  float64
	MisalignPerWrite float64
}

// FeatureDict returns the derived feature bundle. Undefined means (zero
// denominator) return 0, per spec.md §4.1.
func (s Stats) FeatureDict() Features {
	var f Features
	if s.ReadCount > 0 {
		f.MeanReadSize = float64(s.ReadByteSum) / float64(s.ReadCount)
		f.MeanReadIAT = float64(s.ReadIATSum) / float64(s.ReadCount)
		f.MisalignPerRead = float64(s.MisalignedReadCount) / float64(s.ReadCount)
	}
	if s.WriteCount > 0 {
		f.MeanWriteSize = float64(s.WriteByteSum) / float64(s.WriteCount)
		f.MeanWriteIAT = float64(s.WriteIATSum) / float64(s.WriteCount)
		f.MisalignPerWrite = float64(s.MisalignedWriteCount) / float64(s.WriteCount)
	}
	return f
}

// ToDict serializes the integer state for persistence (spec.md §4.1, §6).
func (s Stats) ToDict() map[string]int64 {
	return map[string]int64{
		"read_count":                 s.ReadCount,
		"write_count":                s.WriteCount,
		"read_byte_sum":              s.ReadByteSum,
		"write_byte_sum":             s.WriteByteSum,
		"read_iat_sum":               s.ReadIATSum,
		"write_iat_sum":              s.WriteIATSum,
		"misaligned_read_count":      s.MisalignedReadCount,
		"misaligned_write_count":     s.MisalignedWriteCount,
		"misaligned_read_byte":       s.MisalignedReadByte,
		"misaligned_write_byte":      s.MisalignedWriteByte,
		"misaligned_read_cache_req":  s.MisalignedReadCacheReq,
		"misaligned_write_cache_req": s.MisalignedWriteCacheReq,
		"total_unique_addrs":         s.TotalUniqueAddrs,
	}
}

// LoadDict deserializes the integer state from a dict produced by ToDict.
// Missing keys are a format error — the caller asked for a substitute zero,
// which spec.md §4.8 explicitly forbids for reference feature files.
func (s *Stats) LoadDict(d map[string]int64) error {
	fields := map[string]*int64{
		"read_count":                 &s.ReadCount,
		"write_count":                &s.WriteCount,
		"read_byte_sum":              &s.ReadByteSum,
		"write_byte_sum":             &s.WriteByteSum,
		"read_iat_sum":               &s.ReadIATSum,
		"write_iat_sum":              &s.WriteIATSum,
		"misaligned_read_count":      &s.MisalignedReadCount,
		"misaligned_write_count":     &s.MisalignedWriteCount,
		"misaligned_read_byte":       &s.MisalignedReadByte,
		"misaligned_write_byte":      &s.MisalignedWriteByte,
		"misaligned_read_cache_req":  &s.MisalignedReadCacheReq,
		"misaligned_write_cache_req": &s.MisalignedWriteCacheReq,
		"total_unique_addrs":         &s.TotalUniqueAddrs,
	}
	for key, dst := range fields {
		v, ok := d[key]
		if !ok {
			return fmt.Errorf("workload stats dict missing required key %q: %w", key, bafmerr.ErrInputFormat)
		}
		*dst = v
	}
	return nil
}

// WriteJSON writes the integer state as JSON (spec.md §6's WorkloadStats file).
func (s Stats) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s.ToDict())
}

// ReadJSON loads the integer state from JSON, failing fast on a missing
// required key rather than substituting zero (spec.md §4.8).
func ReadJSON(r io.Reader) (Stats, error) {
	var d map[string]int64
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return Stats{}, fmt.Errorf("decoding workload stats JSON: %w", err)
	}
	var s Stats
	if err := s.LoadDict(d); err != nil {
		return Stats{}, err
	}
	return s, nil
}
