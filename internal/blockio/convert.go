package blockio

import (
	"fmt"
	"io"
)

// ConvertBlockToCache streams a block-storage trace into its cache trace
// view (spec.md §6), one flattened row per touched cache block plus the
// auxiliary read-modify-write rows a misaligned write implies. It is
// grounded line-for-line on original_source's CPReader.generate_cache_trace:
// the first request's IAT is 0, req_index is the 1-based sequential block
// request counter, and a write's misaligned edge(s) emit an extra `r` row
// sharing the same req_index before the `w` rows.
func ConvertBlockToCache(r *BlockTraceReader, w *CacheTraceWriter, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	var reqIndex int64
	var prevTs int64
	first := true
	for {
		req, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		reqIndex++
		if first {
			prevTs = req.TsUs
			first = false
		}
		iat := req.TsUs - prevTs
		prevTs = req.TsUs

		start := req.StartCacheAddr(cfg)
		end := req.EndCacheAddr(cfg)
		front := req.FrontMisalignByte(cfg)
		rear := req.RearMisalignByte(cfg)

		if start == end {
			if req.Write && (front > 0 || rear > 0) {
				if err := w.Write(CacheRequest{ReqIndex: reqIndex, IATUs: iat, CacheAddr: start, Write: false, FrontMisalign: front, RearMisalign: rear}); err != nil {
					return fmt.Errorf("writing cache trace row: %w", err)
				}
			}
			if err := w.Write(CacheRequest{ReqIndex: reqIndex, IATUs: iat, CacheAddr: start, Write: req.Write, FrontMisalign: front, RearMisalign: rear}); err != nil {
				return fmt.Errorf("writing cache trace row: %w", err)
			}
			continue
		}

		if req.Write {
			if front > 0 {
				if err := w.Write(CacheRequest{ReqIndex: reqIndex, IATUs: iat, CacheAddr: start, Write: false, FrontMisalign: front, RearMisalign: 0}); err != nil {
					return fmt.Errorf("writing cache trace row: %w", err)
				}
			}
			if rear > 0 {
				if err := w.Write(CacheRequest{ReqIndex: reqIndex, IATUs: iat, CacheAddr: end, Write: false, FrontMisalign: 0, RearMisalign: rear}); err != nil {
					return fmt.Errorf("writing cache trace row: %w", err)
				}
			}
		}

		for addr := start; addr <= end; addr++ {
			row := CacheRequest{ReqIndex: reqIndex, IATUs: iat, CacheAddr: addr, Write: req.Write}
			switch addr {
			case start:
				row.FrontMisalign = front
			case end:
				row.RearMisalign = rear
			}
			if err := w.Write(row); err != nil {
				return fmt.Errorf("writing cache trace row: %w", err)
			}
		}
	}
	return w.Flush()
}

// CoalesceGroup re-combines one req_index group of CacheRequest rows back
// into the BlockRequest that produced them — the inverse direction of
// ConvertBlockToCache, used to verify the round-trip requirement of
// spec.md §6. The group must contain the main op's rows contiguous in
// cache_addr order; auxiliary read rows from a misaligned write are
// dropped, since they're derived data, not part of the original request.
func CoalesceGroup(group []CacheRequest, write bool, prevTs int64, cfg Config) (BlockRequest, error) {
	var lo, hi int64 = -1, -1
	var iat int64
	found := false
	for _, row := range group {
		if row.Write != write {
			continue
		}
		if !found {
			lo, hi = row.CacheAddr, row.CacheAddr
			iat = row.IATUs
			found = true
			continue
		}
		if row.CacheAddr < lo {
			lo = row.CacheAddr
		}
		if row.CacheAddr > hi {
			hi = row.CacheAddr
		}
	}
	if !found {
		return BlockRequest{}, fmt.Errorf("no rows for requested op in group")
	}

	var front, rear int64
	for _, row := range group {
		if row.CacheAddr == lo {
			front = row.FrontMisalign
		}
		if row.CacheAddr == hi {
			rear = row.RearMisalign
		}
	}

	startOffset := lo*cfg.CacheBlockByte + front
	endOffset := (hi+1)*cfg.CacheBlockByte - rear
	return BlockRequest{
		TsUs:     prevTs + iat,
		LBA:      startOffset / cfg.LBASizeByte,
		Write:    write,
		SizeByte: endOffset - startOffset,
	}, nil
}
