package blockio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/pbhandar2/blocksample/internal/bafmerr"
)

// CacheTraceReader streams a cache trace CSV (spec.md §6):
// "req_index,iat_us,cache_addr,op,front_misalign_byte,rear_misalign_byte",
// no header. Rows sharing req_index are consecutive; NextGroup returns them
// together so BAFM.BuildFromCacheTrace can classify SOLO/LEFT/RIGHT/MID in
// one pass without buffering the whole trace.
type CacheTraceReader struct {
	r        *csv.Reader
	rowIdx   int
	pending  *CacheRequest
	pendingI int64
	done     bool
}

// NewCacheTraceReader wraps r as a streaming cache trace source.
func NewCacheTraceReader(r io.Reader) *CacheTraceReader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 6
	return &CacheTraceReader{r: cr}
}

func (c *CacheTraceReader) readRow() (CacheRequest, error) {
	record, err := c.r.Read()
	if err != nil {
		return CacheRequest{}, err
	}
	reqIdx, err := strconv.ParseInt(record[0], 10, 64)
	if err != nil {
		return CacheRequest{}, fmt.Errorf("cache trace row %d: invalid req_index %q: %w", c.rowIdx, record[0], bafmerr.ErrInputFormat)
	}
	iat, err := strconv.ParseInt(record[1], 10, 64)
	if err != nil {
		return CacheRequest{}, fmt.Errorf("cache trace row %d: invalid iat_us %q: %w", c.rowIdx, record[1], bafmerr.ErrInputFormat)
	}
	addr, err := strconv.ParseInt(record[2], 10, 64)
	if err != nil {
		return CacheRequest{}, fmt.Errorf("cache trace row %d: invalid cache_addr %q: %w", c.rowIdx, record[2], bafmerr.ErrInputFormat)
	}
	var write bool
	switch record[3] {
	case "r":
		write = false
	case "w":
		write = true
	default:
		return CacheRequest{}, fmt.Errorf("cache trace row %d: op must be r or w, got %q: %w", c.rowIdx, record[3], bafmerr.ErrInputFormat)
	}
	front, err := strconv.ParseInt(record[4], 10, 64)
	if err != nil {
		return CacheRequest{}, fmt.Errorf("cache trace row %d: invalid front_misalign_byte %q: %w", c.rowIdx, record[4], bafmerr.ErrInputFormat)
	}
	rear, err := strconv.ParseInt(record[5], 10, 64)
	if err != nil {
		return CacheRequest{}, fmt.Errorf("cache trace row %d: invalid rear_misalign_byte %q: %w", c.rowIdx, record[5], bafmerr.ErrInputFormat)
	}
	c.rowIdx++
	return CacheRequest{
		ReqIndex:      reqIdx,
		IATUs:         iat,
		CacheAddr:     addr,
		Write:         write,
		FrontMisalign: front,
		RearMisalign:  rear,
	}, nil
}

// NextGroup returns the next run of cache requests sharing one req_index,
// or io.EOF when the trace is exhausted.
func (c *CacheTraceReader) NextGroup() ([]CacheRequest, error) {
	if c.done {
		return nil, io.EOF
	}
	var group []CacheRequest
	if c.pending != nil {
		group = append(group, *c.pending)
		c.pending = nil
	}
	for {
		row, err := c.readRow()
		if err == io.EOF {
			c.done = true
			break
		}
		if err != nil {
			return nil, err
		}
		if len(group) == 0 {
			group = append(group, row)
			continue
		}
		if row.ReqIndex != group[0].ReqIndex {
			c.pending = &row
			break
		}
		group = append(group, row)
	}
	if len(group) == 0 {
		return nil, io.EOF
	}
	return group, nil
}

// CacheTraceWriter appends CacheRequest rows to a cache trace CSV.
type CacheTraceWriter struct {
	w *csv.Writer
}

// NewCacheTraceWriter wraps w as a cache trace sink.
func NewCacheTraceWriter(w io.Writer) *CacheTraceWriter {
	return &CacheTraceWriter{w: csv.NewWriter(w)}
}

// Write appends one row.
func (cw *CacheTraceWriter) Write(req CacheRequest) error {
	op := "r"
	if req.Write {
		op = "w"
	}
	return cw.w.Write([]string{
		strconv.FormatInt(req.ReqIndex, 10),
		strconv.FormatInt(req.IATUs, 10),
		strconv.FormatInt(req.CacheAddr, 10),
		op,
		strconv.FormatInt(req.FrontMisalign, 10),
		strconv.FormatInt(req.RearMisalign, 10),
	})
}

// Flush flushes buffered rows to the underlying writer.
func (cw *CacheTraceWriter) Flush() error {
	cw.w.Flush()
	return cw.w.Error()
}
