package blockio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/pbhandar2/blocksample/internal/bafmerr"
)

// BlockTraceReader streams a block-storage trace CSV (spec.md §6):
// "ts_us,lba,op,size_byte" per line, no header, op in {r,w}, ts_us
// non-decreasing. It holds O(1) live memory beyond the current row.
type BlockTraceReader struct {
	r       *csv.Reader
	rowIdx  int
	lastTs  int64
	hasSeen bool
}

// NewBlockTraceReader wraps r as a streaming block-storage trace source.
func NewBlockTraceReader(r io.Reader) *BlockTraceReader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	cr.ReuseRecord = true
	return &BlockTraceReader{r: cr}
}

// Next returns the next BlockRequest, or io.EOF when the trace is exhausted.
func (b *BlockTraceReader) Next() (BlockRequest, error) {
	record, err := b.r.Read()
	if err == io.EOF {
		return BlockRequest{}, io.EOF
	}
	if err != nil {
		return BlockRequest{}, fmt.Errorf("block trace row %d: %w: %v", b.rowIdx, bafmerr.ErrInputFormat, err)
	}
	ts, err := strconv.ParseInt(record[0], 10, 64)
	if err != nil {
		return BlockRequest{}, fmt.Errorf("block trace row %d: invalid ts_us %q: %w", b.rowIdx, record[0], bafmerr.ErrInputFormat)
	}
	lba, err := strconv.ParseInt(record[1], 10, 64)
	if err != nil {
		return BlockRequest{}, fmt.Errorf("block trace row %d: invalid lba %q: %w", b.rowIdx, record[1], bafmerr.ErrInputFormat)
	}
	var write bool
	switch record[2] {
	case "r":
		write = false
	case "w":
		write = true
	default:
		return BlockRequest{}, fmt.Errorf("block trace row %d: op must be r or w, got %q: %w", b.rowIdx, record[2], bafmerr.ErrInputFormat)
	}
	size, err := strconv.ParseInt(record[3], 10, 64)
	if err != nil {
		return BlockRequest{}, fmt.Errorf("block trace row %d: invalid size_byte %q: %w", b.rowIdx, record[3], bafmerr.ErrInputFormat)
	}
	if size <= 0 {
		return BlockRequest{}, fmt.Errorf("block trace row %d: size_byte must be positive, got %d: %w", b.rowIdx, size, bafmerr.ErrInputRange)
	}
	if b.hasSeen && ts < b.lastTs {
		return BlockRequest{}, fmt.Errorf("block trace row %d: ts_us %d precedes previous ts_us %d: %w", b.rowIdx, ts, b.lastTs, bafmerr.ErrInputRange)
	}
	b.lastTs = ts
	b.hasSeen = true
	b.rowIdx++
	return BlockRequest{TsUs: ts, LBA: lba, Write: write, SizeByte: size}, nil
}

// BlockTraceWriter appends BlockRequest rows to a block-storage trace CSV.
type BlockTraceWriter struct {
	w *csv.Writer
}

// NewBlockTraceWriter wraps w as a block-storage trace sink.
func NewBlockTraceWriter(w io.Writer) *BlockTraceWriter {
	return &BlockTraceWriter{w: csv.NewWriter(w)}
}

// Write appends one row.
func (bw *BlockTraceWriter) Write(req BlockRequest) error {
	op := "r"
	if req.Write {
		op = "w"
	}
	return bw.w.Write([]string{
		strconv.FormatInt(req.TsUs, 10),
		strconv.FormatInt(req.LBA, 10),
		op,
		strconv.FormatInt(req.SizeByte, 10),
	})
}

// Flush flushes buffered rows to the underlying writer.
func (bw *BlockTraceWriter) Flush() error {
	bw.w.Flush()
	return bw.w.Error()
}
