// Package checkpoint implements the append-only optimizer log of spec.md
// §4.6: one row per removal, replayable on resume against a freshly built
// BAFM so a killed optimizer run can pick back up without rescanning the
// source trace.
package checkpoint

import (
	"encoding/binary"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/blainsmith/seahash"

	"github.com/pbhandar2/blocksample/internal/bafmerr"
	"github.com/pbhandar2/blocksample/internal/errormodel"
)

// Row is one optimizer step: the address removed, the resulting error
// report, the current block count and sampling rate, and how long the step
// took.
type Row struct {
	Report     errormodel.Report
	Addr       int64
	BlockCount int64
	Rate       float64
	RuntimeNs  int64
}

// header is featureNames, then the three summary columns and the four
// bookkeeping columns, then the row checksum used to detect truncated or
// hand-edited log files.
func header() []string {
	h := append([]string{}, errormodel.FeatureNames()...)
	return append(h, "mean", "max", "wmean", "addr", "block_count", "rate", "runtime_ns", "checksum")
}

func rowFields(row Row) []string {
	names := errormodel.FeatureNames()
	fields := make([]string, 0, len(names)+8)
	for _, name := range names {
		fields = append(fields, strconv.FormatFloat(row.Report.FeatureErrors[name], 'g', -1, 64))
	}
	fields = append(fields,
		strconv.FormatFloat(row.Report.Mean, 'g', -1, 64),
		strconv.FormatFloat(row.Report.Max, 'g', -1, 64),
		strconv.FormatFloat(row.Report.WMean, 'g', -1, 64),
		strconv.FormatInt(row.Addr, 10),
		strconv.FormatInt(row.BlockCount, 10),
		strconv.FormatFloat(row.Rate, 'g', -1, 64),
		strconv.FormatInt(row.RuntimeNs, 10),
	)
	return fields
}

// checksumFields hashes every field before the checksum column itself, so a
// truncated or manually edited row fails to verify on replay.
func checksumFields(fields []string) uint64 {
	h := seahash.New()
	var lenBuf [8]byte
	for _, f := range fields {
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(f)))
		h.Write(lenBuf[:])
		h.Write([]byte(f))
	}
	return h.Sum64()
}

// Writer appends Rows to an underlying CSV stream. Callers own opening the
// file in append mode; Writer only decides whether to emit a header.
type Writer struct {
	cw         *csv.Writer
	wroteEmpty bool
}

// NewWriter wraps w. If freshFile is true (the log did not exist before this
// run) the header row is written immediately.
func NewWriter(w io.Writer, freshFile bool) (*Writer, error) {
	cw := csv.NewWriter(w)
	wr := &Writer{cw: cw}
	if freshFile {
		if err := cw.Write(header()); err != nil {
			return nil, fmt.Errorf("writing checkpoint log header: %w", err)
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return nil, fmt.Errorf("writing checkpoint log header: %w", err)
		}
	}
	return wr, nil
}

// Append writes one row and flushes immediately, so a killed process loses
// at most the row currently in flight.
func (w *Writer) Append(row Row) error {
	fields := rowFields(row)
	fields = append(fields, strconv.FormatUint(checksumFields(fields), 10))
	if err := w.cw.Write(fields); err != nil {
		return fmt.Errorf("appending checkpoint log row: %w", err)
	}
	w.cw.Flush()
	return w.cw.Error()
}

// ReadAll parses every row of a checkpoint log written by Writer, validating
// each row's checksum. A mismatch means the file was truncated mid-write or
// edited by hand, and is reported as bafmerr.ErrResumeCorrupt.
func ReadAll(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	want := header()
	got, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint log header: %w: %v", bafmerr.ErrInputFormat, err)
	}
	if len(got) != len(want) {
		return nil, fmt.Errorf("checkpoint log header has %d columns, want %d: %w", len(got), len(want), bafmerr.ErrInputFormat)
	}

	names := errormodel.FeatureNames()
	var rows []Row
	rowIdx := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("checkpoint log row %d: %w: %v", rowIdx, bafmerr.ErrInputFormat, err)
		}
		if len(record) != len(want) {
			return nil, fmt.Errorf("checkpoint log row %d has %d columns, want %d: %w", rowIdx, len(record), len(want), bafmerr.ErrInputFormat)
		}

		fields := record[:len(record)-1]
		wantSum := checksumFields(fields)
		gotSum, err := strconv.ParseUint(record[len(record)-1], 10, 64)
		if err != nil || gotSum != wantSum {
			return nil, bafmerr.ResumeCorrupt("checkpoint log row %d failed checksum verification", rowIdx)
		}

		var row Row
		errs := make(map[string]float64, len(names))
		for i, name := range names {
			v, err := strconv.ParseFloat(record[i], 64)
			if err != nil {
				return nil, fmt.Errorf("checkpoint log row %d column %q: %w: %v", rowIdx, name, bafmerr.ErrInputFormat, err)
			}
			errs[name] = v
		}
		row.Report.FeatureErrors = errs
		off := len(names)
		row.Report.Mean, err = strconv.ParseFloat(record[off], 64)
		if err != nil {
			return nil, fmt.Errorf("checkpoint log row %d: invalid mean: %w", rowIdx, bafmerr.ErrInputFormat)
		}
		row.Report.Max, err = strconv.ParseFloat(record[off+1], 64)
		if err != nil {
			return nil, fmt.Errorf("checkpoint log row %d: invalid max: %w", rowIdx, bafmerr.ErrInputFormat)
		}
		row.Report.WMean, err = strconv.ParseFloat(record[off+2], 64)
		if err != nil {
			return nil, fmt.Errorf("checkpoint log row %d: invalid wmean: %w", rowIdx, bafmerr.ErrInputFormat)
		}
		row.Addr, err = strconv.ParseInt(record[off+3], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("checkpoint log row %d: invalid addr: %w", rowIdx, bafmerr.ErrInputFormat)
		}
		row.BlockCount, err = strconv.ParseInt(record[off+4], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("checkpoint log row %d: invalid block_count: %w", rowIdx, bafmerr.ErrInputFormat)
		}
		row.Rate, err = strconv.ParseFloat(record[off+5], 64)
		if err != nil {
			return nil, fmt.Errorf("checkpoint log row %d: invalid rate: %w", rowIdx, bafmerr.ErrInputFormat)
		}
		row.RuntimeNs, err = strconv.ParseInt(record[off+6], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("checkpoint log row %d: invalid runtime_ns: %w", rowIdx, bafmerr.ErrInputFormat)
		}

		rows = append(rows, row)
		rowIdx++
	}
	return rows, nil
}
