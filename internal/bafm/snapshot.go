package bafm

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/pbhandar2/blocksample/internal/bafmerr"
)

// snapshotFields returns pointers into e in SnapshotHeader column order, so
// Write/Load can iterate the header and struct in lockstep instead of
// repeating the 24-field list twice.
func snapshotFields(e *Entry) []*int64 {
	return []*int64{
		&e.RMisalign, &e.WMisalign,
		&e.SoloR, &e.SoloW, &e.SoloRIat, &e.SoloWIat, &e.SoloRMisalignByte, &e.SoloWMisalignByte,
		&e.LeftR, &e.LeftW, &e.LeftRIat, &e.LeftWIat, &e.LeftRMisalignByte, &e.LeftWMisalignByte,
		&e.RightR, &e.RightW, &e.RightRIat, &e.RightWIat, &e.RightRMisalignByte, &e.RightWMisalignByte,
		&e.MidR, &e.MidW, &e.MidRIat, &e.MidWIat,
	}
}

// Write dumps the map as a flat CSV table keyed by address, in the column
// order of spec.md §6: header "addr" followed by SnapshotHeader, addresses
// in ascending order so Write/Load round-trips byte-for-byte.
func (m *Map) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := append([]string{"addr"}, SnapshotHeader...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing bafm snapshot header: %w", err)
	}
	for _, addr := range m.IterAddrs() {
		e := m.entries[addr]
		row := make([]string, 0, len(header))
		row = append(row, strconv.FormatInt(addr, 10))
		for _, f := range snapshotFields(e) {
			row = append(row, strconv.FormatInt(*f, 10))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing bafm snapshot row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Load reads a BAFM snapshot CSV produced by Write.
func Load(r io.Reader) (*Map, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading bafm snapshot header: %w: %v", bafmerr.ErrInputFormat, err)
	}
	wantHeader := append([]string{"addr"}, SnapshotHeader...)
	if len(header) != len(wantHeader) {
		return nil, fmt.Errorf("bafm snapshot header has %d columns, want %d: %w", len(header), len(wantHeader), bafmerr.ErrInputFormat)
	}
	m := New()
	rowIdx := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bafm snapshot row %d: %w: %v", rowIdx, bafmerr.ErrInputFormat, err)
		}
		if len(record) != len(wantHeader) {
			return nil, fmt.Errorf("bafm snapshot row %d has %d columns, want %d: %w", rowIdx, len(record), len(wantHeader), bafmerr.ErrInputFormat)
		}
		addr, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bafm snapshot row %d: invalid addr %q: %w", rowIdx, record[0], bafmerr.ErrInputFormat)
		}
		e := &Entry{}
		for i, f := range snapshotFields(e) {
			v, err := strconv.ParseInt(record[i+1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("bafm snapshot row %d column %q: invalid value %q: %w", rowIdx, wantHeader[i+1], record[i+1], bafmerr.ErrInputFormat)
			}
			*f = v
		}
		m.entries[addr] = e
		rowIdx++
	}
	return m, nil
}
