// Package bafm implements the Block Access Feature Map: a compact
// per-block-address summary of access counts and IAT sums across four
// positional classes, kept consistent under in-place removal without ever
// rescanning the source trace (spec.md §4.2).
package bafm

import "github.com/pbhandar2/blocksample/internal/blockio"

// Entry is one BAFM row: the fixed-layout 24-field record of spec.md §3,
// in the exact column order of the BAFM snapshot file (spec.md §6). A
// systems implementation keeps this as a flat struct of int64 counters
// rather than a string-keyed dict, per spec.md §9's design note.
type Entry struct {
	RMisalign int64
	WMisalign int64

	SoloR             int64
	SoloW             int64
	SoloRIat          int64
	SoloWIat          int64
	SoloRMisalignByte int64
	SoloWMisalignByte int64

	LeftR             int64
	LeftW             int64
	LeftRIat          int64
	LeftWIat          int64
	LeftRMisalignByte int64
	LeftWMisalignByte int64

	RightR             int64
	RightW             int64
	RightRIat          int64
	RightWIat          int64
	RightRMisalignByte int64
	RightWMisalignByte int64

	MidR    int64
	MidW    int64
	MidRIat int64
	MidWIat int64
}

// SnapshotHeader is the fixed column order of the BAFM snapshot CSV
// (spec.md §6), following the address column.
var SnapshotHeader = []string{
	"r_misalign", "w_misalign",
	"solo_r", "solo_w", "solo_r_iat", "solo_w_iat", "solo_r_misalign_byte", "solo_w_misalign_byte",
	"left_r", "left_w", "left_r_iat", "left_w_iat", "left_r_misalign_byte", "left_w_misalign_byte",
	"right_r", "right_w", "right_r_iat", "right_w_iat", "right_r_misalign_byte", "right_w_misalign_byte",
	"mid_r", "mid_w", "mid_r_iat", "mid_w_iat",
}

// AddAccess folds one cache request into the entry, classifying it by c.
// req.Write selects the read/write half of each class; MID never receives
// misalignment bytes, by construction (spec.md §3).
func (e *Entry) AddAccess(c blockio.Class, req blockio.CacheRequest) {
	misalignCount := int64(0)
	if req.FrontMisalign > 0 {
		misalignCount++
	}
	if req.RearMisalign > 0 {
		misalignCount++
	}
	misalignByte := req.FrontMisalign + req.RearMisalign

	if req.Write {
		e.WMisalign += misalignCount
	} else {
		e.RMisalign += misalignCount
	}

	switch c {
	case blockio.ClassSolo:
		if req.Write {
			e.SoloW++
			e.SoloWIat += req.IATUs
			e.SoloWMisalignByte += misalignByte
		} else {
			e.SoloR++
			e.SoloRIat += req.IATUs
			e.SoloRMisalignByte += misalignByte
		}
	case blockio.ClassLeft:
		if req.Write {
			e.LeftW++
			e.LeftWIat += req.IATUs
			e.LeftWMisalignByte += misalignByte
		} else {
			e.LeftR++
			e.LeftRIat += req.IATUs
			e.LeftRMisalignByte += misalignByte
		}
	case blockio.ClassRight:
		if req.Write {
			e.RightW++
			e.RightWIat += req.IATUs
			e.RightWMisalignByte += misalignByte
		} else {
			e.RightR++
			e.RightRIat += req.IATUs
			e.RightRMisalignByte += misalignByte
		}
	case blockio.ClassMid:
		if req.Write {
			e.MidW++
			e.MidWIat += req.IATUs
		} else {
			e.MidR++
			e.MidRIat += req.IATUs
		}
	}
}

// TotalRequestCount is the sum of read+write counts across all four classes.
func (e Entry) TotalRequestCount() int64 {
	return e.SoloR + e.SoloW + e.LeftR + e.LeftW + e.RightR + e.RightW + e.MidR + e.MidW
}

// absorbMidIntoRight folds this entry's MID counters into RIGHT — the
// migration applied to BAFM[addr-1] when addr is removed (spec.md §4.2):
// every request where this entry was MID now loses its right neighbor.
func (e *Entry) absorbMidIntoRight() {
	e.RightR += e.MidR
	e.RightRIat += e.MidRIat
	e.RightW += e.MidW
	e.RightWIat += e.MidWIat
	e.MidR, e.MidRIat, e.MidW, e.MidWIat = 0, 0, 0, 0
}

// absorbLeftIntoSolo folds this entry's LEFT counters into SOLO — applied
// to BAFM[addr-1] when addr is removed: requests where this entry was the
// leftmost of two now have no right neighbor left at all.
func (e *Entry) absorbLeftIntoSolo() {
	e.SoloR += e.LeftR
	e.SoloRIat += e.LeftRIat
	e.SoloRMisalignByte += e.LeftRMisalignByte
	e.SoloW += e.LeftW
	e.SoloWIat += e.LeftWIat
	e.SoloWMisalignByte += e.LeftWMisalignByte
	e.LeftR, e.LeftRIat, e.LeftRMisalignByte = 0, 0, 0
	e.LeftW, e.LeftWIat, e.LeftWMisalignByte = 0, 0, 0
}

// absorbMidIntoLeft folds this entry's MID counters into LEFT — applied to
// BAFM[addr+1] when addr is removed: every request where this entry was MID
// now loses its left neighbor.
func (e *Entry) absorbMidIntoLeft() {
	e.LeftR += e.MidR
	e.LeftRIat += e.MidRIat
	e.LeftW += e.MidW
	e.LeftWIat += e.MidWIat
	e.MidR, e.MidRIat, e.MidW, e.MidWIat = 0, 0, 0, 0
}

// absorbRightIntoSolo folds this entry's RIGHT counters into SOLO — applied
// to BAFM[addr+1] when addr is removed: requests where this entry was the
// rightmost of two now have no left neighbor left at all.
func (e *Entry) absorbRightIntoSolo() {
	e.SoloR += e.RightR
	e.SoloRIat += e.RightRIat
	e.SoloRMisalignByte += e.RightRMisalignByte
	e.SoloW += e.RightW
	e.SoloWIat += e.RightWIat
	e.SoloWMisalignByte += e.RightWMisalignByte
	e.RightR, e.RightRIat, e.RightRMisalignByte = 0, 0, 0
	e.RightW, e.RightWIat, e.RightWMisalignByte = 0, 0, 0
}
