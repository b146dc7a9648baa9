package bafm

import (
	"github.com/pbhandar2/blocksample/internal/blockio"
	"github.com/pbhandar2/blocksample/internal/workloadstats"
)

// FeatureDelta computes the WorkloadStats that would result from removing
// the address whose entry is e, given the current stats and only e itself
// — no trace access, no neighbor lookup (spec.md §4.3). This is sound
// because Map.Remove already folds a removed neighbor's MID/LEFT/RIGHT
// state into this address's own fields before e is ever read, so e's
// classes always describe "what role this address plays given who
// currently survives."
//
// MID removals split one surviving request into two; per the ambiguity
// spec.md §9 leaves open, the second piece's IAT is a duplicate of the
// original (not zero) — resolved against original_source's
// BAFM.get_new_workload_stat, which nets to exactly this by construction.
func FeatureDelta(stats workloadstats.Stats, e Entry, cfg blockio.Config) workloadstats.Stats {
	B := cfg.CacheBlockByte

	readByteReduced := (e.LeftR + e.RightR + e.MidR) * B
	writeByteReduced := (e.LeftW + e.RightW + e.MidW) * B

	readMisalignByte := e.LeftRMisalignByte + e.RightRMisalignByte
	writeMisalignByte := e.LeftWMisalignByte + e.RightWMisalignByte

	readIATReduced := -e.MidRIat
	writeIATReduced := -e.MidWIat

	readCountReduced := -e.MidR
	writeCountReduced := -e.MidW

	readByteReduced += e.SoloR * B
	writeByteReduced += e.SoloW * B

	readIATReduced += e.SoloRIat
	writeIATReduced += e.SoloWIat

	readMisalignByte += e.SoloRMisalignByte
	writeMisalignByte += e.SoloWMisalignByte

	readCountReduced += e.SoloR
	writeCountReduced += e.SoloW

	totalReadByteReduced := readByteReduced - readMisalignByte
	totalWriteByteReduced := writeByteReduced - writeMisalignByte

	out := stats
	out.ReadCount -= readCountReduced
	out.WriteCount -= writeCountReduced
	out.ReadIATSum -= readIATReduced
	out.WriteIATSum -= writeIATReduced
	out.ReadByteSum -= totalReadByteReduced
	out.WriteByteSum -= totalWriteByteReduced
	out.MisalignedReadCount -= e.RMisalign
	out.MisalignedWriteCount -= e.WMisalign
	out.MisalignedReadByte -= readMisalignByte
	out.MisalignedWriteByte -= writeMisalignByte
	return out
}
