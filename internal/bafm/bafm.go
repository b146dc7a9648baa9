package bafm

import (
	"io"
	"sort"

	"github.com/pbhandar2/blocksample/internal/bafmerr"
	"github.com/pbhandar2/blocksample/internal/blockio"
	"github.com/pbhandar2/blocksample/internal/workloadstats"
)

// Map is the Block Access Feature Map: one Entry per currently-surviving
// block address. Map exclusively owns its entries; an entry is created on
// first access and destroyed only by Remove (spec.md §3 ownership rules).
type Map struct {
	entries map[int64]*Entry
}

// New returns an empty Map.
func New() *Map {
	return &Map{entries: make(map[int64]*Entry)}
}

// Len is the number of surviving addresses.
func (m *Map) Len() int { return len(m.entries) }

// Contains reports whether addr currently has an entry.
func (m *Map) Contains(addr int64) bool {
	_, ok := m.entries[addr]
	return ok
}

// Get returns the entry at addr and whether it exists. The returned Entry
// is a copy — callers must go through Map methods to mutate state.
func (m *Map) Get(addr int64) (Entry, bool) {
	e, ok := m.entries[addr]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// IterAddrs returns every surviving address, in ascending order for
// deterministic traversal (spec.md §4.4's tie-breaking requirement).
func (m *Map) IterAddrs() []int64 {
	addrs := make([]int64, 0, len(m.entries))
	for addr := range m.entries {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

// TotalRequestCount returns the sum over all classes and ops for addr.
func (m *Map) TotalRequestCount(addr int64) (int64, error) {
	e, ok := m.entries[addr]
	if !ok {
		return 0, bafmerr.NotFound(addr)
	}
	return e.TotalRequestCount(), nil
}

// BuildFromCacheTrace performs one streaming pass over a sample's cache
// trace, grouping rows by req_index and classifying the group's rows SOLO/
// LEFT/RIGHT/MID relative to the other addresses present in the same group
// (spec.md §4.2). A group with any write row is classified from its write
// rows alone and its read rows are dropped (see ingestGroup). Front/rear
// misalignment bytes already carried on each row attach to whichever class
// that row lands in; MID rows carry none by construction.
func BuildFromCacheTrace(r *blockio.CacheTraceReader) (*Map, error) {
	m := New()
	for {
		group, err := r.NextGroup()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		m.ingestGroup(group)
	}
	return m, nil
}

// ingestGroup classifies one req_index group. A write's misaligned edge(s)
// carry an auxiliary read row alongside the write row (spec.md §3's
// read-modify-write semantics); that auxiliary read is not a real access to
// attribute to the read side — the block request it belongs to is a write,
// full stop. So a group with any write row is classified as a write request
// and its read rows are dropped; only a group with no write rows at all is
// classified as a read request.
func (m *Map) ingestGroup(group []blockio.CacheRequest) {
	var reads, writes []blockio.CacheRequest
	for _, row := range group {
		if row.Write {
			writes = append(writes, row)
		} else {
			reads = append(reads, row)
		}
	}
	if len(writes) > 0 {
		m.ingestOp(writes)
		return
	}
	m.ingestOp(reads)
}

// ingestOp classifies one op's rows within a single req_index group by
// contiguous cache_addr runs: a lone address is SOLO, a run's two ends are
// LEFT/RIGHT, and interior addresses are MID.
func (m *Map) ingestOp(rows []blockio.CacheRequest) {
	if len(rows) == 0 {
		return
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CacheAddr < rows[j].CacheAddr })

	start := 0
	for start < len(rows) {
		end := start
		for end+1 < len(rows) && rows[end+1].CacheAddr == rows[end].CacheAddr+1 {
			end++
		}
		run := rows[start : end+1]
		for i, row := range run {
			var class blockio.Class
			switch {
			case len(run) == 1:
				class = blockio.ClassSolo
			case i == 0:
				class = blockio.ClassLeft
			case i == len(run)-1:
				class = blockio.ClassRight
			default:
				class = blockio.ClassMid
			}
			m.entryFor(row.CacheAddr).AddAccess(class, row)
		}
		start = end + 1
	}
}

func (m *Map) entryFor(addr int64) *Entry {
	e, ok := m.entries[addr]
	if !ok {
		e = &Entry{}
		m.entries[addr] = e
	}
	return e
}

// AggregateStats sums every surviving entry into a WorkloadStats aggregate,
// the same quantity BuildFromCacheTrace's caller would get by tracking the
// cache trace directly (spec.md §3's WorkloadStats). This lets `optimize`
// recover a sample's running stats from just its BAFM snapshot, with no
// need to keep the original cache trace around.
//
// Request count and IAT sum are owned by the SOLO or LEFT entry only: every
// block a request touches records that request's IAT (convert.go stamps the
// same iat_us on each row of a req_index group), so summing across all four
// classes would count a multi-block request's IAT once per block it spans.
// SOLO/LEFT is where a request starts, so crediting only those two classes
// counts each request exactly once, matching WorkloadStats.Track's per-block-
// request accounting. Byte sums stay a per-block-access sum (RightR/MidR
// included) since each touched block genuinely contributes its own bytes.
func (m *Map) AggregateStats(cfg blockio.Config) workloadstats.Stats {
	var s workloadstats.Stats
	B := cfg.CacheBlockByte
	for _, e := range m.entries {
		readBlockAccesses := e.SoloR + e.LeftR + e.RightR + e.MidR
		writeBlockAccesses := e.SoloW + e.LeftW + e.RightW + e.MidW
		readMisalignByte := e.SoloRMisalignByte + e.LeftRMisalignByte + e.RightRMisalignByte
		writeMisalignByte := e.SoloWMisalignByte + e.LeftWMisalignByte + e.RightWMisalignByte

		s.ReadCount += e.SoloR + e.LeftR
		s.WriteCount += e.SoloW + e.LeftW
		s.ReadByteSum += readBlockAccesses*B - readMisalignByte
		s.WriteByteSum += writeBlockAccesses*B - writeMisalignByte
		s.ReadIATSum += e.SoloRIat + e.LeftRIat
		s.WriteIATSum += e.SoloWIat + e.LeftWIat
		s.MisalignedReadCount += e.RMisalign
		s.MisalignedWriteCount += e.WMisalign
		s.MisalignedReadByte += readMisalignByte
		s.MisalignedWriteByte += writeMisalignByte
	}
	return s
}

// Remove deletes the entry at addr and migrates its neighbors' state, per
// the removal algorithm of spec.md §4.2. Runs in O(1): it touches only
// addr-1, addr, and addr+1. Returns bafmerr.ErrNotFound if addr is absent.
func (m *Map) Remove(addr int64) error {
	if _, ok := m.entries[addr]; !ok {
		return bafmerr.NotFound(addr)
	}
	if left, ok := m.entries[addr-1]; ok {
		left.absorbMidIntoRight()
		left.absorbLeftIntoSolo()
	}
	if right, ok := m.entries[addr+1]; ok {
		right.absorbMidIntoLeft()
		right.absorbRightIntoSolo()
	}
	delete(m.entries, addr)
	return nil
}
