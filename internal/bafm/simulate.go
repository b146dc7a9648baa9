package bafm

import (
	"github.com/pbhandar2/blocksample/internal/bafmerr"
	"github.com/pbhandar2/blocksample/internal/blockio"
	"github.com/pbhandar2/blocksample/internal/workloadstats"
)

// overlay is a copy-on-write view over a Map used to score a candidate
// removal (or chain of removals) without mutating the real structure —
// the "immutable snapshot" the concurrent candidate scan of spec.md §5
// requires. Touched entries are copied into mut on first access; deleted
// addresses are marked in removed rather than actually deleted.
type overlay struct {
	base    *Map
	mut     map[int64]*Entry
	removed map[int64]bool
}

func newOverlay(base *Map) *overlay {
	return &overlay{base: base, mut: make(map[int64]*Entry), removed: make(map[int64]bool)}
}

func (o *overlay) get(addr int64) (*Entry, bool) {
	if o.removed[addr] {
		return nil, false
	}
	if e, ok := o.mut[addr]; ok {
		return e, true
	}
	if e, ok := o.base.entries[addr]; ok {
		cp := *e
		o.mut[addr] = &cp
		return o.mut[addr], true
	}
	return nil, false
}

func (o *overlay) remove(addr int64) (Entry, error) {
	e, ok := o.get(addr)
	if !ok {
		return Entry{}, bafmerr.NotFound(addr)
	}
	removed := *e
	if left, ok := o.get(addr - 1); ok {
		left.absorbMidIntoRight()
		left.absorbLeftIntoSolo()
	}
	if right, ok := o.get(addr + 1); ok {
		right.absorbMidIntoLeft()
		right.absorbRightIntoSolo()
	}
	o.removed[addr] = true
	delete(o.mut, addr)
	return removed, nil
}

// ChainRemovalDelta scores the hypothetical WorkloadStats after removing
// every address in addrs, in order, without mutating m. This is how
// GreedyOptimizer evaluates a single-address candidate (len(addrs) == 1)
// and a lower_addr_bits_ignored region candidate (len(addrs) > 1) the same
// way: a region-removal is just several neighbor-aware removes applied in
// ascending address order (spec.md §4.4), so later removes in the chain see
// the earlier ones' migrations.
//
// Addresses in addrs that are no longer present in m (already removed by
// an earlier, unrelated candidate application) are skipped; the returned
// count reflects only the removals that actually happened.
func (m *Map) ChainRemovalDelta(addrs []int64, stats workloadstats.Stats, cfg blockio.Config) (workloadstats.Stats, int, error) {
	ov := newOverlay(m)
	applied := 0
	for _, addr := range addrs {
		e, ok := ov.get(addr)
		if !ok {
			continue
		}
		stats = FeatureDelta(stats, *e, cfg)
		if _, err := ov.remove(addr); err != nil {
			return stats, applied, err
		}
		applied++
	}
	return stats, applied, nil
}
