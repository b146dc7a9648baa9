// Package optimizer implements GreedyOptimizer: the iterative
// region/address removal loop that shrinks a sample BAFM toward a target
// sampling rate while minimizing feature error against a full-trace
// reference (spec.md §4.4).
package optimizer

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pbhandar2/blocksample/internal/bafm"
	"github.com/pbhandar2/blocksample/internal/blockio"
	"github.com/pbhandar2/blocksample/internal/checkpoint"
	"github.com/pbhandar2/blocksample/internal/errormodel"
	"github.com/pbhandar2/blocksample/internal/workloadstats"
)

// Config parameterizes one optimizer run.
type Config struct {
	Metric     errormodel.Metric
	TargetRate float64
	// Bits is lower_addr_bits_ignored: 0 means every candidate is a single
	// address; N>0 groups addresses into regions of 2^N and a region
	// candidate is removed as a whole (spec.md §4.4).
	Bits uint
	// Parallel fans the per-iteration candidate scan out across goroutines.
	// The reduction back to a single winner is still done in fixed
	// candidate order, so the result is identical to the serial scan
	// (spec.md §5).
	Parallel bool
	// ShouldStop is polled once per iteration; a true return stops the
	// loop with the log already flushed through the last committed row.
	ShouldStop func() bool
}

// Optimizer owns the live BAFM, the running sample WorkloadStats, and the
// log writer for one run.
type Optimizer struct {
	cfg              Config
	blockCfg         blockio.Config
	bafm             *bafm.Map
	stats            workloadstats.Stats
	full             workloadstats.Features
	totalUniqueAddrs int64
	log              *checkpoint.Writer
}

// New constructs an Optimizer. totalUniqueAddrs is the full trace's unique
// address count, the denominator of the sampling rate (spec.md §4.4) — it
// is fixed for the run and is ordinarily >= m.Len().
func New(cfg Config, blockCfg blockio.Config, m *bafm.Map, stats workloadstats.Stats, full workloadstats.Features, totalUniqueAddrs int64, log *checkpoint.Writer) *Optimizer {
	return &Optimizer{
		cfg:              cfg,
		blockCfg:         blockCfg,
		bafm:             m,
		stats:            stats,
		full:             full,
		totalUniqueAddrs: totalUniqueAddrs,
		log:              log,
	}
}

type candidate struct {
	addrs []int64
}

// candidates groups the map's surviving addresses into single-address or
// region candidates per cfg.Bits, in ascending key order — the traversal
// order tie-breaking is defined against (spec.md §4.4).
func (o *Optimizer) candidates() []candidate {
	addrs := o.bafm.IterAddrs()
	if o.cfg.Bits == 0 {
		out := make([]candidate, len(addrs))
		for i, a := range addrs {
			out[i] = candidate{addrs: []int64{a}}
		}
		return out
	}

	regions := make(map[int64][]int64)
	for _, a := range addrs {
		key := a >> o.cfg.Bits
		regions[key] = append(regions[key], a)
	}
	keys := make([]int64, 0, len(regions))
	for k := range regions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]candidate, len(keys))
	for i, k := range keys {
		group := regions[k]
		sort.Slice(group, func(i, j int) bool { return group[i] < group[j] })
		out[i] = candidate{addrs: group}
	}
	return out
}

type scored struct {
	cand  candidate
	score float64
	ok    bool
}

// scan evaluates every current candidate against the current stats,
// returning the lowest-scoring candidate and whether it strictly improves
// on currentScore. Ties resolve to the first candidate in traversal order.
func (o *Optimizer) scan(cands []candidate, currentScore float64) (candidate, float64, bool, error) {
	results := make([]scored, len(cands))

	eval := func(i int) error {
		newStats, applied, err := o.bafm.ChainRemovalDelta(cands[i].addrs, o.stats, o.blockCfg)
		if err != nil {
			return err
		}
		if applied == 0 {
			return nil
		}
		report := errormodel.Evaluate(o.full, newStats.FeatureDict())
		score, err := report.Score(o.cfg.Metric)
		if err != nil {
			return err
		}
		results[i] = scored{cand: cands[i], score: score, ok: true}
		return nil
	}

	if o.cfg.Parallel {
		var wg sync.WaitGroup
		errs := make([]error, len(cands))
		for i := range cands {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = eval(i)
			}(i)
		}
		wg.Wait()
		for _, err := range errs {
			if err != nil {
				return candidate{}, 0, false, err
			}
		}
	} else {
		for i := range cands {
			if err := eval(i); err != nil {
				return candidate{}, 0, false, err
			}
		}
	}

	best := scored{ok: false}
	for _, r := range results {
		if !r.ok {
			continue
		}
		if !best.ok || r.score < best.score {
			best = r
		}
	}
	if !best.ok {
		return candidate{}, 0, false, nil
	}
	return best.cand, best.score, best.score < currentScore, nil
}

// Run drives the main loop of spec.md §4.4 to completion: scan, check for
// improvement, apply, log, recompute rate, repeat.
func (o *Optimizer) Run() error {
	for {
		if o.cfg.ShouldStop != nil && o.cfg.ShouldStop() {
			return nil
		}

		currentReport := errormodel.Evaluate(o.full, o.stats.FeatureDict())
		currentScore, err := currentReport.Score(o.cfg.Metric)
		if err != nil {
			return err
		}

		cands := o.candidates()
		if len(cands) == 0 {
			return nil
		}

		best, _, improves, err := o.scan(cands, currentScore)
		if err != nil {
			return err
		}
		if !improves {
			return nil
		}

		// A region candidate commits as len(best.addrs) independent removes,
		// each its own log row, in ascending address order — so Resume can
		// replay the log one address at a time regardless of what grouping
		// produced it (spec.md §4.4, §4.6).
		var lastRate float64
		for _, addr := range best.addrs {
			e, ok := o.bafm.Get(addr)
			if !ok {
				continue
			}
			start := time.Now()
			o.stats = bafm.FeatureDelta(o.stats, e, o.blockCfg)
			if err := o.bafm.Remove(addr); err != nil {
				return fmt.Errorf("applying greedy candidate: %w", err)
			}
			runtimeNs := time.Since(start).Nanoseconds()

			report := errormodel.Evaluate(o.full, o.stats.FeatureDict())
			rate := float64(o.bafm.Len()) / float64(o.totalUniqueAddrs)
			lastRate = rate
			row := checkpoint.Row{
				Report:     report,
				Addr:       addr,
				BlockCount: int64(o.bafm.Len()),
				Rate:       rate,
				RuntimeNs:  runtimeNs,
			}
			if err := o.log.Append(row); err != nil {
				return err
			}
		}

		if lastRate <= o.cfg.TargetRate {
			return nil
		}
	}
}

// Stats returns the optimizer's current running aggregate.
func (o *Optimizer) Stats() workloadstats.Stats { return o.stats }
