package checkpoint

import (
	"github.com/pbhandar2/blocksample/internal/bafm"
	"github.com/pbhandar2/blocksample/internal/bafmerr"
	"github.com/pbhandar2/blocksample/internal/blockio"
	"github.com/pbhandar2/blocksample/internal/errormodel"
	"github.com/pbhandar2/blocksample/internal/workloadstats"
)

// Resume replays every logged row against a freshly built BAFM, applying
// Map.Remove and bafm.FeatureDelta in the order they were originally logged
// — no trace rescan, per spec.md §4.6. It checks the post-removal
// block_count on every row, then recomputes the final error report and
// compares it field-for-field against the last logged row.
//
// Unlike the original implementation's 1e6-unit float tolerance, every
// quantity here flows from exact int64 aggregates with no intermediate
// float round-trip, so the final comparison uses exact equality
// (spec.md §9's resolved design note).
func Resume(m *bafm.Map, stats workloadstats.Stats, full workloadstats.Features, cfg blockio.Config, rows []Row) (workloadstats.Stats, error) {
	for i, row := range rows {
		e, ok := m.Get(row.Addr)
		if !ok {
			return stats, bafmerr.ResumeCorrupt("checkpoint log row %d: address %d not present in sample BAFM", i+1, row.Addr)
		}
		stats = bafm.FeatureDelta(stats, e, cfg)
		if err := m.Remove(row.Addr); err != nil {
			return stats, err
		}
		if int64(m.Len()) != row.BlockCount {
			return stats, bafmerr.ResumeCorrupt("checkpoint log row %d: block_count %d after replay, log says %d", i+1, m.Len(), row.BlockCount)
		}
	}

	if len(rows) == 0 {
		return stats, nil
	}
	last := rows[len(rows)-1]
	report := errormodel.Evaluate(full, stats.FeatureDict())
	if report.Mean != last.Report.Mean || report.Max != last.Report.Max || report.WMean != last.Report.WMean {
		return stats, bafmerr.ResumeCorrupt("reconstructed aggregate (mean=%g max=%g wmean=%g) does not match last checkpoint row (mean=%g max=%g wmean=%g)",
			report.Mean, report.Max, report.WMean, last.Report.Mean, last.Report.Max, last.Report.WMean)
	}
	for name, v := range last.Report.FeatureErrors {
		if report.FeatureErrors[name] != v {
			return stats, bafmerr.ResumeCorrupt("reconstructed feature error %q = %g does not match last checkpoint row value %g", name, report.FeatureErrors[name], v)
		}
	}
	return stats, nil
}
