package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pbhandar2/blocksample/internal/bafm"
	"github.com/pbhandar2/blocksample/internal/blockio"
	"github.com/pbhandar2/blocksample/internal/checkpoint"
	"github.com/pbhandar2/blocksample/internal/config"
	"github.com/pbhandar2/blocksample/internal/errormodel"
	"github.com/pbhandar2/blocksample/internal/optimizer"
	"github.com/pbhandar2/blocksample/internal/workloadstats"
)

var (
	optBAFMPath     string
	optFullStats    string
	optLogPath      string
	optMetric       string
	optTargetRate   float64
	optBits         int
	optConfigPath   string
	optParallelScan bool
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Greedily remove addresses from a sample BAFM toward a target sampling rate",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := blockio.DefaultConfig()
		if optConfigPath != "" {
			var err error
			cfg, err = config.Load(optConfigPath)
			if err != nil {
				return err
			}
		}

		metric := errormodel.Metric(optMetric)
		switch metric {
		case errormodel.MetricMean, errormodel.MetricMax, errormodel.MetricWMean:
		default:
			return fmt.Errorf("unknown --metric %q, want mean, max, or wmean", optMetric)
		}

		bafmFile, err := os.Open(optBAFMPath)
		if err != nil {
			return fmt.Errorf("opening bafm snapshot: %w", err)
		}
		m, err := bafm.Load(bafmFile)
		bafmFile.Close()
		if err != nil {
			return fmt.Errorf("loading bafm snapshot: %w", err)
		}

		fullStatsFile, err := os.Open(optFullStats)
		if err != nil {
			return fmt.Errorf("opening full-stats file: %w", err)
		}
		fullStats, err := workloadstats.ReadJSON(fullStatsFile)
		fullStatsFile.Close()
		if err != nil {
			return fmt.Errorf("reading full-stats file: %w", err)
		}
		full := fullStats.FeatureDict()

		stats := m.AggregateStats(cfg)

		freshLog := true
		if existing, err := os.Open(optLogPath); err == nil {
			info, statErr := existing.Stat()
			rows, readErr := checkpoint.ReadAll(existing)
			existing.Close()
			if readErr != nil {
				return readErr
			}
			if statErr == nil && info.Size() > 0 {
				freshLog = false
			}
			if len(rows) > 0 {
				logrus.Infof("resuming from %d logged removals", len(rows))
				stats, err = checkpoint.Resume(m, stats, full, cfg, rows)
				if err != nil {
					return err
				}
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("opening checkpoint log: %w", err)
		}

		logFile, err := os.OpenFile(optLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening checkpoint log for append: %w", err)
		}
		defer logFile.Close()
		writer, err := checkpoint.NewWriter(logFile, freshLog)
		if err != nil {
			return err
		}

		opt := optimizer.New(optimizer.Config{
			Metric:     metric,
			TargetRate: optTargetRate,
			Bits:       uint(optBits),
			Parallel:   optParallelScan,
		}, cfg, m, stats, full, fullStats.TotalUniqueAddrs, writer)

		if err := opt.Run(); err != nil {
			return fmt.Errorf("running optimizer: %w", err)
		}
		logrus.Infof("optimize complete: %d addresses survive", m.Len())
		return nil
	},
}

func init() {
	optimizeCmd.Flags().StringVar(&optBAFMPath, "bafm", "", "Path to the sample BAFM snapshot")
	optimizeCmd.Flags().StringVar(&optFullStats, "full-stats", "", "Path to the full-trace reference WorkloadStats JSON")
	optimizeCmd.Flags().StringVar(&optLogPath, "log", "", "Path to the checkpoint log (created if absent, resumed if present)")
	optimizeCmd.Flags().StringVar(&optMetric, "metric", "mean", "Scoring metric: mean, max, or wmean")
	optimizeCmd.Flags().Float64Var(&optTargetRate, "target-rate", 0, "Stop once surviving/full unique-block ratio reaches this")
	optimizeCmd.Flags().IntVar(&optBits, "bits", 0, "lower_addr_bits_ignored: group addresses into regions of 2^bits")
	optimizeCmd.Flags().StringVar(&optConfigPath, "config", "", "Optional reader config YAML (lba_size_byte, cache_block_byte)")
	optimizeCmd.Flags().BoolVar(&optParallelScan, "parallel", false, "Fan the per-iteration candidate scan out across goroutines")
	optimizeCmd.MarkFlagRequired("bafm")
	optimizeCmd.MarkFlagRequired("full-stats")
	optimizeCmd.MarkFlagRequired("log")
}
