package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pbhandar2/blocksample/internal/blockio"
	"github.com/pbhandar2/blocksample/internal/checkpoint"
)

var (
	applyLogPath       string
	applyCacheTrace    string
	applyOutCacheTrace string
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Produce the reduced sample cache trace by filtering addresses a log removed",
	RunE: func(cmd *cobra.Command, args []string) error {
		logFile, err := os.Open(applyLogPath)
		if err != nil {
			return fmt.Errorf("opening checkpoint log: %w", err)
		}
		rows, err := checkpoint.ReadAll(logFile)
		logFile.Close()
		if err != nil {
			return err
		}

		removed := make(map[int64]bool, len(rows))
		for _, row := range rows {
			removed[row.Addr] = true
		}
		logrus.Infof("filtering %d removed addresses", len(removed))

		in, err := os.Open(applyCacheTrace)
		if err != nil {
			return fmt.Errorf("opening cache trace: %w", err)
		}
		defer in.Close()
		out, err := os.Create(applyOutCacheTrace)
		if err != nil {
			return fmt.Errorf("creating output cache trace: %w", err)
		}
		defer out.Close()

		reader := blockio.NewCacheTraceReader(in)
		writer := blockio.NewCacheTraceWriter(out)
		for {
			group, err := reader.NextGroup()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			for _, row := range group {
				if removed[row.CacheAddr] {
					continue
				}
				if err := writer.Write(row); err != nil {
					return fmt.Errorf("writing filtered cache trace row: %w", err)
				}
			}
		}
		return writer.Flush()
	},
}

func init() {
	applyCmd.Flags().StringVar(&applyLogPath, "log", "", "Path to the checkpoint log naming removed addresses")
	applyCmd.Flags().StringVar(&applyCacheTrace, "cache-trace", "", "Path to the input cache trace CSV")
	applyCmd.Flags().StringVar(&applyOutCacheTrace, "out-sample-cache-trace", "", "Path to write the reduced cache trace CSV")
	applyCmd.MarkFlagRequired("log")
	applyCmd.MarkFlagRequired("cache-trace")
	applyCmd.MarkFlagRequired("out-sample-cache-trace")
}
