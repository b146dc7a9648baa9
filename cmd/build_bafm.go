package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pbhandar2/blocksample/internal/bafm"
	"github.com/pbhandar2/blocksample/internal/blockio"
)

var (
	buildCacheTracePath string
	buildOutPath        string
)

var buildBAFMCmd = &cobra.Command{
	Use:   "build-bafm",
	Short: "Build a BAFM snapshot from a cache trace",
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := os.Open(buildCacheTracePath)
		if err != nil {
			return fmt.Errorf("opening cache trace: %w", err)
		}
		defer in.Close()

		m, err := bafm.BuildFromCacheTrace(blockio.NewCacheTraceReader(in))
		if err != nil {
			return fmt.Errorf("building bafm: %w", err)
		}
		logrus.Infof("built bafm with %d addresses", m.Len())

		out, err := os.Create(buildOutPath)
		if err != nil {
			return fmt.Errorf("creating bafm snapshot: %w", err)
		}
		defer out.Close()
		if err := m.Write(out); err != nil {
			return fmt.Errorf("writing bafm snapshot: %w", err)
		}
		return nil
	},
}

func init() {
	buildBAFMCmd.Flags().StringVar(&buildCacheTracePath, "cache-trace", "", "Path to the input cache trace CSV")
	buildBAFMCmd.Flags().StringVar(&buildOutPath, "out", "", "Path to write the BAFM snapshot CSV")
	buildBAFMCmd.MarkFlagRequired("cache-trace")
	buildBAFMCmd.MarkFlagRequired("out")
}
