// Package cmd wires the blocksample CLI surface of spec.md §6:
// build-bafm, optimize, and apply subcommands over a single root command,
// following the teacher's cmd/root.go layout.
package cmd

import (
	"errors"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pbhandar2/blocksample/internal/bafmerr"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "blocksample",
	Short: "Shrink a sampled block-storage trace toward a target rate without rescanning it",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logrus.SetLevel(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (debug, info, warn, error)")
	rootCmd.AddCommand(buildBAFMCmd, optimizeCmd, applyCmd)
}

// Execute runs the root command and maps a returned error to the exit
// codes of spec.md §6: 0 success, 2 input validation, 3 resume corruption,
// 4 arithmetic overflow, 1 anything else.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Errorf("blocksample: %v", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, bafmerr.ErrResumeCorrupt):
		return 3
	case errors.Is(err, bafmerr.ErrOverflow):
		return 4
	case errors.Is(err, bafmerr.ErrInputFormat), errors.Is(err, bafmerr.ErrInputRange):
		return 2
	default:
		return 1
	}
}
