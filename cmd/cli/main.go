package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose bool
	logger  *slog.Logger
)

func main() {
	root := &cobra.Command{
		Use:   "cli",
		Short: "Single-period market clearing for balancing areas",
		Long: `Clears energy markets from resource reports.

  cli clear   --config examples/market.yaml
  cli curve   --config examples/market.yaml --area north
  cli replay  --config examples/market.yaml --data examples/intervals.json --out results/ledger.csv
  cli summary --data examples/intervals.json`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log solver progress to stderr")

	root.AddCommand(newClearCmd(), newCurveCmd(), newReplayCmd(), newSummaryCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
