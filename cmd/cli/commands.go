package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"market-clearing/internal/analysis"
	"market-clearing/internal/clearing"
	"market-clearing/internal/config"
	"market-clearing/internal/coordination"
	"market-clearing/internal/data"
	"market-clearing/internal/model"
	"market-clearing/internal/replay"
)

func newClearCmd() *cobra.Command {
	var cfgPath string
	var dq, dp float64
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear every configured area once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			m, err := cfg.NewMarket(logger)
			if err != nil {
				return err
			}
			inputs := map[string]clearing.Input{}
			for _, name := range m.Names() {
				in := m.Area(name).Snapshot()
				in.Exchange = model.Exchange{DQ: dq, DP: dp}
				inputs[name] = in
			}
			outs, err := m.ClearAll(cmd.Context(), inputs)
			if err != nil {
				return err
			}

			fmt.Printf("%-12s %-14s %-10s %-10s %-10s %-10s %-10s %-8s\n", "area", "result", "qd", "pd", "qs", "ps", "schedule", "flow")
			for _, name := range m.Names() {
				sol := outs[name].State.Solution
				fmt.Printf("%-12s %-14s %-10.2f %-10.2f %-10.2f %-10.2f %-10.2f %-8s\n",
					name, sol.Result, sol.QD, sol.PD, sol.QS, sol.PS, sol.Schedule, model.FlowFromSchedule(sol.Schedule))
				for _, d := range outs[name].Dispatch {
					fmt.Printf("  %-20s %10.2f MW (%.0f%%)\n", d.Resource, d.Quantity, 100*d.Fraction)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to YAML market config")
	cmd.Flags().Float64Var(&dq, "dq", 0, "Scheduled net export applied to every area (MW)")
	cmd.Flags().Float64Var(&dp, "dp", 0, "Price subsidy applied to every area ($/MWh)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func newCurveCmd() *cobra.Command {
	var cfgPath, area string
	cmd := &cobra.Command{
		Use:   "curve",
		Short: "Print the aggregate supply curve of an area",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if _, ok := cfg.Area(area); !ok {
				return fmt.Errorf("%w: %s", clearing.ErrUnknownArea, area)
			}
			m, err := cfg.NewMarket(logger)
			if err != nil {
				return err
			}
			c, err := m.Area(area).SupplyCurve()
			if err != nil {
				return err
			}
			slopes := c.Slopes()
			fmt.Printf("%-4s %-12s %-12s %-12s %-12s %s\n", "seg", "p0", "p1", "q0", "q1", "components")
			for s := 0; s < c.Segments(); s++ {
				comps := make([]string, 0)
				for _, k := range c.ComponentsIn(s) {
					comps = append(comps, fmt.Sprintf("%d:%.2f", k, c.R[s][k]))
				}
				fmt.Printf("%-4d %-12.4f %-12.4f %-12.4f %-12.4f %s (slope %.4g)\n",
					s, c.P[s], c.P[s+1], c.Q[s], c.Q[s+1], strings.Join(comps, " "), slopes[s])
			}
			fmt.Printf("total %.4f MW\n", c.Total())
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to YAML market config")
	cmd.Flags().StringVar(&area, "area", "", "Area name")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("area")
	return cmd
}

func newReplayCmd() *cobra.Command {
	var cfgPath, dataPath, outPath string
	var n int
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay an interval dataset and write the ledger as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if cfgPath != "" {
				loaded, err := config.Load(cfgPath)
				if err != nil {
					return err
				}
				cfg = *loaded
			}
			cc, err := cfg.Market.ToClearingConfig()
			if err != nil {
				return err
			}
			file, err := data.LoadIntervalsJSON(dataPath)
			if err != nil {
				return err
			}
			groups := data.GroupByArea(file)

			var ledger []replay.LedgerRow
			engine := replay.New(logger)
			for _, name := range sortedAreas(groups) {
				intervals := groups[name]
				if n > 0 && n < len(intervals) {
					intervals = intervals[:n]
				}
				ac, _ := cfg.Area(name)
				coord, err := ac.Coordinator.Build()
				if err != nil {
					return err
				}
				res, err := engine.Run(cmd.Context(), intervals, clearing.NewArea(name, cc, clearing.WithAreaLogger(logger)), coord)
				if err != nil {
					return fmt.Errorf("area %s: %w", name, err)
				}
				ledger = append(ledger, res.Ledger...)
				s := analysis.Summarize(res.Ledger)
				fmt.Printf("%-12s intervals=%d accepted=%d mean=%.2f export=%.1fMWh import=%.1fMWh\n",
					name, s.Count, s.Accepted, s.MeanPrice, s.ExportMWh, s.ImportMWh)
			}

			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return err
			}
			if err := replay.WriteLedgerCSV(outPath, ledger); err != nil {
				return err
			}
			fmt.Printf("Wrote %d rows to %s\n", len(ledger), outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to YAML market config (optional)")
	cmd.Flags().StringVar(&dataPath, "data", "intervals.json", "Path to interval dataset JSON")
	cmd.Flags().StringVar(&outPath, "out", "results/ledger.csv", "Output CSV path")
	cmd.Flags().IntVarP(&n, "n", "n", 0, "Limit to the first N intervals per area (0=all)")
	return cmd
}

func newSummaryCmd() *cobra.Command {
	var dataPaths string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Replay datasets with their recorded exchanges and rank areas by mean price",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := clearing.DefaultConfig()
			cc.Policy = model.PolicyIgnore

			groups := map[string][]model.Interval{}
			for _, p := range splitPaths(dataPaths) {
				if err := collect(p, groups); err != nil {
					return err
				}
			}

			byArea := map[string][]replay.LedgerRow{}
			engine := replay.New(logger)
			for name, intervals := range groups {
				res, err := engine.Run(cmd.Context(), intervals, clearing.NewArea(name, cc, clearing.WithAreaLogger(logger)), coordination.Static{})
				if err != nil {
					return fmt.Errorf("area %s: %w", name, err)
				}
				byArea[name] = res.Ledger
			}

			ranked := analysis.RankAreas(byArea)
			fmt.Printf("%-4s %-12s %-8s %-8s %-10s %-10s %-17s %-10s %-10s\n", "rank", "area", "count", "ok", "mean", "p95-p05", "min/max", "export", "import")
			for i, r := range ranked {
				fmt.Printf("%-4d %-12s %-8d %-8d %-10.2f %-10.2f %-8.1f/%-8.1f %-10.1f %-10.1f\n",
					i+1, r.Area, r.Count, r.Accepted, r.MeanPrice, r.SpreadP95P05, r.MinPrice, r.MaxPrice, r.ExportMWh, r.ImportMWh)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dataPaths, "data", "intervals.json", "Comma-separated JSON paths or a directory")
	return cmd
}

// collect loads a dataset file, or every .json file in a directory, into groups.
func collect(path string, groups map[string][]model.Interval) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	files := []string{path}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return err
		}
		files = files[:0]
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	for _, f := range files {
		file, err := data.LoadIntervalsJSON(f)
		if err != nil {
			return err
		}
		for area, intervals := range data.GroupByArea(file) {
			groups[area] = append(groups[area], intervals...)
		}
	}
	return nil
}

func splitPaths(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func sortedAreas(groups map[string][]model.Interval) []string {
	out := make([]string, 0, len(groups))
	for k := range groups {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
