package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"market-clearing/internal/analysis"
	"market-clearing/internal/clearing"
	"market-clearing/internal/config"
	"market-clearing/internal/coordination"
	"market-clearing/internal/model"
	"market-clearing/internal/replay"
)

// Demo:
// - Build a day of hourly intervals for two areas, north (hydro) and south (gas)
// - North exports to south during the evening peak
// - Replay both areas and print the cleared schedule
func main() {
	cfgPath := flag.String("config", "", "Path to YAML market config (optional, market section only)")
	n := flag.Int("n", 24, "Number of hourly intervals to simulate")
	transfer := flag.Float64("transfer", 20, "MW exported north->south during the peak window")
	outCSV := flag.String("out", "", "Optional path to write ledger CSV (e.g. results/demo.csv)")
	verbose := flag.Bool("v", false, "Log solver progress")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cc := clearing.DefaultConfig()
	if *cfgPath != "" {
		cfg, err := config.Load(*cfgPath)
		if err != nil {
			panic(err)
		}
		if cc, err = cfg.Market.ToClearingConfig(); err != nil {
			panic(err)
		}
	}

	day := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	north, south := scenario(day, *n)

	peak := coordination.WindowParams{ExportStart: "17:00", ExportEnd: "21:00", ImportStart: "00:00", ImportEnd: "00:00", ExportMW: *transfer}
	exporter, err := coordination.NewWindow(peak)
	if err != nil {
		panic(err)
	}
	importer, err := coordination.NewWindow(coordination.WindowParams{
		ExportStart: "00:00", ExportEnd: "00:00", ImportStart: peak.ExportStart, ImportEnd: peak.ExportEnd, ImportMW: *transfer,
	})
	if err != nil {
		panic(err)
	}

	engine := replay.New(logger)
	ctx := context.Background()
	var ledger []replay.LedgerRow
	for _, run := range []struct {
		name      string
		intervals []model.Interval
		coord     coordination.Coordinator
	}{
		{"north", north, exporter},
		{"south", south, importer},
	} {
		res, err := engine.Run(ctx, run.intervals, clearing.NewArea(run.name, cc, clearing.WithAreaLogger(logger)), run.coord)
		if err != nil {
			panic(err)
		}
		ledger = append(ledger, res.Ledger...)

		fmt.Printf("Area %s (%s)\n", run.name, run.coord.Name())
		for _, r := range res.Ledger {
			fmt.Printf("%s dq=%6.1f  qd=%7.2f  qs=%7.2f  ps=%7.2f  %-8s %-13s %s\n",
				r.IntervalStartLocal.Format("15:04"), r.DQ, r.QD, r.QS, r.PS, r.Flow, r.Result, r.Branch)
		}
		s := analysis.Summarize(res.Ledger)
		fmt.Printf("mean=%.2f p05=%.2f p95=%.2f export=%.1fMWh import=%.1fMWh\n\n",
			s.MeanPrice, s.P05Price, s.P95Price, s.ExportMWh, s.ImportMWh)
	}

	if *outCSV != "" {
		if err := replay.WriteLedgerCSV(*outCSV, ledger); err != nil {
			panic(err)
		}
		fmt.Printf("Wrote CSV: %s\n", *outCSV)
	}
}

// scenario builds n hourly intervals for both areas. Load follows a daily
// profile peaking in the evening.
func scenario(start time.Time, n int) (north, south []model.Interval) {
	for h := 0; h < n; h++ {
		t := start.Add(time.Duration(h) * time.Hour)
		profile := 1 + 0.35*math.Sin(2*math.Pi*float64(h%24-13)/24)

		north = append(north, interval(t, "north",
			[]model.Report{
				{Name: "hydro-base", FixedPrice: 8, Capacity: 120},
				{Name: "hydro-flex", MarginalPrice: 0.4, FixedPrice: 12, Capacity: 80},
			},
			[]model.Report{
				{Name: "towns", FixedPrice: 150, Capacity: 90 * profile},
				{Name: "industry", MarginalPrice: -0.8, FixedPrice: 0, Capacity: 40},
			}))
		south = append(south, interval(t, "south",
			[]model.Report{
				{Name: "ccgt", FixedPrice: 35, Capacity: 150},
				{Name: "peaker", MarginalPrice: 2.5, FixedPrice: 60, Capacity: 60},
			},
			[]model.Report{
				{Name: "metro", FixedPrice: 250, Capacity: 140 * profile},
				{Name: "storage", MarginalPrice: -1.5, FixedPrice: 0, Capacity: 30},
			}))
	}
	return north, south
}

func interval(t time.Time, area string, gens, loads []model.Report) model.Interval {
	return model.Interval{
		IntervalStartLocal: t,
		IntervalEndLocal:   t.Add(time.Hour),
		IntervalStartUTC:   t,
		IntervalEndUTC:     t.Add(time.Hour),
		Area:               area,
		Generators:         gens,
		Loads:              loads,
	}
}
