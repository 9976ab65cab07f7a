package replay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"market-clearing/internal/clearing"
	"market-clearing/internal/coordination"
	"market-clearing/internal/model"
)

type Engine struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Run clears a series of intervals through one area. Each interval's exchange
// comes from the coordinator. A clearing error halts the run unless the area's
// failure policy absorbs it, in which case the interval is recorded as ERROR.
func (e *Engine) Run(ctx context.Context, intervals []model.Interval, area *clearing.Area, coord coordination.Coordinator) (*Result, error) {
	if area == nil {
		return nil, fmt.Errorf("area is nil")
	}
	if coord == nil {
		return nil, fmt.Errorf("coordinator is nil")
	}
	if len(intervals) == 0 {
		return nil, fmt.Errorf("no intervals")
	}

	runID := uuid.New()
	logger := e.logger.With("run_id", runID.String(), "area", area.Name(), "coordinator", coord.Name())
	logger.Info("replay started", "intervals", len(intervals))

	ledger := make([]LedgerRow, 0, len(intervals))
	for idx, it := range intervals {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ex := coord.Decide(coordination.Context{Index: idx, Interval: it})
		out, err := area.ClearInterval(ctx, clearing.Input{
			Generators: it.Generators,
			Loads:      it.Loads,
			Exchange:   ex,
		})
		if err != nil {
			return nil, fmt.Errorf("interval %d clear: %w", idx, err)
		}
		sol := out.State.Solution

		row := LedgerRow{
			Index: idx,
			RunID: runID,

			IntervalStartLocal: it.IntervalStartLocal,
			IntervalEndLocal:   it.IntervalEndLocal,
			IntervalStartUTC:   it.IntervalStartUTC,
			IntervalEndUTC:     it.IntervalEndUTC,

			Area:       area.Name(),
			Generators: len(it.Generators),
			Loads:      len(it.Loads),

			DQ: ex.DQ,
			DP: ex.DP,

			QD:       sol.QD,
			PD:       sol.PD,
			QS:       sol.QS,
			PS:       sol.PS,
			Schedule: sol.Schedule,
			Flow:     model.FlowFromSchedule(sol.Schedule),

			Result:     sol.Result,
			Branch:     sol.Branch,
			Iterations: sol.Iterations,
		}
		if out.Err != nil {
			row.Error = out.Err.Error()
		}
		ledger = append(ledger, row)
	}

	res := &Result{RunID: runID, Area: area.Name(), Ledger: ledger, Final: area.State()}
	logger.Info("replay finished", "intervals", len(ledger))
	return res, nil
}
