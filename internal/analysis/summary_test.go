package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"market-clearing/internal/clearing"
	"market-clearing/internal/model"
	"market-clearing/internal/replay"
)

func row(h int, ps, schedule float64, res model.ResultCode) replay.LedgerRow {
	start := time.Date(2024, 7, 1, h, 0, 0, 0, time.UTC)
	return replay.LedgerRow{
		Index:            h,
		Area:             "north",
		IntervalStartUTC: start,
		IntervalEndUTC:   start.Add(30 * time.Minute),
		PS:               ps,
		Schedule:         schedule,
		Result:           res,
		Branch:           clearing.BranchActiveSet,
	}
}

func TestSummarize(t *testing.T) {
	ledger := []replay.LedgerRow{
		row(0, 10, 4, model.ResultUnconstrained),
		row(1, 20, -2, model.ResultConstrained),
		row(2, 30, 0, model.ResultUnconstrained),
		row(3, 999, 50, model.ResultError),
		row(4, 40, 6, model.ResultUnconstrained),
	}
	ledger[4].Branch = clearing.BranchMidpoint

	s := Summarize(ledger)
	assert.Equal(t, "north", s.Area)
	assert.Equal(t, 5, s.Count)
	assert.Equal(t, 4, s.Accepted)
	assert.Equal(t, 1, s.Fallback)
	assert.Equal(t, 3, s.Results[model.ResultUnconstrained])
	assert.Equal(t, 1, s.Results[model.ResultError])

	assert.Equal(t, 10.0, s.MinPrice)
	assert.Equal(t, 40.0, s.MaxPrice)
	assert.Equal(t, 25.0, s.MeanPrice)
	assert.InDelta(t, 11.5, s.P05Price, 1e-9)
	assert.InDelta(t, 38.5, s.P95Price, 1e-9)
	assert.InDelta(t, 27, s.SpreadP95P05, 1e-9)

	assert.InDelta(t, 5, s.ExportMWh, 1e-9)
	assert.InDelta(t, 1, s.ImportMWh, 1e-9)
	assert.Equal(t, ledger[0].IntervalStartUTC, s.StartUTC)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.Count)
	assert.Zero(t, s.MeanPrice)

	s = Summarize([]replay.LedgerRow{row(0, 50, 0, model.ResultNone)})
	assert.Equal(t, 1, s.Count)
	assert.Zero(t, s.Accepted)
	assert.Zero(t, s.MaxPrice)
}

func TestPercentileSorted(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 1.0, percentileSorted(vals, 0))
	assert.Equal(t, 5.0, percentileSorted(vals, 1))
	assert.Equal(t, 3.0, percentileSorted(vals, 0.5))
	assert.InDelta(t, 1.4, percentileSorted(vals, 0.1), 1e-12)
	assert.Equal(t, 0.0, percentileSorted(nil, 0.5))
}

func TestRankAreas(t *testing.T) {
	south := []replay.LedgerRow{row(0, 80, 0, model.ResultUnconstrained)}
	for i := range south {
		south[i].Area = "south"
	}
	ranked := RankAreas(map[string][]replay.LedgerRow{
		"north": {row(0, 10, 0, model.ResultUnconstrained), row(1, 30, 0, model.ResultUnconstrained)},
		"south": south,
		"west":  nil,
	})
	names := []string{}
	for _, r := range ranked {
		names = append(names, r.Area)
	}
	assert.Equal(t, []string{"south", "north", "west"}, names)
	assert.Equal(t, 20.0, ranked[1].MeanPrice)
}
