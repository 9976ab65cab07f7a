package analysis

import (
	"math"
	"sort"
	"time"

	"market-clearing/internal/clearing"
	"market-clearing/internal/model"
	"market-clearing/internal/replay"
)

// Summary is an area-level digest of a replay ledger. Price statistics cover
// accepted intervals only; skipped and failed intervals are counted but carry
// a stale price.
type Summary struct {
	Area string

	StartUTC time.Time
	EndUTC   time.Time

	Count    int
	Accepted int
	Results  map[model.ResultCode]int
	Fallback int

	MinPrice  float64
	MaxPrice  float64
	MeanPrice float64
	P05Price  float64
	P95Price  float64

	SpreadP95P05 float64

	// Energy scheduled across the area boundary (MWh). Intervals without
	// timestamps count as one hour.
	ExportMWh float64
	ImportMWh float64
}

func Summarize(ledger []replay.LedgerRow) Summary {
	s := Summary{Results: map[model.ResultCode]int{}}
	if len(ledger) == 0 {
		return s
	}
	s.Area = ledger[0].Area
	s.Count = len(ledger)
	s.StartUTC = ledger[0].IntervalStartUTC
	s.EndUTC = ledger[len(ledger)-1].IntervalEndUTC

	sum := 0.0
	minv := math.Inf(1)
	maxv := math.Inf(-1)
	vals := make([]float64, 0, len(ledger))
	for _, r := range ledger {
		s.Results[r.Result]++
		if !r.Result.Accepted() {
			continue
		}
		s.Accepted++
		if r.Branch != "" && r.Branch != clearing.BranchActiveSet {
			s.Fallback++
		}

		dt := r.IntervalEndUTC.Sub(r.IntervalStartUTC).Hours()
		if dt <= 0 {
			dt = 1
		}
		if r.Schedule > 0 {
			s.ExportMWh += r.Schedule * dt
		} else {
			s.ImportMWh -= r.Schedule * dt
		}

		v := r.PS
		vals = append(vals, v)
		sum += v
		if v < minv {
			minv = v
		}
		if v > maxv {
			maxv = v
		}
	}
	if len(vals) == 0 {
		return s
	}
	sort.Float64s(vals)
	s.MinPrice = minv
	s.MaxPrice = maxv
	s.MeanPrice = sum / float64(len(vals))
	s.P05Price = percentileSorted(vals, 0.05)
	s.P95Price = percentileSorted(vals, 0.95)
	s.SpreadP95P05 = s.P95Price - s.P05Price
	return s
}

func percentileSorted(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	// Linear interpolation between order stats.
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
