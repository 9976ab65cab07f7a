package analysis

import (
	"sort"

	"market-clearing/internal/replay"
)

type RankedSummary struct {
	Summary
}

// RankAreas summarizes each area's ledger and sorts descending by mean
// cleared price, then by name.
func RankAreas(byArea map[string][]replay.LedgerRow) []RankedSummary {
	out := make([]RankedSummary, 0, len(byArea))
	for area, ledger := range byArea {
		s := Summarize(ledger)
		if s.Area == "" {
			s.Area = area
		}
		out = append(out, RankedSummary{Summary: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MeanPrice != out[j].MeanPrice {
			return out[i].MeanPrice > out[j].MeanPrice
		}
		return out[i].Area < out[j].Area
	})
	return out
}
