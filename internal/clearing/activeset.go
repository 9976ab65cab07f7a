package clearing

import (
	"math"
	"math/bits"
	"strconv"
	"strings"

	"market-clearing/internal/linsys"
)

// Bound rows, in the order of the unknowns they limit.
const (
	BoundDemandQuantity = iota // qd <= qu+qr
	BoundDemandPrice           // pd <= pmax
	BoundSupplyQuantity        // qs <= qw+qg
	BoundSupplyPrice           // ps >= pmin
	numBounds
)

var boundNames = [numBounds]string{"qd<=qu+qr", "pd<=pmax", "qs<=qw+qg", "ps>=pmin"}

// ActiveSet is a set of bound rows.
type ActiveSet uint8

func SetOf(rows ...int) ActiveSet {
	var s ActiveSet
	for _, r := range rows {
		s = s.Add(r)
	}
	return s
}

func (s ActiveSet) Add(row int) ActiveSet { return s | 1<<row }

func (s ActiveSet) Has(row int) bool { return s&(1<<row) != 0 }

func (s ActiveSet) Minus(o ActiveSet) ActiveSet { return s &^ o }

func (s ActiveSet) Len() int { return bits.OnesCount8(uint8(s)) }

func (s ActiveSet) Indices() []int {
	out := make([]int, 0, s.Len())
	for r := 0; r < numBounds; r++ {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s ActiveSet) String() string {
	parts := make([]string, 0, s.Len())
	for _, r := range s.Indices() {
		parts = append(parts, strconv.Itoa(r)+":"+boundNames[r])
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// bound is one candidate bound row. The row is term = sign*limit, and the
// bound is reached when sign*x >= sign*limit.
type bound struct {
	term  linsys.Term
	limit float64
	sign  float64
}

func boundsOf(p Parameters) [numBounds]bound {
	return [numBounds]bound{
		{term: linsys.T("qd", 1), limit: p.QU + p.QR, sign: 1},
		{term: linsys.T("pd", 1), limit: p.PMax, sign: 1},
		{term: linsys.T("qs", 1), limit: p.QW + p.QG, sign: 1},
		{term: linsys.T("ps", -1), limit: p.PMin, sign: -1},
	}
}

func (b bound) rhs() float64 { return b.term.Coef * b.limit }

func (b bound) reached(x, tol float64) bool {
	t := tol * max(1, math.Abs(b.limit))
	return b.sign*x >= b.sign*b.limit-t
}
