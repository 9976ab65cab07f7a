package curve

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// Curve is a monotone piecewise-linear curve. Segment i runs from
// (Q[i], P[i]) to (Q[i+1], P[i+1]); R[i][c] is the fraction of segment i's
// quantity supplied by component c.
type Curve struct {
	P  []float64
	Q  []float64
	DP []float64
	DQ []float64
	R  [][]float64

	opts       Options
	components []Component
}

func (c *Curve) Segments() int { return len(c.DQ) }

// Total is the cumulative quantity at the end of the curve.
func (c *Curve) Total() float64 {
	if len(c.Q) == 0 {
		return 0
	}
	return c.Q[len(c.Q)-1]
}

// Check verifies the structural invariants of the curve.
func (c *Curve) Check() error {
	if len(c.P) != len(c.Q) {
		return &CurveError{Segment: -1, Reason: "price and quantity breakpoint counts differ"}
	}
	if len(c.Q) == 0 {
		return &CurveError{Segment: -1, Reason: "no breakpoints"}
	}
	if c.Q[0] != 0 {
		return &CurveError{Segment: 0, Reason: "curve does not start at zero quantity"}
	}
	for i, q := range c.Q {
		if q < 0 {
			return &CurveError{Segment: i, Reason: "negative cumulative quantity"}
		}
	}
	for i, dq := range c.DQ {
		if dq < 0 {
			return &CurveError{Segment: i, Reason: "negative quantity step"}
		}
		if c.P[i+1] < c.P[i] {
			return &CurveError{Segment: i, Reason: "price decreases"}
		}
	}
	return nil
}

// Slopes returns dP/dQ per segment, +Inf where the segment has no quantity.
func (c *Curve) Slopes() []float64 {
	out := make([]float64, len(c.DQ))
	for i := range c.DQ {
		if c.DQ[i] == 0 {
			out[i] = math.Inf(1)
			continue
		}
		out[i] = c.DP[i] / c.DQ[i]
	}
	return out
}

// Aggregator resolves the candidate values found at a breakpoint.
type Aggregator func([]float64) float64

func Min(v []float64) float64 {
	out := math.Inf(1)
	for _, x := range v {
		out = math.Min(out, x)
	}
	return out
}

func Max(v []float64) float64 {
	out := math.Inf(-1)
	for _, x := range v {
		out = math.Max(out, x)
	}
	return out
}

func Mean(v []float64) float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

type lookup struct {
	agg    Aggregator
	offset float64
}

type LookupOption func(*lookup)

// WithAggregator collapses all candidates into a single value.
func WithAggregator(fn Aggregator) LookupOption {
	return func(l *lookup) { l.agg = fn }
}

// WithOffset shifts the curve by dq along the quantity axis, as when dq has
// already cleared elsewhere.
func WithOffset(dq float64) LookupOption {
	return func(l *lookup) { l.offset = dq }
}

func applyLookup(opts []LookupOption) lookup {
	var l lookup
	for _, o := range opts {
		o(&l)
	}
	return l
}

func (l lookup) resolve(cands []float64) []float64 {
	if l.agg == nil || len(cands) == 0 {
		return cands
	}
	return []float64{l.agg(cands)}
}

// PriceAt returns every price the curve takes at quantity q, ascending.
// Vertical segments yield more than one candidate. Quantities off the curve
// yield none.
func (c *Curve) PriceAt(q float64, opts ...LookupOption) []float64 {
	l := applyLookup(opts)
	q -= l.offset
	var out []float64
	for i := range c.DQ {
		if q < c.Q[i] || q > c.Q[i+1] {
			continue
		}
		switch {
		case c.DQ[i] == 0:
			out = append(out, c.P[i], c.P[i+1])
		case q == c.Q[i]:
			out = append(out, c.P[i])
		case q == c.Q[i+1]:
			out = append(out, c.P[i+1])
		default:
			out = append(out, c.P[i]+(q-c.Q[i])*c.DP[i]/c.DQ[i])
		}
	}
	return l.resolve(uniqueSorted(out))
}

// QuantityAt returns every cumulative quantity at price p, ascending.
// Horizontal segments yield more than one candidate.
func (c *Curve) QuantityAt(p float64, opts ...LookupOption) []float64 {
	l := applyLookup(opts)
	var out []float64
	for i := range c.DP {
		if p < c.P[i] || p > c.P[i+1] {
			continue
		}
		switch {
		case c.DP[i] == 0:
			out = append(out, c.Q[i], c.Q[i+1])
		case p == c.P[i]:
			out = append(out, c.Q[i])
		case p == c.P[i+1]:
			out = append(out, c.Q[i+1])
		default:
			out = append(out, c.Q[i]+(p-c.P[i])*c.DQ[i]/c.DP[i])
		}
	}
	out = uniqueSorted(out)
	for i := range out {
		out[i] += l.offset
	}
	return l.resolve(out)
}

func uniqueSorted(v []float64) []float64 {
	if len(v) < 2 {
		return v
	}
	sort.Float64s(v)
	out := v[:1]
	for _, x := range v[1:] {
		if x != out[len(out)-1] {
			out = append(out, x)
		}
	}
	return out
}

// span is the kept parameter range [lo, hi] along one segment.
type span struct {
	lo, hi float64
	ok     bool
}

// Left returns the part of the curve at or below quantity q.
func (c *Curve) Left(q float64) *Curve {
	return c.cut(func(i int) span { return quantitySpan(c, i, math.Inf(-1), q) })
}

// Right returns the part of the curve at or above quantity q, re-based so it
// starts at zero quantity.
func (c *Curve) Right(q float64) *Curve {
	return c.cut(func(i int) span { return quantitySpan(c, i, q, math.Inf(1)) })
}

// Below returns the part of the curve at or below price p.
func (c *Curve) Below(p float64) *Curve {
	return c.cut(func(i int) span { return priceSpan(c, i, math.Inf(-1), p) })
}

// Above returns the part of the curve at or above price p.
func (c *Curve) Above(p float64) *Curve {
	return c.cut(func(i int) span { return priceSpan(c, i, p, math.Inf(1)) })
}

func quantitySpan(c *Curve, i int, lo, hi float64) span {
	q0, q1 := c.Q[i], c.Q[i+1]
	if q1 < lo || q0 > hi {
		return span{}
	}
	if c.DQ[i] == 0 {
		return span{lo: 0, hi: 1, ok: true}
	}
	t0 := math.Max(0, (lo-q0)/c.DQ[i])
	t1 := math.Min(1, (hi-q0)/c.DQ[i])
	return span{lo: t0, hi: t1, ok: t1 > t0}
}

func priceSpan(c *Curve, i int, lo, hi float64) span {
	p0, p1 := c.P[i], c.P[i+1]
	if p1 < lo || p0 > hi {
		return span{}
	}
	if c.DP[i] == 0 {
		return span{lo: 0, hi: 1, ok: true}
	}
	t0 := math.Max(0, (lo-p0)/c.DP[i])
	t1 := math.Min(1, (hi-p0)/c.DP[i])
	return span{lo: t0, hi: t1, ok: t1 > t0}
}

// cut keeps the given parameter span of every segment and re-bases the
// quantities of the result to start at zero.
func (c *Curve) cut(keep func(int) span) *Curve {
	out := &Curve{opts: c.opts, components: c.components}
	var base float64
	for i := range c.DQ {
		s := keep(i)
		if !s.ok {
			continue
		}
		q0 := c.Q[i] + s.lo*c.DQ[i]
		p0 := c.P[i] + s.lo*c.DP[i]
		q1 := c.Q[i] + s.hi*c.DQ[i]
		p1 := c.P[i] + s.hi*c.DP[i]
		if len(out.P) == 0 {
			base = q0
			out.P = append(out.P, c.roundPrice(p0))
			out.Q = append(out.Q, 0)
		}
		nq := c.roundQuantity(q1 - base)
		np := c.roundPrice(p1)
		out.DQ = append(out.DQ, c.roundQuantity(nq-out.Q[len(out.Q)-1]))
		out.DP = append(out.DP, c.roundPrice(np-out.P[len(out.P)-1]))
		out.P = append(out.P, np)
		out.Q = append(out.Q, nq)
		row := make([]float64, len(c.R[i]))
		copy(row, c.R[i])
		out.R = append(out.R, row)
	}
	return out
}

func (c *Curve) roundPrice(p float64) float64 {
	return decimal.NewFromFloat(p).Round(c.opts.PricePrecision).InexactFloat64()
}

func (c *Curve) roundQuantity(q float64) float64 {
	return decimal.NewFromFloat(q).Round(c.opts.QuantityPrecision).InexactFloat64()
}

// Share is one component's part of a partitioned curve.
type Share struct {
	Index     int       `json:"index"`
	Component Component `json:"component"`
	Quantity  float64   `json:"quantity"`
	// Fraction of the component's own quantity.
	Fraction float64 `json:"fraction"`
}

// ComponentsAt returns the components on one side of a boundary with the
// quantity each supplies there. With byPrice the boundary is a price and
// inside selects the part at or below it; otherwise it is a quantity and
// inside selects the part left of it. A positive limit truncates the
// partition to that total quantity.
func (c *Curve) ComponentsAt(value float64, byPrice, inside bool, limit float64) []Share {
	var sub *Curve
	switch {
	case byPrice && inside:
		sub = c.Below(value)
	case byPrice:
		sub = c.Above(value)
	case inside:
		sub = c.Left(value)
	default:
		sub = c.Right(value)
	}
	if limit > 0 {
		sub = sub.Left(limit)
	}

	qty := make([]float64, len(c.components))
	for s := range sub.DQ {
		for k, r := range sub.R[s] {
			qty[k] += r * sub.DQ[s]
		}
	}
	var out []Share
	for k, q := range qty {
		if q <= 0 {
			continue
		}
		sh := Share{Index: k, Component: c.components[k], Quantity: q}
		if c.components[k].Quantity > 0 {
			sh.Fraction = q / c.components[k].Quantity
		}
		out = append(out, sh)
	}
	return out
}

// SegmentsOf lists the segments component k contributes to.
func (c *Curve) SegmentsOf(k int) []int {
	var out []int
	for s, row := range c.R {
		if k < len(row) && row[k] > 0 {
			out = append(out, s)
		}
	}
	return out
}

// ComponentsIn lists the components contributing to segment s.
func (c *Curve) ComponentsIn(s int) []int {
	if s < 0 || s >= len(c.R) {
		return nil
	}
	var out []int
	for k, r := range c.R[s] {
		if r > 0 {
			out = append(out, k)
		}
	}
	return out
}

// Surplus is the producer surplus of component k when the curve clears at
// price p.
func (c *Curve) Surplus(k int, p float64) float64 {
	total := 0.0
	for s := range c.DQ {
		if k >= len(c.R[s]) || c.R[s][k] == 0 || c.DQ[s] == 0 || c.P[s] >= p {
			continue
		}
		p0, p1 := c.P[s], c.P[s+1]
		var area float64
		if p1 <= p {
			area = c.DQ[s] * (p - (p0+p1)/2)
		} else {
			t := (p - p0) / c.DP[s]
			area = t * c.DQ[s] * (p - p0) / 2
		}
		total += c.R[s][k] * area
	}
	return total
}
