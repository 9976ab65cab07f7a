package curve

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"
)

// Builder accumulates components and lazily builds the aggregate curve.
// A Builder is not safe for concurrent use; each balancing area owns one.
type Builder struct {
	opts   Options
	logger *slog.Logger

	components []Component

	built int // component count of the cached curve, -1 when none
	curve *Curve
}

func NewBuilder(opts Options, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		opts:   opts,
		logger: logger.With("component", "curve"),
		built:  -1,
	}
}

// Reset drops every component and the cached curve.
func (b *Builder) Reset() {
	b.components = b.components[:0]
	b.built = -1
	b.curve = nil
}

// AddComponents appends components without rebuilding the curve and returns
// the index assigned to the first one.
func (b *Builder) AddComponents(cs ...Component) (int, error) {
	for i, c := range cs {
		if err := c.Validate(); err != nil {
			return -1, fmt.Errorf("component %d: %w", i, err)
		}
	}
	first := len(b.components)
	b.components = append(b.components, cs...)
	return first, nil
}

func (b *Builder) Len() int { return len(b.components) }

func (b *Builder) Components() []Component {
	out := make([]Component, len(b.components))
	copy(out, b.components)
	return out
}

// Curve returns the aggregate curve, building it first if components were
// added since the last build.
func (b *Builder) Curve() (*Curve, error) {
	if err := b.Refresh(false); err != nil {
		return nil, err
	}
	return b.curve, nil
}

// Check validates the current curve.
func (b *Builder) Check() error {
	c, err := b.Curve()
	if err != nil {
		return err
	}
	return c.Check()
}

// piece is a component normalized into the price range. A piece with
// start == end is a horizontal step.
type piece struct {
	index    int
	start    float64
	end      float64
	quantity float64
}

func (p piece) horizontal() bool { return p.start == p.end }

func (p piece) conductance() float64 { return p.quantity / (p.end - p.start) }

// Refresh rebuilds the curve when the component count changed since the last
// build or when force is set.
func (b *Builder) Refresh(force bool) error {
	if !force && b.curve != nil && b.built == len(b.components) {
		return nil
	}
	if b.opts.PriceCap <= b.opts.PriceFloor {
		return fmt.Errorf("%w: price cap %v must exceed floor %v", ErrMalformed, b.opts.PriceCap, b.opts.PriceFloor)
	}

	pieces := b.normalize()
	breaks := breakpoints(pieces, b.opts.PriceFloor, b.opts.PriceCap)

	n := len(b.components)
	asm := assembler{opts: b.opts, n: n}
	asm.start(breaks[0])
	asm.horizontal(pieces, breaks[0])
	for i := 1; i < len(breaks); i++ {
		asm.sloped(pieces, breaks[i-1], breaks[i])
		asm.horizontal(pieces, breaks[i])
	}

	c := asm.finish()
	c.components = b.Components()
	if err := c.Check(); err != nil {
		return err
	}
	b.curve = c
	b.built = n
	return nil
}

// normalize clamps components to [floor, cap]. Quantity offered below the
// floor becomes a step at the floor and quantity beyond the cap a step at the
// cap, so the total offered quantity is preserved.
func (b *Builder) normalize() []piece {
	floor, ceil := b.opts.PriceFloor, b.opts.PriceCap
	out := make([]piece, 0, len(b.components))
	for i, c := range b.components {
		if c.Quantity == 0 {
			continue
		}
		s, e := c.Start(), c.End()
		if s < floor || e > ceil {
			b.logger.Warn("component outside price range, clamping",
				"index", i, "start", s, "end", e, "floor", floor, "cap", ceil)
		}
		if s == e {
			p := min(max(s, floor), ceil)
			out = append(out, piece{index: i, start: p, end: p, quantity: c.Quantity})
			continue
		}
		g := c.Quantity / (e - s)
		if s < floor {
			q := (min(e, floor) - s) * g
			out = append(out, piece{index: i, start: floor, end: floor, quantity: q})
		}
		if e > ceil {
			q := (e - max(s, ceil)) * g
			out = append(out, piece{index: i, start: ceil, end: ceil, quantity: q})
		}
		lo, hi := max(s, floor), min(e, ceil)
		if hi > lo {
			out = append(out, piece{index: i, start: lo, end: hi, quantity: (hi - lo) * g})
		}
	}
	return out
}

func breakpoints(pieces []piece, floor, ceil float64) []float64 {
	set := map[float64]struct{}{floor: {}, ceil: {}}
	for _, p := range pieces {
		set[p.start] = struct{}{}
		set[p.end] = struct{}{}
	}
	out := make([]float64, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}

// assembler appends curve points, rounding as it goes. Cumulative quantity is
// kept as a decimal so rounding never drifts.
type assembler struct {
	opts Options
	n    int

	p []float64
	q []decimal.Decimal
	r [][]float64
}

func (a *assembler) start(p0 float64) {
	a.p = append(a.p, a.roundPrice(p0))
	a.q = append(a.q, decimal.Zero)
}

func (a *assembler) step(p1, dq float64, shares []float64) {
	d := decimal.NewFromFloat(dq).Round(a.opts.QuantityPrecision)
	if d.IsNegative() {
		d = decimal.Zero
	}
	a.p = append(a.p, a.roundPrice(p1))
	a.q = append(a.q, a.q[len(a.q)-1].Add(d))
	a.r = append(a.r, shares)
}

// horizontal adds one zero-price-range step holding every horizontal piece at
// price p, shared by quantity.
func (a *assembler) horizontal(pieces []piece, p float64) {
	total := 0.0
	shares := make([]float64, a.n)
	for _, pc := range pieces {
		if pc.horizontal() && pc.start == p {
			total += pc.quantity
			shares[pc.index] += pc.quantity
		}
	}
	if total == 0 {
		return
	}
	for i := range shares {
		shares[i] /= total
	}
	a.step(p, total, shares)
}

// sloped adds the step between p0 and p1. Covering pieces combine like
// parallel conductances, and each one's share is its conductance fraction.
func (a *assembler) sloped(pieces []piece, p0, p1 float64) {
	g := 0.0
	shares := make([]float64, a.n)
	for _, pc := range pieces {
		if pc.horizontal() || pc.start > p0 || pc.end < p1 {
			continue
		}
		c := pc.conductance()
		g += c
		shares[pc.index] += c
	}
	if g == 0 {
		a.step(p1, 0, shares)
		return
	}
	for i := range shares {
		shares[i] /= g
	}
	a.step(p1, (p1-p0)*g, shares)
}

func (a *assembler) roundPrice(p float64) float64 {
	return decimal.NewFromFloat(p).Round(a.opts.PricePrecision).InexactFloat64()
}

func (a *assembler) finish() *Curve {
	c := &Curve{
		P:    a.p,
		Q:    make([]float64, len(a.q)),
		DP:   make([]float64, len(a.p)-1),
		DQ:   make([]float64, len(a.q)-1),
		R:    a.r,
		opts: a.opts,
	}
	for i, q := range a.q {
		c.Q[i] = q.InexactFloat64()
	}
	for i := 1; i < len(a.q); i++ {
		c.DQ[i-1] = a.q[i].Sub(a.q[i-1]).InexactFloat64()
		c.DP[i-1] = decimal.NewFromFloat(a.p[i]).Sub(decimal.NewFromFloat(a.p[i-1])).
			Round(a.opts.PricePrecision).InexactFloat64()
	}
	return c
}
