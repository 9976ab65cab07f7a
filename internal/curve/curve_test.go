package curve

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, cs ...Component) *Curve {
	t.Helper()
	b := NewBuilder(DefaultOptions(), nil)
	_, err := b.AddComponents(cs...)
	require.NoError(t, err)
	c, err := b.Curve()
	require.NoError(t, err)
	return c
}

func twoComponents(t *testing.T) *Curve {
	return build(t,
		Component{Quantity: 10, FixedPrice: 100, VariablePrice: 10},
		Component{Quantity: 30, FixedPrice: 95, VariablePrice: 20},
	)
}

func TestSingleComponent(t *testing.T) {
	c := build(t, Component{Quantity: 10, FixedPrice: 100, VariablePrice: 10})
	assert.Equal(t, []float64{0, 100, 110, 1000}, c.P)
	assert.Equal(t, []float64{0, 0, 10, 10}, c.Q)
	assert.Equal(t, []float64{0, 10, 0}, c.DQ)
	assert.Equal(t, []float64{100, 10, 890}, c.DP)
}

func TestTwoComponents(t *testing.T) {
	c := twoComponents(t)
	assert.Equal(t, []float64{0, 95, 100, 110, 115, 1000}, c.P)
	assert.Equal(t, []float64{0, 0, 7.5, 32.5, 40, 40}, c.Q)

	require.Len(t, c.R, 5)
	assert.Equal(t, []float64{0, 1}, c.R[1])
	assert.InDelta(t, 0.4, c.R[2][0], 1e-12)
	assert.InDelta(t, 0.6, c.R[2][1], 1e-12)
	assert.Equal(t, []float64{0, 1}, c.R[3])
	assert.Equal(t, []float64{0, 0}, c.R[4])
}

func TestHorizontalComponent(t *testing.T) {
	c := build(t, Component{Quantity: 10, FixedPrice: 50})
	assert.Equal(t, []float64{0, 50, 50, 1000}, c.P)
	assert.Equal(t, []float64{0, 0, 10, 10}, c.Q)
	assert.Equal(t, []float64{1}, c.R[1])
}

func TestSlopes(t *testing.T) {
	c := twoComponents(t)
	s := c.Slopes()
	assert.True(t, math.IsInf(s[0], 1))
	assert.InDelta(t, 5.0/7.5, s[1], 1e-12)
	assert.InDelta(t, 10.0/25, s[2], 1e-12)
	assert.True(t, math.IsInf(s[4], 1))
}

func TestMonotoneAndConservative(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		b := NewBuilder(DefaultOptions(), nil)
		n := 1 + rng.Intn(12)
		for i := 0; i < n; i++ {
			v := 0.0
			if rng.Intn(4) > 0 {
				v = math.Round(rng.Float64()*100*100) / 100
			}
			_, err := b.AddComponents(Component{
				Quantity:      math.Round(rng.Float64()*50*100) / 100,
				FixedPrice:    math.Round(rng.Float64()*800*100) / 100,
				VariablePrice: v,
			})
			require.NoError(t, err)
		}
		require.NoError(t, b.Check())
		c, err := b.Curve()
		require.NoError(t, err)

		for i := 1; i < len(c.Q); i++ {
			require.GreaterOrEqual(t, c.Q[i], c.Q[i-1])
			require.GreaterOrEqual(t, c.P[i], c.P[i-1])
		}
		for s := range c.DQ {
			sum := 0.0
			for _, r := range c.R[s] {
				sum += r * c.DQ[s]
			}
			require.InDelta(t, c.DQ[s], sum, 1e-9)
		}

		total := 0.0
		for _, comp := range b.Components() {
			total += comp.Quantity
		}
		require.InDelta(t, total, c.Total(), 1e-2)
	}
}

func TestRefreshIsLazy(t *testing.T) {
	b := NewBuilder(DefaultOptions(), nil)
	_, err := b.AddComponents(Component{Quantity: 10, FixedPrice: 100, VariablePrice: 10})
	require.NoError(t, err)

	first, err := b.Curve()
	require.NoError(t, err)
	require.NoError(t, b.Refresh(false))
	second, err := b.Curve()
	require.NoError(t, err)
	assert.Same(t, first, second)

	require.NoError(t, b.Refresh(true))
	forced, err := b.Curve()
	require.NoError(t, err)
	assert.NotSame(t, first, forced)
	assert.Equal(t, first.P, forced.P)
	assert.Equal(t, first.Q, forced.Q)

	id, err := b.AddComponents(Component{Quantity: 5, FixedPrice: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, id)
	third, err := b.Curve()
	require.NoError(t, err)
	assert.Equal(t, 15.0, third.Total())
}

func TestReset(t *testing.T) {
	b := NewBuilder(DefaultOptions(), nil)
	_, err := b.AddComponents(Component{Quantity: 10, FixedPrice: 100, VariablePrice: 10})
	require.NoError(t, err)
	b.Reset()
	assert.Equal(t, 0, b.Len())
	c, err := b.Curve()
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1000}, c.P)
	assert.Equal(t, []float64{0, 0}, c.Q)
}

func TestAddComponentsRejectsInvalid(t *testing.T) {
	b := NewBuilder(DefaultOptions(), nil)
	_, err := b.AddComponents(Component{Quantity: -1, FixedPrice: 10})
	assert.ErrorIs(t, err, ErrInvalidComponent)
	_, err = b.AddComponents(Component{Quantity: 1, FixedPrice: 10, VariablePrice: -2})
	assert.ErrorIs(t, err, ErrInvalidComponent)
	assert.Equal(t, 0, b.Len())
}

func TestOutOfRangeWarnsAndClamps(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	b := NewBuilder(DefaultOptions(), logger)
	_, err := b.AddComponents(Component{Quantity: 10, FixedPrice: -10, VariablePrice: 20})
	require.NoError(t, err)

	c, err := b.Curve()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "outside price range")
	assert.Equal(t, []float64{0, 0, 10, 1000}, c.P)
	assert.Equal(t, []float64{0, 5, 10, 10}, c.Q)

	buf.Reset()
	b.Reset()
	_, err = b.AddComponents(Component{Quantity: 4, FixedPrice: 990, VariablePrice: 20})
	require.NoError(t, err)
	c, err = b.Curve()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "outside price range")
	assert.Equal(t, 4.0, c.Total())
	assert.Equal(t, 1000.0, c.P[len(c.P)-1])
}

func TestCheck(t *testing.T) {
	c := &Curve{P: []float64{0, 10}, Q: []float64{0, -1}, DP: []float64{10}, DQ: []float64{-1}}
	err := c.Check()
	var ce *CurveError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 1, ce.Segment)
	assert.ErrorIs(t, err, ErrMalformed)

	c = &Curve{P: []float64{0}, Q: []float64{0, 1}}
	assert.ErrorIs(t, c.Check(), ErrMalformed)
}

func TestPriceAt(t *testing.T) {
	c := twoComponents(t)
	assert.Equal(t, []float64{105}, c.PriceAt(20))
	assert.Equal(t, []float64{0, 95}, c.PriceAt(0))
	assert.Equal(t, []float64{95}, c.PriceAt(0, WithAggregator(Max)))
	assert.Equal(t, []float64{115, 1000}, c.PriceAt(40))
	assert.Equal(t, []float64{557.5}, c.PriceAt(40, WithAggregator(Mean)))
	assert.Empty(t, c.PriceAt(41))
	assert.Equal(t, []float64{105}, c.PriceAt(30, WithOffset(10)))
}

func TestQuantityAt(t *testing.T) {
	c := twoComponents(t)
	assert.Equal(t, []float64{20}, c.QuantityAt(105))
	assert.Equal(t, []float64{30}, c.QuantityAt(105, WithOffset(10)))
	assert.Equal(t, []float64{0}, c.QuantityAt(50))
	assert.Equal(t, []float64{40}, c.QuantityAt(500))

	h := build(t, Component{Quantity: 10, FixedPrice: 50})
	assert.Equal(t, []float64{0, 10}, h.QuantityAt(50))
	assert.Equal(t, []float64{0}, h.QuantityAt(50, WithAggregator(Min)))
}

func TestSubCurves(t *testing.T) {
	c := twoComponents(t)

	left := c.Left(20)
	require.NoError(t, left.Check())
	assert.Equal(t, []float64{0, 0, 7.5, 20}, left.Q)
	assert.Equal(t, []float64{0, 95, 100, 105}, left.P)

	right := c.Right(20)
	require.NoError(t, right.Check())
	assert.Equal(t, 0.0, right.Q[0])
	assert.Equal(t, 105.0, right.P[0])
	assert.Equal(t, 20.0, right.Total())

	below := c.Below(110)
	require.NoError(t, below.Check())
	assert.Equal(t, 32.5, below.Total())

	above := c.Above(110)
	require.NoError(t, above.Check())
	assert.Equal(t, 7.5, above.Total())
	assert.Equal(t, 110.0, above.P[0])
}

func TestComponentsAt(t *testing.T) {
	c := twoComponents(t)

	shares := c.ComponentsAt(105, true, true, 0)
	require.Len(t, shares, 2)
	assert.Equal(t, 0, shares[0].Index)
	assert.InDelta(t, 5, shares[0].Quantity, 1e-9)
	assert.InDelta(t, 0.5, shares[0].Fraction, 1e-9)
	assert.InDelta(t, 15, shares[1].Quantity, 1e-9)

	limited := c.ComponentsAt(105, true, true, 7.5)
	require.Len(t, limited, 1)
	assert.Equal(t, 1, limited[0].Index)
	assert.InDelta(t, 7.5, limited[0].Quantity, 1e-9)

	byQty := c.ComponentsAt(32.5, false, false, 0)
	require.Len(t, byQty, 1)
	assert.Equal(t, 1, byQty[0].Index)
	assert.InDelta(t, 7.5, byQty[0].Quantity, 1e-9)
}

func TestIndexes(t *testing.T) {
	c := twoComponents(t)
	assert.Equal(t, []int{2}, c.SegmentsOf(0))
	assert.Equal(t, []int{1, 2, 3}, c.SegmentsOf(1))
	assert.Equal(t, []int{0, 1}, c.ComponentsIn(2))
	assert.Nil(t, c.ComponentsIn(99))
}

func TestSurplus(t *testing.T) {
	c := twoComponents(t)
	assert.InDelta(t, 50, c.Surplus(0, 110), 1e-9)
	assert.Equal(t, 0.0, c.Surplus(0, 100))
	assert.InDelta(t, 5*2.5, c.Surplus(0, 105), 1e-9)
}
