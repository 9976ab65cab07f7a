// Package curve aggregates priced offer components into a piecewise-linear
// price/quantity curve with per-component attribution of every segment.
package curve

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidComponent = errors.New("invalid curve component")
	ErrMalformed        = errors.New("malformed curve")
)

// Component is one offer: a ray from (0, FixedPrice) to
// (Quantity, FixedPrice+VariablePrice). Quantity is in MW, prices in $/MWh.
type Component struct {
	Quantity      float64 `json:"quantity" yaml:"quantity"`
	FixedPrice    float64 `json:"fixed_price" yaml:"fixed_price"`
	VariablePrice float64 `json:"variable_price" yaml:"variable_price"`
}

func (c Component) Start() float64 { return c.FixedPrice }

func (c Component) End() float64 { return c.FixedPrice + c.VariablePrice }

// Slope is the marginal price increase per MW. A zero-quantity component has
// an infinite slope.
func (c Component) Slope() float64 {
	if c.Quantity == 0 {
		return math.Inf(1)
	}
	return c.VariablePrice / c.Quantity
}

func (c Component) Validate() error {
	if math.IsNaN(c.Quantity) || math.IsNaN(c.FixedPrice) || math.IsNaN(c.VariablePrice) {
		return fmt.Errorf("%w: NaN field", ErrInvalidComponent)
	}
	if c.Quantity < 0 {
		return fmt.Errorf("%w: quantity must be >= 0", ErrInvalidComponent)
	}
	if c.VariablePrice < 0 {
		return fmt.Errorf("%w: variable price must be >= 0", ErrInvalidComponent)
	}
	return nil
}

// Options controls the price range and rounding of a built curve.
// Precisions are decimal places.
type Options struct {
	PriceFloor        float64
	PriceCap          float64
	PricePrecision    int32
	QuantityPrecision int32
}

func DefaultOptions() Options {
	return Options{
		PriceFloor:        0,
		PriceCap:          1000,
		PricePrecision:    4,
		QuantityPrecision: 4,
	}
}

// CurveError reports the first segment that breaks the curve invariants.
type CurveError struct {
	Segment int
	Reason  string
}

func (e *CurveError) Error() string {
	return fmt.Sprintf("curve segment %d: %s", e.Segment, e.Reason)
}

func (e *CurveError) Unwrap() error { return ErrMalformed }
