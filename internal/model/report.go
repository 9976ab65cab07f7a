package model

import (
	"errors"
	"math"
)

// Report is one resource's offer for an interval.
// Units:
// - MarginalPrice: $/MWh per MW (zero for must-run supply or unresponsive demand)
// - FixedPrice: $/MWh
// - Capacity: MW
type Report struct {
	Name          string  `json:"name,omitempty" yaml:"name"`
	MarginalPrice float64 `json:"marginal_price" yaml:"marginal_price"`
	FixedPrice    float64 `json:"fixed_price" yaml:"fixed_price"`
	Capacity      float64 `json:"capacity" yaml:"capacity"`
}

// Responsive reports whether the resource reacts to price.
func (r Report) Responsive() bool { return r.MarginalPrice != 0 }

func (r Report) Validate() error {
	if math.IsNaN(r.MarginalPrice) || math.IsNaN(r.FixedPrice) || math.IsNaN(r.Capacity) {
		return errors.New("report has NaN fields")
	}
	if r.Capacity < 0 {
		return errors.New("Capacity must be >= 0")
	}
	return nil
}

// Side distinguishes supply from demand resources.
type Side string

const (
	SideSupply Side = "SUPPLY"
	SideDemand Side = "DEMAND"
)

// Resource is a registered generator or load.
type Resource struct {
	Side   Side
	Report Report
}

func NewResource(side Side, r Report) (*Resource, error) {
	if side != SideSupply && side != SideDemand {
		return nil, errors.New("Side must be SUPPLY or DEMAND")
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &Resource{Side: side, Report: r}, nil
}
