package clearing

import (
	"market-clearing/internal/curve"
	"market-clearing/internal/model"
)

// Config is the immutable clearing configuration shared by every area.
type Config struct {
	// MaxIterations bounds the linear solves of one active-set search.
	MaxIterations int
	// Slopes used when a side has no responsive resources.
	DefaultSupplySlope float64
	DefaultDemandSlope float64
	// Tolerance is the relative slack when testing whether a bound is reached.
	Tolerance float64

	Policy  model.FailurePolicy
	Verbose bool

	Curve curve.Options
}

func DefaultConfig() Config {
	return Config{
		MaxIterations:      10,
		DefaultSupplySlope: 1e6,
		DefaultDemandSlope: -1e6,
		Tolerance:          1e-9,
		Policy:             model.PolicyNone,
		Curve:              curve.DefaultOptions(),
	}
}
