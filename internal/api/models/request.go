package models

import (
	"market-clearing/internal/clearing"
	"market-clearing/internal/coordination"
	"market-clearing/internal/curve"
	"market-clearing/internal/model"
)

// ClearRequest represents the request body for clearing one interval.
// Either resource reports or pre-aggregated parameters are required.
type ClearRequest struct {
	Area       string               `json:"area,omitempty"`
	Generators []model.Report       `json:"generators,omitempty"`
	Loads      []model.Report       `json:"loads,omitempty"`
	Exchange   model.Exchange       `json:"exchange,omitempty"`
	Parameters *clearing.Parameters `json:"parameters,omitempty"`
	Options    ClearOptions         `json:"options,omitempty"`
}

// ClearOptions contains optional clearing parameters
type ClearOptions struct {
	MaxIterations int    `json:"max_iterations,omitempty" binding:"omitempty,gte=1,lte=1000"`
	OnFailure     string `json:"on_failure,omitempty"` // NONE, IGNORE, DUMP or IGNORE|DUMP
	IncludeTrace  bool   `json:"include_trace,omitempty"`
}

// CurveRequest represents the request body for building a curve
type CurveRequest struct {
	Components []curve.Component `json:"components" binding:"required,min=1"`
	PriceFloor *float64          `json:"price_floor,omitempty"`
	PriceCap   *float64          `json:"price_cap,omitempty"`
	AtPrice    *float64          `json:"at_price,omitempty"`
	AtQuantity *float64          `json:"at_quantity,omitempty"`
}

// CoordinatorConfig selects how each interval's exchange is decided
type CoordinatorConfig struct {
	Name   string                    `json:"name,omitempty" binding:"omitempty,oneof=static window"`
	Window coordination.WindowParams `json:"window,omitempty"`
}

// ReplayRequest represents the request body for replaying a dataset
type ReplayRequest struct {
	Dataset     string            `json:"dataset" binding:"required"` // file name under DATA_DIR, without .json
	Area        string            `json:"area,omitempty"`             // default: every area in the dataset
	Coordinator CoordinatorConfig `json:"coordinator,omitempty"`
	OnFailure   string            `json:"on_failure,omitempty"`
	Options     ReplayOptions     `json:"options,omitempty"`
}

// ReplayOptions contains optional replay parameters
type ReplayOptions struct {
	LimitIntervals int  `json:"limit_intervals,omitempty"` // 0 = all
	IncludeLedger  bool `json:"include_ledger,omitempty"`  // default: false
}

// RankRequest represents a request to rank the areas of a dataset
type RankRequest struct {
	Dataset string `form:"dataset" binding:"required"`
	Limit   int    `form:"limit,omitempty"` // default: 10
}
