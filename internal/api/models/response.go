package models

import (
	"time"

	"market-clearing/internal/clearing"
	"market-clearing/internal/coordination"
	"market-clearing/internal/model"
)

// ClearResponse represents the response from clearing one interval
type ClearResponse struct {
	ID         string              `json:"id"`
	Area       string              `json:"area,omitempty"`
	Status     string              `json:"status"`
	Result     model.ResultCode    `json:"result"`
	Branch     clearing.Branch     `json:"branch,omitempty"`
	Iterations int                 `json:"iterations"`
	QD         float64             `json:"qd"`
	PD         float64             `json:"pd"`
	QS         float64             `json:"qs"`
	PS         float64             `json:"ps"`
	Schedule   float64             `json:"schedule"`
	Flow       model.Flow          `json:"flow"`
	Parameters clearing.Parameters `json:"parameters"`
	Phases     []string            `json:"phases"`
	Dispatch   []clearing.Dispatch `json:"dispatch,omitempty"`
	Warnings   []string            `json:"warnings,omitempty"`
	Error      string              `json:"error,omitempty"`
	Trace      []TraceStep         `json:"trace,omitempty"`
}

// TraceStep is one active-set iteration
type TraceStep struct {
	Iteration   int       `json:"iteration"`
	Active      string    `json:"active"`
	Candidate   string    `json:"candidate"`
	Removed     string    `json:"removed"`
	X           []float64 `json:"x"`
	Multipliers []float64 `json:"multipliers,omitempty"`
}

// CurveResponse represents a built curve. Slopes are null on vertical
// segments.
type CurveResponse struct {
	P      []float64   `json:"p"`
	Q      []float64   `json:"q"`
	DP     []float64   `json:"dp"`
	DQ     []float64   `json:"dq"`
	R      [][]float64 `json:"r"`
	Slopes []*float64  `json:"slopes"`
	Total  float64     `json:"total"`

	QuantityAtPrice []float64 `json:"quantity_at_price,omitempty"`
	PriceAtQuantity []float64 `json:"price_at_quantity,omitempty"`
}

// ReplayResponse represents the response from a dataset replay
type ReplayResponse struct {
	ID      string        `json:"id"`
	Status  string        `json:"status"`
	Areas   []AreaSummary `json:"areas"`
	Ledger  []LedgerRow   `json:"ledger,omitempty"`
	Skipped []string      `json:"skipped,omitempty"`
}

// AreaSummary contains aggregated replay results for one area
type AreaSummary struct {
	Area         string                   `json:"area"`
	Window       TimeWindow               `json:"window"`
	Count        int                      `json:"count"`
	Accepted     int                      `json:"accepted"`
	Fallback     int                      `json:"fallback"`
	Results      map[model.ResultCode]int `json:"results"`
	MinPrice     float64                  `json:"min_price"`
	MaxPrice     float64                  `json:"max_price"`
	MeanPrice    float64                  `json:"mean_price"`
	P05Price     float64                  `json:"p05_price"`
	P95Price     float64                  `json:"p95_price"`
	SpreadP95P05 float64                  `json:"spread_p95_p05"`
	ExportMWh    float64                  `json:"export_mwh"`
	ImportMWh    float64                  `json:"import_mwh"`
}

// TimeWindow represents a time range
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// LedgerRow represents one interval in the replay ledger
type LedgerRow struct {
	Index              int              `json:"index"`
	IntervalStartLocal time.Time        `json:"interval_start_local"`
	IntervalEndLocal   time.Time        `json:"interval_end_local"`
	IntervalStartUTC   time.Time        `json:"interval_start_utc"`
	IntervalEndUTC     time.Time        `json:"interval_end_utc"`
	Area               string           `json:"area"`
	DQ                 float64          `json:"dq"`
	DP                 float64          `json:"dp"`
	QD                 float64          `json:"qd"`
	PD                 float64          `json:"pd"`
	QS                 float64          `json:"qs"`
	PS                 float64          `json:"ps"`
	Schedule           float64          `json:"schedule"`
	Flow               model.Flow       `json:"flow"`
	Result             model.ResultCode `json:"result"`
	Branch             clearing.Branch  `json:"branch,omitempty"`
	Iterations         int              `json:"iterations"`
	Error              string           `json:"error,omitempty"`
}

// RankResponse represents the response from ranking areas
type RankResponse struct {
	Rankings []Ranking `json:"rankings"`
}

// Ranking represents one ranked area
type Ranking struct {
	Rank         int     `json:"rank"`
	Area         string  `json:"area"`
	Count        int     `json:"count"`
	MeanPrice    float64 `json:"mean_price"`
	MinPrice     float64 `json:"min_price"`
	MaxPrice     float64 `json:"max_price"`
	SpreadP95P05 float64 `json:"spread_p95_p05"`
	ExportMWh    float64 `json:"export_mwh"`
	ImportMWh    float64 `json:"import_mwh"`
}

// AreaInfo represents information about an area preset
type AreaInfo struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	File  string    `json:"file"`
	Specs AreaSpecs `json:"specs"`
}

// AreaSpecs contains the registered capacity of an area preset
type AreaSpecs struct {
	Generators     int     `json:"generators"`
	Loads          int     `json:"loads"`
	SupplyCapacity float64 `json:"supply_capacity_mw"`
	DemandCapacity float64 `json:"demand_capacity_mw"`
}

// CoordinatorInfo represents information about a coordinator
type CoordinatorInfo = coordination.Info

// DatasetInfo represents information about an interval dataset
type DatasetInfo struct {
	ID        string   `json:"id"`
	File      string   `json:"file"`
	Intervals int      `json:"intervals"`
	Areas     []string `json:"areas"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
