package model

import "time"

// IntervalFile matches the JSON shape of an interval dataset.
//
// Example:
//
//	{
//	  "area": "north",
//	  "data": [ ... ]
//	}
type IntervalFile struct {
	Area string     `json:"area,omitempty"`
	Data []Interval `json:"data"`
}

// Interval is one scheduling interval for one balancing area.
type Interval struct {
	IntervalStartLocal time.Time `json:"interval_start_local"`
	IntervalStartUTC   time.Time `json:"interval_start_utc"`
	IntervalEndLocal   time.Time `json:"interval_end_local"`
	IntervalEndUTC     time.Time `json:"interval_end_utc"`

	Area string `json:"area"`

	Generators []Report `json:"generators"`
	Loads      []Report `json:"loads"`

	Exchange Exchange `json:"exchange"`
}

func (i Interval) Duration() time.Duration {
	// Prefer UTC fields because they're unambiguous and consistent.
	if !i.IntervalEndUTC.IsZero() && !i.IntervalStartUTC.IsZero() {
		return i.IntervalEndUTC.Sub(i.IntervalStartUTC)
	}
	return i.IntervalEndLocal.Sub(i.IntervalStartLocal)
}

func (i Interval) DurationHours() float64 {
	return i.Duration().Hours()
}

// Exchange is the cross-area coordination applied to a clearing.
// DQ is the scheduled net export (MW), DP the price subsidy ($/MWh).
type Exchange struct {
	DQ float64 `json:"dq" yaml:"dq"`
	DP float64 `json:"dp" yaml:"dp"`
}
