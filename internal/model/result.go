package model

// ResultCode is the outcome of clearing one interval.
// Keep these values stable; they are intended for CSV output.
type ResultCode string

const (
	ResultNone          ResultCode = "NONE"
	ResultError         ResultCode = "ERROR"
	ResultConstrained   ResultCode = "CONSTRAINED"
	ResultUnconstrained ResultCode = "UNCONSTRAINED"
)

// Accepted reports whether the interval produced a usable clearing.
func (c ResultCode) Accepted() bool {
	return c == ResultConstrained || c == ResultUnconstrained
}

// Flow labels the direction of an area's net schedule.
type Flow string

const (
	FlowExport   Flow = "EXPORT"
	FlowBalanced Flow = "BALANCED"
	FlowImport   Flow = "IMPORT"
)

func FlowFromSchedule(schedule float64) Flow {
	switch {
	case schedule > 0:
		return FlowExport
	case schedule < 0:
		return FlowImport
	default:
		return FlowBalanced
	}
}
