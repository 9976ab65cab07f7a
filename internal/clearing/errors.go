package clearing

import (
	"errors"
	"fmt"
)

var (
	ErrIterationLimit = errors.New("active-set iteration limit reached")
	ErrCycle          = errors.New("active-set search is cycling")
	ErrNoSolution     = errors.New("no fallback solution")
	ErrUnknownArea    = errors.New("unknown area")
)

// Kind classifies clearing errors.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNumerical     Kind = "numerical"
	KindConfiguration Kind = "configuration"
	KindOther         Kind = "other"
)

// ValidationError reports aggregated parameters that cannot be cleared.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NumericalError reports a failed active-set search. Err is a linsys error,
// ErrIterationLimit or ErrCycle.
type NumericalError struct {
	Iteration int
	Err       error
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("iteration %d: %v", e.Iteration, e.Err)
}

func (e *NumericalError) Unwrap() error { return e.Err }

// ConfigurationError reports a resource excluded from aggregation.
type ConfigurationError struct {
	Side     string
	Index    int
	Resource string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	name := e.Resource
	if name == "" {
		name = fmt.Sprintf("#%d", e.Index)
	}
	return fmt.Sprintf("%s %s: %s", e.Side, name, e.Reason)
}

// KindOf classifies err.
func KindOf(err error) Kind {
	var (
		ve *ValidationError
		ne *NumericalError
		ce *ConfigurationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return KindValidation
	case errors.As(err, &ne):
		return KindNumerical
	case errors.As(err, &ce):
		return KindConfiguration
	default:
		return KindOther
	}
}
