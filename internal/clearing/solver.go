// Package clearing clears a single-period energy market for one balancing
// area. Resource reports are aggregated into curve parameters, and the
// clearing point is found with an active-set search over four structural
// equalities and four bound rows, falling back to deterministic heuristics
// when the search fails.
package clearing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"market-clearing/internal/linsys"
	"market-clearing/internal/model"
)

// Branch names the path that produced a solution.
type Branch string

const (
	BranchActiveSet     Branch = "active-set"
	BranchSupplyLimited Branch = "supply-limited"
	BranchDemandLimited Branch = "demand-limited"
	BranchMidpoint      Branch = "midpoint"
)

// Phase is a state of the per-interval clearing.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAggregating
	PhaseValidating
	PhaseIterating
	PhaseConverged
	PhaseFallback
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseAggregating:
		return "AGGREGATING"
	case PhaseValidating:
		return "VALIDATING"
	case PhaseIterating:
		return "ITERATING"
	case PhaseConverged:
		return "CONVERGED"
	case PhaseFallback:
		return "FALLBACK"
	case PhaseDone:
		return "DONE"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Solution is the cleared demand and supply of one interval. Schedule is the
// net export QS-QD.
type Solution struct {
	QD       float64 `json:"qd"`
	PD       float64 `json:"pd"`
	QS       float64 `json:"qs"`
	PS       float64 `json:"ps"`
	Schedule float64 `json:"schedule"`

	Result     model.ResultCode `json:"result"`
	Branch     Branch           `json:"branch,omitempty"`
	Iterations int              `json:"iterations"`
}

func (s *Solution) finish() { s.Schedule = s.QS - s.QD }

// State is an area's clearing state for one interval.
type State struct {
	Params   Parameters `json:"params"`
	Solution Solution   `json:"solution"`
}

// Step records one active-set iteration.
type Step struct {
	Iteration   int
	Active      ActiveSet
	Candidate   ActiveSet
	Removed     ActiveSet
	X           []float64
	Multipliers []float64
}

type Trace struct {
	Steps []Step
}

func (t *Trace) Dump(w io.Writer) error {
	if t == nil {
		return nil
	}
	for _, s := range t.Steps {
		_, err := fmt.Fprintf(w, "iteration %d: active=%v candidate=%v removed=%v x=%v multipliers=%v\n",
			s.Iteration, s.Active, s.Candidate, s.Removed, s.X, s.Multipliers)
		if err != nil {
			return err
		}
	}
	return nil
}

// Input is what one area reports for an interval.
type Input struct {
	Generators []model.Report
	Loads      []model.Report
	Exchange   model.Exchange
}

// Outcome is the result of clearing one interval.
type Outcome struct {
	State    State
	Phases   []Phase
	Trace    *Trace
	Warnings []error
	// Err is the failure that led to ERROR, a fallback or a skipped interval.
	Err error
}

func (o *Outcome) enter(p Phase) { o.Phases = append(o.Phases, p) }

// Solver runs the clearing algorithm. It owns a linear system and is not safe
// for concurrent use.
type Solver struct {
	cfg    Config
	sys    *linsys.System
	logger *slog.Logger
	dump   io.Writer

	// solveStep is solveWith unless replaced in tests.
	solveStep func(p Parameters, bounds [numBounds]bound, active ActiveSet) ([]float64, []float64, error)
}

type SolverOption func(*Solver)

func WithLogger(l *slog.Logger) SolverOption {
	return func(s *Solver) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDumpWriter sets where failure diagnostics go. Defaults to stderr.
func WithDumpWriter(w io.Writer) SolverOption {
	return func(s *Solver) { s.dump = w }
}

func NewSolver(cfg Config, opts ...SolverOption) *Solver {
	s := &Solver{
		cfg:    cfg,
		logger: slog.Default(),
		dump:   os.Stderr,
	}
	for _, o := range opts {
		o(s)
	}
	s.sys = linsys.New(linsys.WithLogger(s.logger))
	s.logger = s.logger.With("component", "clearing")
	s.solveStep = s.solveWith
	return s
}

func (s *Solver) Config() Config { return s.cfg }

// Clear aggregates the reports and clears the interval. prev is the last
// accepted solution, kept when the interval cannot be cleared.
//
// An ERROR result is returned as an error unless the failure policy ignores
// it.
func (s *Solver) Clear(in Input, prev Solution) (Outcome, error) {
	var out Outcome
	out.enter(PhaseIdle)
	out.enter(PhaseAggregating)
	p, warnings := Aggregate(in.Generators, in.Loads, s.logger)
	p.DQ, p.DP = in.Exchange.DQ, in.Exchange.DP
	out.Warnings = warnings
	return s.solve(p, prev, out)
}

// Solve clears already aggregated parameters.
func (s *Solver) Solve(p Parameters, prev Solution) (Outcome, error) {
	var out Outcome
	out.enter(PhaseIdle)
	return s.solve(p, prev, out)
}

func (s *Solver) solve(p Parameters, prev Solution, out Outcome) (Outcome, error) {
	keep := func(code model.ResultCode) State {
		sol := prev
		sol.Result = code
		sol.Branch = ""
		sol.Iterations = 0
		return State{Params: p, Solution: sol}
	}

	if p.Empty() {
		s.logger.Info("no resources, keeping previous schedule")
		out.State = keep(model.ResultNone)
		out.enter(PhaseDone)
		return out, nil
	}

	out.enter(PhaseValidating)
	p.ApplyDefaults(s.cfg)
	if err := p.Validate(); err != nil {
		s.logger.Error("clearing rejected", "err", err, "pmin", p.PMin, "pmax", p.PMax)
		out.Err = err
		out.State = keep(model.ResultError)
		s.dumpFailure(p, nil, err)
		out.enter(PhaseDone)
		if s.cfg.Policy.Has(model.PolicyIgnore) {
			return out, nil
		}
		return out, err
	}

	out.enter(PhaseIterating)
	sol, trace, err := s.SolveActiveSet(p)
	out.Trace = trace
	if err == nil {
		out.enter(PhaseConverged)
	} else {
		s.logger.Warn("active-set search failed, using fallback", "err", err)
		s.dumpFailure(p, trace, err)
		out.Err = err
		out.enter(PhaseFallback)
		var ferr error
		sol, ferr = Fallback(p)
		if ferr != nil {
			out.Err = errors.Join(err, ferr)
			out.State = keep(model.ResultNone)
			out.enter(PhaseDone)
			return out, nil
		}
		s.logger.Info("fallback clearing", "branch", sol.Branch)
	}
	out.State = State{Params: p, Solution: sol}
	out.enter(PhaseDone)

	level := slog.LevelDebug
	if s.cfg.Verbose {
		level = slog.LevelInfo
	}
	s.logger.Log(context.Background(), level, "cleared",
		"qs", sol.QS, "ps", sol.PS, "qd", sol.QD, "pd", sol.PD,
		"schedule", sol.Schedule, "flow", model.FlowFromSchedule(sol.Schedule), "result", sol.Result)
	return out, nil
}

// SolveActiveSet finds the clearing point of p. Parameters must already be
// validated. The search adds reached bounds, drops active bounds whose
// multiplier turned negative, and stops when the set is stable.
func (s *Solver) SolveActiveSet(p Parameters) (Solution, *Trace, error) {
	bounds := boundsOf(p)
	trace := &Trace{}
	seen := map[ActiveSet]bool{}
	var active ActiveSet

	for it := 1; it <= s.cfg.MaxIterations; it++ {
		seen[active] = true
		x, lambda, err := s.solveStep(p, bounds, active)
		step := Step{Iteration: it, Active: active, X: x, Multipliers: lambda}
		if err != nil {
			trace.Steps = append(trace.Steps, step)
			return Solution{}, trace, &NumericalError{Iteration: it, Err: err}
		}

		var candidate, removed ActiveSet
		for r, b := range bounds {
			if b.reached(x[r], s.cfg.Tolerance) {
				candidate = candidate.Add(r)
			}
		}
		for k, r := range active.Indices() {
			if lambda[k] < 0 {
				removed = removed.Add(r)
			}
		}
		candidate = candidate.Minus(removed)
		step.Candidate, step.Removed = candidate, removed
		trace.Steps = append(trace.Steps, step)

		if candidate == active {
			sol := Solution{
				QD: x[0], PD: x[1], QS: x[2], PS: x[3],
				Result:     model.ResultUnconstrained,
				Branch:     BranchActiveSet,
				Iterations: it,
			}
			if active.Len() > 0 {
				sol.Result = model.ResultConstrained
			}
			sol.finish()
			return sol, trace, nil
		}
		if seen[candidate] {
			return Solution{}, trace, &NumericalError{Iteration: it, Err: ErrCycle}
		}
		active = candidate
	}
	return Solution{}, trace, &NumericalError{Iteration: s.cfg.MaxIterations, Err: ErrIterationLimit}
}

// solveWith solves the structural equalities together with the active bounds
// and returns x = [qd pd qs ps] and one multiplier per active bound.
func (s *Solver) solveWith(p Parameters, bounds [numBounds]bound, active ActiveSet) ([]float64, []float64, error) {
	s.sys.Clear()
	rows := []struct {
		terms    []linsys.Term
		coupling bool
		rhs      float64
	}{
		{[]linsys.Term{linsys.T("qd", -p.D), linsys.T("pd", 1)}, false, p.PMax - p.D*p.QU},
		{[]linsys.Term{linsys.T("qs", -p.S), linsys.T("ps", 1)}, false, p.PMin - p.S*p.QW},
		{[]linsys.Term{linsys.T("qd", -1), linsys.T("qs", 1)}, true, p.DQ},
		{[]linsys.Term{linsys.T("pd", -1), linsys.T("ps", 1)}, true, p.DP},
	}
	rhs := make([]float64, 0, len(rows)+active.Len())
	for _, r := range rows {
		add := s.sys.AddEquality
		if r.coupling {
			add = s.sys.AddCoupling
		}
		if _, err := add(r.terms...); err != nil {
			return nil, nil, err
		}
		rhs = append(rhs, r.rhs)
	}
	for _, r := range active.Indices() {
		if _, err := s.sys.AddConstraint(bounds[r].term); err != nil {
			return nil, nil, err
		}
		rhs = append(rhs, bounds[r].rhs())
	}
	x, err := s.sys.Solve(rhs)
	if err != nil {
		return nil, nil, err
	}
	return x, s.sys.Multipliers(), nil
}

// Fallback clears p without iterating:
//   - unresponsive demand above total supply clears supply-limited at pmax
//   - total demand below marginal supply clears demand-limited at pmin
//   - otherwise unresponsive demand plus half the responsive demand clears
//     at the price midpoint
func Fallback(p Parameters) (Solution, error) {
	if !p.finite() || p.Empty() {
		return Solution{}, ErrNoSolution
	}
	var sol Solution
	switch {
	case p.QU > p.Supply():
		sol.QD = p.Supply()
		sol.PD = p.PMax
		sol.QS = sol.QD + p.DQ
		sol.PS = sol.PD + p.DP
		sol.Result = model.ResultConstrained
		sol.Branch = BranchSupplyLimited
	case p.Demand() < p.QG:
		sol.QS = p.Demand()
		sol.PS = p.PMin
		sol.QD = sol.QS - p.DQ
		sol.PD = sol.PS - p.DP
		sol.Result = model.ResultConstrained
		sol.Branch = BranchDemandLimited
	default:
		sol.QD = p.QU + p.QR/2
		sol.PD = (p.PMax + p.PMin - p.DP) / 2
		sol.QS = sol.QD + p.DQ
		sol.PS = sol.PD + p.DP
		sol.Result = model.ResultUnconstrained
		sol.Branch = BranchMidpoint
	}
	sol.finish()
	return sol, nil
}

func (s *Solver) dumpFailure(p Parameters, trace *Trace, err error) {
	if !s.cfg.Policy.Has(model.PolicyDump) && !s.cfg.Verbose {
		return
	}
	w := s.dump
	fmt.Fprintf(w, "clearing failure: %v\n", err)
	fmt.Fprintf(w, "d=%g, qu=%g, qr=%g, pmax=%g\n", p.D, p.QU, p.QR, p.PMax)
	fmt.Fprintf(w, "s=%g, qw=%g, qg=%g, pmin=%g\n", p.S, p.QW, p.QG, p.PMin)
	fmt.Fprintf(w, "dq=%g, dp=%g\n", p.DQ, p.DP)
	if trace != nil {
		if err := s.sys.Dump(w, "last system:"); err != nil {
			s.logger.Debug("system dump failed", "err", err)
		}
		if err := trace.Dump(w); err != nil {
			s.logger.Debug("trace dump failed", "err", err)
		}
	}
}
