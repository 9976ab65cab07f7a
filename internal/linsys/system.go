// Package linsys solves small dense linear systems built from named
// equalities and constraint rows coupled through Lagrange multipliers.
//
// Rows are collected as sparse term lists and the composed matrix
//
//	A = [[S, L],
//	     [C, 0]]
//
// is allocated once per solve. S holds the equalities, C the constraint rows
// and L the coupling of each constraint into the equalities that reference
// its variables.
package linsys

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrSingular = errors.New("singular system")
	ErrShape    = errors.New("system is not square")
	ErrRHS      = errors.New("right-hand side length mismatch")
	ErrEmptyRow = errors.New("row has no terms")
)

// UnknownVariableError is returned when a constraint names a variable that no
// equality introduced.
type UnknownVariableError struct {
	Name string
}

func (e *UnknownVariableError) Error() string {
	return fmt.Sprintf("unknown variable %q", e.Name)
}

// Term is one coefficient of a row.
type Term struct {
	Name string
	Coef float64
}

func T(name string, coef float64) Term { return Term{Name: name, Coef: coef} }

type entry struct {
	col  int
	coef float64
}

type equality struct {
	entries []entry
	// coupled equalities receive constraint multipliers.
	coupled bool
}

type constraint struct {
	entries []entry
	// coupling[j] is this constraint's column entry for equality j. Equalities
	// added after the constraint are not coupled.
	coupling []float64
}

type System struct {
	logger *slog.Logger

	names []string
	index map[string]int

	eqs  []equality
	cons []constraint

	rhs []float64
	x   []float64
}

type Option func(*System)

func WithLogger(l *slog.Logger) Option {
	return func(s *System) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(opts ...Option) *System {
	s := &System{
		logger: slog.Default(),
		index:  map[string]int{},
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("component", "linsys")
	return s
}

// Variables returns the unknowns in column order.
func (s *System) Variables() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

func (s *System) column(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	s.index[name] = len(s.names)
	s.names = append(s.names, name)
	return len(s.names) - 1
}

func (s *System) equalityRow(terms []Term, coupled bool) (int, error) {
	if len(terms) == 0 {
		return -1, ErrEmptyRow
	}
	row := equality{coupled: coupled}
	for _, t := range terms {
		row.entries = append(row.entries, entry{col: s.column(t.Name), coef: t.Coef})
	}
	s.eqs = append(s.eqs, row)
	s.x = nil
	return len(s.eqs) - 1, nil
}

// AddEquality appends an equality row, registering any new variable names.
// Constraints added later couple into it.
func (s *System) AddEquality(terms ...Term) (int, error) {
	return s.equalityRow(terms, true)
}

// AddCoupling appends an equality that constraint multipliers never enter.
func (s *System) AddCoupling(terms ...Term) (int, error) {
	return s.equalityRow(terms, false)
}

// AddConstraint appends a constraint row. Every variable must already be
// known. For each coupled equality j referencing a constrained variable v,
// L[j][k] accumulates S[j][v] times the constraint's coefficient on v.
func (s *System) AddConstraint(terms ...Term) (int, error) {
	if len(terms) == 0 {
		return -1, ErrEmptyRow
	}
	row := constraint{coupling: make([]float64, len(s.eqs))}
	for _, t := range terms {
		col, ok := s.index[t.Name]
		if !ok {
			return -1, &UnknownVariableError{Name: t.Name}
		}
		row.entries = append(row.entries, entry{col: col, coef: t.Coef})
	}
	for j, eq := range s.eqs {
		if !eq.coupled {
			continue
		}
		for _, e := range eq.entries {
			for _, c := range row.entries {
				if e.col == c.col {
					row.coupling[j] += e.coef * c.coef
				}
			}
		}
	}
	s.cons = append(s.cons, row)
	s.x = nil
	return len(s.cons) - 1, nil
}

// Dims returns the size of the composed matrix.
func (s *System) Dims() (rows, cols int) {
	return len(s.eqs) + len(s.cons), len(s.names) + len(s.cons)
}

// Matrix composes A. It returns nil for an empty system.
func (s *System) Matrix() *mat.Dense {
	r, c := s.Dims()
	if r == 0 || c == 0 {
		return nil
	}
	nv := len(s.names)
	a := mat.NewDense(r, c, nil)
	for i, eq := range s.eqs {
		for _, e := range eq.entries {
			a.Set(i, e.col, a.At(i, e.col)+e.coef)
		}
	}
	for k, con := range s.cons {
		i := len(s.eqs) + k
		for _, e := range con.entries {
			a.Set(i, e.col, a.At(i, e.col)+e.coef)
		}
		for j, v := range con.coupling {
			a.Set(j, nv+k, v)
		}
	}
	return a
}

// Solve solves A·z = rhs and returns the values of the named unknowns.
// rhs holds one value per equality followed by one per constraint.
func (s *System) Solve(rhs []float64) ([]float64, error) {
	r, c := s.Dims()
	if r == 0 || r != c {
		return nil, fmt.Errorf("%w: %dx%d", ErrShape, r, c)
	}
	if len(rhs) != r {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrRHS, len(rhs), r)
	}
	s.rhs = append(s.rhs[:0], rhs...)
	s.x = nil

	a := s.Matrix()
	var lu mat.LU
	lu.Factorize(a)
	cond := lu.Cond()
	if math.IsInf(cond, 1) || math.IsNaN(cond) || cond > mat.ConditionTolerance {
		return nil, fmt.Errorf("%w: condition number %g", ErrSingular, cond)
	}

	var z mat.VecDense
	if err := lu.SolveVecTo(&z, false, mat.NewVecDense(r, s.rhs)); err != nil {
		var ce mat.Condition
		if errors.Is(err, mat.ErrSingular) || errors.As(err, &ce) {
			return nil, fmt.Errorf("%w: %v", ErrSingular, err)
		}
		return nil, err
	}
	x := make([]float64, r)
	for i := range x {
		x[i] = z.AtVec(i)
		if math.IsNaN(x[i]) || math.IsInf(x[i], 0) {
			return nil, fmt.Errorf("%w: non-finite solution", ErrSingular)
		}
	}
	s.x = x
	s.logger.Debug("solved", "rows", r, "cond", cond)

	out := make([]float64, len(s.names))
	copy(out, x[:len(s.names)])
	return out, nil
}

// Multipliers returns the constraint multipliers of the last solve, one per
// constraint row.
func (s *System) Multipliers() []float64 {
	if s.x == nil {
		return nil
	}
	out := make([]float64, len(s.cons))
	copy(out, s.x[len(s.names):])
	return out
}

// Solution returns the full solution vector of the last solve.
func (s *System) Solution() []float64 {
	if s.x == nil {
		return nil
	}
	out := make([]float64, len(s.x))
	copy(out, s.x)
	return out
}

func (s *System) RHS() []float64 {
	out := make([]float64, len(s.rhs))
	copy(out, s.rhs)
	return out
}

// Clear drops every row and the last solution. Registered variable names keep
// their columns.
func (s *System) Clear() {
	s.eqs = s.eqs[:0]
	s.cons = s.cons[:0]
	s.rhs = s.rhs[:0]
	s.x = nil
}

// Dump writes A, b and x of the last solve.
func (s *System) Dump(w io.Writer, title string) error {
	if _, err := fmt.Fprintf(w, "%s\nvariables: %v\n", title, s.names); err != nil {
		return err
	}
	if a := s.Matrix(); a != nil {
		if _, err := fmt.Fprintf(w, "A = %v\n", mat.Formatted(a, mat.Prefix("    "), mat.Squeeze())); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "b = %v\nx = %v\n", s.rhs, s.x)
	return err
}
