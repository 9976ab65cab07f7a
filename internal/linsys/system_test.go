package linsys

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolveEqualities(t *testing.T) {
	s := New()
	_, err := s.AddEquality(T("x", 1), T("y", 1))
	require.NoError(t, err)
	_, err = s.AddEquality(T("x", 1), T("y", -1))
	require.NoError(t, err)

	x, err := s.Solve([]float64{3, 1})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 1}, x, 1e-12)
	assert.Equal(t, []string{"x", "y"}, s.Variables())
	assert.Empty(t, s.Multipliers())
}

func TestUnknownVariable(t *testing.T) {
	s := New()
	_, err := s.AddEquality(T("x", 1))
	require.NoError(t, err)
	_, err = s.AddConstraint(T("z", 1))
	var uv *UnknownVariableError
	require.True(t, errors.As(err, &uv))
	assert.Equal(t, "z", uv.Name)
}

func TestSingular(t *testing.T) {
	s := New()
	_, err := s.AddEquality(T("x", 1), T("y", 1))
	require.NoError(t, err)
	_, err = s.AddEquality(T("x", 2), T("y", 2))
	require.NoError(t, err)
	_, err = s.Solve([]float64{1, 2})
	assert.ErrorIs(t, err, ErrSingular)
	assert.Nil(t, s.Solution())
}

func TestShapeAndRHS(t *testing.T) {
	s := New()
	_, err := s.Solve(nil)
	assert.ErrorIs(t, err, ErrShape)

	_, err = s.AddEquality(T("x", 1), T("y", 1))
	require.NoError(t, err)
	_, err = s.Solve([]float64{1})
	assert.ErrorIs(t, err, ErrShape)

	_, err = s.AddEquality(T("x", 1))
	require.NoError(t, err)
	_, err = s.Solve([]float64{1})
	assert.ErrorIs(t, err, ErrRHS)

	_, err = s.AddEquality()
	assert.ErrorIs(t, err, ErrEmptyRow)
}

// market builds the clearing system for s=5, d=-5, pmin=20, pmax=80,
// qw=100, qu=120.
func market(t *testing.T) *System {
	t.Helper()
	sys := New()
	_, err := sys.AddEquality(T("qd", 5), T("pd", 1))
	require.NoError(t, err)
	_, err = sys.AddEquality(T("qs", -5), T("ps", 1))
	require.NoError(t, err)
	_, err = sys.AddCoupling(T("qd", -1), T("qs", 1))
	require.NoError(t, err)
	_, err = sys.AddCoupling(T("pd", -1), T("ps", 1))
	require.NoError(t, err)
	return sys
}

func TestCouplingBlock(t *testing.T) {
	sys := market(t)
	for _, term := range []Term{T("qd", 1), T("pd", 1), T("qs", 1), T("ps", -1)} {
		_, err := sys.AddConstraint(term)
		require.NoError(t, err)
	}
	r, c := sys.Dims()
	require.Equal(t, 8, r)
	require.Equal(t, 8, c)

	a := sys.Matrix()
	want := [][]float64{
		{5, 1, 0, 0, 5, 1, 0, 0},
		{0, 0, -5, 1, 0, 0, -5, -1},
		{-1, 0, 1, 0, 0, 0, 0, 0},
		{0, -1, 0, 1, 0, 0, 0, 0},
		{1, 0, 0, 0, 0, 0, 0, 0},
		{0, 1, 0, 0, 0, 0, 0, 0},
		{0, 0, 1, 0, 0, 0, 0, 0},
		{0, 0, 0, -1, 0, 0, 0, 0},
	}
	for i := range want {
		for j := range want[i] {
			assert.Equal(t, want[i][j], a.At(i, j), "A[%d][%d]", i, j)
		}
	}
}

func TestConstrainedSolve(t *testing.T) {
	sys := market(t)

	x, err := sys.Solve([]float64{680, -480, 0, 0})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{116, 100, 116, 100}, x, 1e-9)

	sys = market(t)
	_, err = sys.AddConstraint(T("pd", 1))
	require.NoError(t, err)
	x, err = sys.Solve([]float64{680, -480, 0, 0, 80})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{112, 80, 112, 80}, x, 1e-9)
	assert.InDeltaSlice(t, []float64{40}, sys.Multipliers(), 1e-9)
	assert.Len(t, sys.Solution(), 5)
	assert.Equal(t, []float64{680, -480, 0, 0, 80}, sys.RHS())
}

func TestClearKeepsVariables(t *testing.T) {
	sys := market(t)
	sys.Clear()
	r, _ := sys.Dims()
	assert.Equal(t, 0, r)
	assert.Equal(t, []string{"qd", "pd", "qs", "ps"}, sys.Variables())

	_, err := sys.AddConstraint(T("ps", 1))
	require.NoError(t, err)
	assert.Nil(t, sys.Multipliers())
}

func TestDump(t *testing.T) {
	sys := market(t)
	_, err := sys.Solve([]float64{680, -480, 0, 0})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, sys.Dump(&buf, "iteration 1"))
	out := buf.String()
	assert.Contains(t, out, "iteration 1")
	assert.Contains(t, out, "A = ")
	assert.Contains(t, out, "b = [680 -480 0 0]")
	assert.Contains(t, out, "x = ")
}
