package lp

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
)

func TestAddVar(t *testing.T) {
	b := NewBuilder()
	x, err := b.AddVar("x", 0, 10)
	assert.NilError(t, err)
	y, err := b.AddVar("y", 0, math.Inf(1))
	assert.NilError(t, err)

	assert.Equal(t, x, Var(0))
	assert.Equal(t, y, Var(1))
	assert.Equal(t, b.NumVars(), 2)
}

func TestRejectDuplicateVar(t *testing.T) {
	b := NewBuilder()
	_, err := b.AddVar("x", 0, 1)
	assert.NilError(t, err)
	_, err = b.AddVar("x", 0, 1)
	assert.Error(t, err, `lp: variable "x" already declared`)
}

func TestRejectBadBounds(t *testing.T) {
	b := NewBuilder()
	_, err := b.AddVar("x", 2, 1)
	assert.ErrorContains(t, err, "empty bounds")
	_, err = b.AddVar("y", math.Inf(-1), 1)
	assert.ErrorContains(t, err, "invalid bounds")
	_, err = b.AddVar("z", 0, math.NaN())
	assert.ErrorContains(t, err, "invalid bounds")
}

func TestAddSeries(t *testing.T) {
	b := NewBuilder()
	vs, err := b.AddSeries("flow", 3, 0, func(t int) float64 { return float64(t) })
	assert.NilError(t, err)
	assert.Equal(t, len(vs), 3)

	p := b.Freeze()
	assert.Equal(t, p.Variable(vs[2]).Name, "flow_2")
	assert.Equal(t, p.Variable(vs[2]).Upper, 2.0)
}

func TestAddRowMergesTerms(t *testing.T) {
	b := NewBuilder()
	x, _ := b.AddVar("x", 0, 1)
	y, _ := b.AddVar("y", 0, 1)

	_, err := b.AddRow("r", []Term{T(1, y), T(2, x), T(3, x), T(-1, y)}, LE, 4)
	assert.NilError(t, err)

	p := b.Freeze()
	r := p.Row(0)
	assert.Equal(t, len(r.Terms), 1)
	assert.Equal(t, r.Terms[0], Term{Var: x, Coef: 5})
}

func TestAddRowRejectsUnknownVar(t *testing.T) {
	b := NewBuilder()
	_, err := b.AddRow("r", []Term{T(1, Var(3))}, EQ, 0)
	assert.ErrorContains(t, err, "unknown variable")
}

func TestRejectDuplicateRow(t *testing.T) {
	b := NewBuilder()
	x, _ := b.AddVar("x", 0, 1)
	_, err := b.AddRow("r", []Term{T(1, x)}, EQ, 0)
	assert.NilError(t, err)
	_, err = b.AddRow("r", []Term{T(1, x)}, EQ, 0)
	assert.Error(t, err, `lp: row "r" already declared`)
}

func TestRejectNamesCollidingInLPFile(t *testing.T) {
	b := NewBuilder()
	_, err := b.AddSeries("flow_li-ion", 1, 0, func(int) float64 { return 1 })
	assert.NilError(t, err)
	_, err = b.AddSeries("flow_li_ion", 1, 0, func(int) float64 { return 1 })
	assert.Error(t, err, `lp: variable "flow_li_ion_0" collides with "flow_li-ion_0" as "flow_li_ion_0"`)
	assert.Equal(t, b.NumVars(), 1)

	x := Var(0)
	_, err = b.AddRow("balance:bus a", []Term{T(1, x)}, EQ, 0)
	assert.NilError(t, err)
	_, err = b.AddRow("balance_bus-a", []Term{T(1, x)}, EQ, 0)
	assert.ErrorContains(t, err, "collides with")
	assert.Equal(t, b.NumRows(), 1)
}

func TestFreezeRejectsChanges(t *testing.T) {
	b := NewBuilder()
	x, _ := b.AddVar("x", 0, 1)
	b.Freeze()

	_, err := b.AddVar("y", 0, 1)
	assert.Equal(t, err, ErrFrozen)
	_, err = b.AddRow("r", []Term{T(1, x)}, EQ, 0)
	assert.Equal(t, err, ErrFrozen)
	assert.Equal(t, b.AddObjective(T(1, x)), ErrFrozen)
}

func TestObjectiveAndActivity(t *testing.T) {
	b := NewBuilder()
	x, _ := b.AddVar("x", 0, 1)
	y, _ := b.AddVar("y", 0, 1)
	assert.NilError(t, b.AddObjective(T(2, x), T(3, y), T(1, x)))
	_, err := b.AddRow("r", []Term{T(1, x), T(-1, y)}, GE, 0)
	assert.NilError(t, err)

	p := b.Freeze()
	assert.Equal(t, p.Cost(x), 3.0)
	assert.Equal(t, p.Objective([]float64{1, 2}), 9.0)
	assert.Equal(t, p.Activity(0, []float64{1, 2}), -1.0)
}

func TestWriteLP(t *testing.T) {
	b := NewBuilder()
	x, _ := b.AddVar("flow pv_0", 0, 5)
	y, _ := b.AddVar("capacity", 0, math.Inf(1))
	assert.NilError(t, b.AddObjective(T(10, y), T(1, x)))
	_, err := b.AddRow("balance_elec_0", []Term{T(1, x)}, EQ, 4)
	assert.NilError(t, err)
	_, err = b.AddRow("volatile_pv_0", []Term{T(1, x), T(-0.5, y)}, LE, 0)
	assert.NilError(t, err)

	var buf bytes.Buffer
	assert.NilError(t, b.Freeze().WriteLP(&buf))
	out := buf.String()

	assert.Assert(t, strings.HasPrefix(out, "\\* capacity expansion model *\\"))
	assert.Assert(t, strings.Contains(out, "+10 capacity"))
	assert.Assert(t, strings.Contains(out, "balance_elec_0:\n+1 flow_pv_0 = 4"))
	assert.Assert(t, strings.Contains(out, "-0.5 capacity <= 0"))
	assert.Assert(t, strings.Contains(out, "0 <= flow_pv_0 <= 5"))
	assert.Assert(t, strings.Contains(out, "0 <= capacity <= +inf"))
	assert.Assert(t, strings.HasSuffix(out, "end\n"))
}
