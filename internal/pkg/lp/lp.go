// Package lp holds a solver-agnostic linear program: bounded variables,
// linear rows and a linear minimization objective.
package lp

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Var is the column index of a variable within its Builder.
type Var int

// Term is coef × var.
type Term struct {
	Var  Var
	Coef float64
}

// T is shorthand for a Term literal.
func T(coef float64, v Var) Term {
	return Term{Var: v, Coef: coef}
}

// Sense is the relation of a row to its right-hand side.
type Sense int

const (
	LE Sense = iota
	GE
	EQ
)

func (s Sense) String() string {
	switch s {
	case LE:
		return "<="
	case GE:
		return ">="
	case EQ:
		return "="
	}
	return "?"
}

// Variable is a named column with bounds. Upper may be +Inf.
type Variable struct {
	Name  string
	Lower float64
	Upper float64
}

// Row is a named linear constraint.
type Row struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Builder accumulates variables, rows and objective terms. It is not safe for
// concurrent use.
type Builder struct {
	vars      []Variable
	rows      []Row
	objective map[Var]float64
	varNames  map[string]Var // keyed by LP file name
	rowNames  map[string]int // keyed by LP file name
	frozen    bool
}

// ErrFrozen is returned when a Builder is modified after Freeze.
var ErrFrozen = errors.New("lp: builder is frozen")

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		objective: make(map[Var]float64),
		varNames:  make(map[string]Var),
		rowNames:  make(map[string]int),
	}
}

// AddVar declares a column. Names must be unique, also once written to an LP
// file, and bounds must satisfy -Inf < lower <= upper.
func (b *Builder) AddVar(name string, lower, upper float64) (Var, error) {
	if b.frozen {
		return 0, ErrFrozen
	}
	if prev, exists := b.varNames[lpName(name)]; exists {
		if b.vars[prev].Name != name {
			return 0, fmt.Errorf("lp: variable %q collides with %q as %q", name, b.vars[prev].Name, lpName(name))
		}
		return 0, fmt.Errorf("lp: variable %q already declared", name)
	}
	if math.IsNaN(lower) || math.IsNaN(upper) || math.IsInf(lower, 0) {
		return 0, fmt.Errorf("lp: variable %q has invalid bounds [%v, %v]", name, lower, upper)
	}
	if upper < lower {
		return 0, fmt.Errorf("lp: variable %q has empty bounds [%v, %v]", name, lower, upper)
	}
	v := Var(len(b.vars))
	b.vars = append(b.vars, Variable{Name: name, Lower: lower, Upper: upper})
	b.varNames[lpName(name)] = v
	return v, nil
}

// AddSeries declares one column per timestep named prefix_t with shared lower
// bound and per-timestep upper bounds from upper(t).
func (b *Builder) AddSeries(prefix string, n int, lower float64, upper func(t int) float64) ([]Var, error) {
	vs := make([]Var, n)
	for t := 0; t < n; t++ {
		v, err := b.AddVar(fmt.Sprintf("%s_%d", prefix, t), lower, upper(t))
		if err != nil {
			return nil, err
		}
		vs[t] = v
	}
	return vs, nil
}

// AddRow declares a constraint. Terms on the same variable are merged.
func (b *Builder) AddRow(name string, terms []Term, sense Sense, rhs float64) (int, error) {
	if b.frozen {
		return 0, ErrFrozen
	}
	if prev, exists := b.rowNames[lpName(name)]; exists {
		if b.rows[prev].Name != name {
			return 0, fmt.Errorf("lp: row %q collides with %q as %q", name, b.rows[prev].Name, lpName(name))
		}
		return 0, fmt.Errorf("lp: row %q already declared", name)
	}
	if math.IsNaN(rhs) || math.IsInf(rhs, 0) {
		return 0, fmt.Errorf("lp: row %q has non-finite rhs %v", name, rhs)
	}
	merged, err := b.merge(terms)
	if err != nil {
		return 0, fmt.Errorf("lp: row %q: %w", name, err)
	}
	idx := len(b.rows)
	b.rows = append(b.rows, Row{Name: name, Terms: merged, Sense: sense, RHS: rhs})
	b.rowNames[lpName(name)] = idx
	return idx, nil
}

// AddObjective adds terms to the minimization objective.
func (b *Builder) AddObjective(terms ...Term) error {
	if b.frozen {
		return ErrFrozen
	}
	for _, t := range terms {
		if err := b.check(t); err != nil {
			return fmt.Errorf("lp: objective: %w", err)
		}
		b.objective[t.Var] += t.Coef
	}
	return nil
}

// NumVars is the number of declared columns.
func (b *Builder) NumVars() int { return len(b.vars) }

// NumRows is the number of declared rows.
func (b *Builder) NumRows() int { return len(b.rows) }

// Freeze returns the immutable Problem. The Builder rejects further changes.
func (b *Builder) Freeze() *Problem {
	b.frozen = true

	vars := make([]Variable, len(b.vars))
	copy(vars, b.vars)

	rows := make([]Row, len(b.rows))
	for i, r := range b.rows {
		terms := make([]Term, len(r.Terms))
		copy(terms, r.Terms)
		rows[i] = Row{Name: r.Name, Terms: terms, Sense: r.Sense, RHS: r.RHS}
	}

	obj := make([]float64, len(b.vars))
	for v, c := range b.objective {
		obj[v] = c
	}

	return &Problem{vars: vars, rows: rows, objective: obj}
}

func (b *Builder) check(t Term) error {
	if t.Var < 0 || int(t.Var) >= len(b.vars) {
		return fmt.Errorf("unknown variable %d", t.Var)
	}
	if math.IsNaN(t.Coef) || math.IsInf(t.Coef, 0) {
		return fmt.Errorf("non-finite coefficient %v on %q", t.Coef, b.vars[t.Var].Name)
	}
	return nil
}

func (b *Builder) merge(terms []Term) ([]Term, error) {
	acc := make(map[Var]float64, len(terms))
	for _, t := range terms {
		if err := b.check(t); err != nil {
			return nil, err
		}
		acc[t.Var] += t.Coef
	}
	merged := make([]Term, 0, len(acc))
	for v, c := range acc {
		if c != 0 {
			merged = append(merged, Term{Var: v, Coef: c})
		}
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Var < merged[j].Var })
	return merged, nil
}

// Problem is a frozen linear program: minimize Objective·x subject to Rows and
// variable bounds.
type Problem struct {
	vars      []Variable
	rows      []Row
	objective []float64
}

// NumVars is the number of columns.
func (p *Problem) NumVars() int { return len(p.vars) }

// NumRows is the number of rows.
func (p *Problem) NumRows() int { return len(p.rows) }

// Variable returns column v.
func (p *Problem) Variable(v Var) Variable { return p.vars[v] }

// Row returns row i. The returned Terms must not be modified.
func (p *Problem) Row(i int) Row { return p.rows[i] }

// Cost returns the objective coefficient of v.
func (p *Problem) Cost(v Var) float64 { return p.objective[v] }

// Objective evaluates the objective at x.
func (p *Problem) Objective(x []float64) float64 {
	var sum float64
	for i, c := range p.objective {
		sum += c * x[i]
	}
	return sum
}

// Activity evaluates the left-hand side of row i at x.
func (p *Problem) Activity(i int, x []float64) float64 {
	var sum float64
	for _, t := range p.rows[i].Terms {
		sum += t.Coef * x[t.Var]
	}
	return sum
}
