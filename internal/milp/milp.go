// Package milp defines a solver-agnostic model for binary linear
// programs and the adapter interface concrete backends implement.
package milp

import (
	"context"
	"fmt"
	"math"
)

const eps = 1e-6

// Var identifies a model variable by declaration order.
type Var int

// Term is one coefficient of a linear row.
type Term struct {
	Var  Var
	Coef float64
}

// T builds a term.
func T(v Var, c float64) Term { return Term{Var: v, Coef: c} }

// Op compares a row sum against its right-hand side.
type Op int

const (
	LE Op = iota
	GE
	EQ
)

func (o Op) String() string {
	switch o {
	case LE:
		return "<="
	case GE:
		return ">="
	case EQ:
		return "=="
	}
	return "?"
}

// Sense selects the objective direction.
type Sense int

const (
	Minimize Sense = iota
	Maximize
)

// Row is one linear constraint. The label is carried for diagnostics
// and never interpreted.
type Row struct {
	Label string
	Terms []Term
	Op    Op
	RHS   float64
}

func (r Row) String() string {
	return fmt.Sprintf("%s: %d terms %s %g", r.Label, len(r.Terms), r.Op, r.RHS)
}

// Satisfies reports whether the assignment in values meets the row.
func (r Row) Satisfies(values []float64) bool {
	var sum float64
	for _, t := range r.Terms {
		sum += t.Coef * values[t.Var]
	}
	switch r.Op {
	case LE:
		return sum <= r.RHS+eps
	case GE:
		return sum >= r.RHS-eps
	default:
		return math.Abs(sum-r.RHS) <= eps
	}
}

// Model is a binary linear program: every variable takes value 0 or 1.
type Model struct {
	Name  string
	Sense Sense

	names []string
	costs []float64
	rows  []Row
}

func NewModel(name string) *Model {
	return &Model{Name: name}
}

// Binary declares a new 0/1 variable with zero objective cost.
func (m *Model) Binary(name string) Var {
	m.names = append(m.names, name)
	m.costs = append(m.costs, 0)
	return Var(len(m.names) - 1)
}

// SetCost sets the objective coefficient of v.
func (m *Model) SetCost(v Var, c float64) { m.costs[v] = c }

// Cost returns the objective coefficient of v.
func (m *Model) Cost(v Var) float64 { return m.costs[v] }

// VarName returns the declared name of v.
func (m *Model) VarName(v Var) string { return m.names[v] }

// AddRow appends a labeled constraint.
func (m *Model) AddRow(label string, op Op, rhs float64, terms ...Term) {
	m.rows = append(m.rows, Row{Label: label, Terms: terms, Op: op, RHS: rhs})
}

func (m *Model) NumVars() int { return len(m.names) }
func (m *Model) NumRows() int { return len(m.rows) }

// Rows exposes the constraint list to solver backends.
func (m *Model) Rows() []Row { return m.rows }

// Status classifies a solve outcome.
type Status int

const (
	StatusNotSolved Status = iota
	StatusOptimal
	StatusInfeasible
	StatusUnbounded
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	}
	return "not_solved"
}

// Solution is what a backend hands back. Values is indexed by Var and
// only meaningful when Status is StatusOptimal.
type Solution struct {
	Status    Status
	Values    []float64
	Objective float64
}

// True reports whether v is set in the solution.
func (s Solution) True(v Var) bool {
	return int(v) < len(s.Values) && s.Values[v] > 0.5
}

// Solver is the boundary a MILP backend implements. Model outcomes,
// infeasibility and budget exhaustion included, travel in the solution
// status; the error is reserved for backend faults.
type Solver interface {
	Name() string
	Solve(ctx context.Context, m *Model) (Solution, error)
}
