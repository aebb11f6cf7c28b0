// Package bnb is the in-process solver backend: depth-first branch and
// bound over binary variables. It needs no external solver library,
// returns the same answer for the same model every run, and honors the
// context deadline by reporting a not-solved status instead of
// blocking.
package bnb

import (
	"context"

	"github.com/ArvsGastardo/VWT-DLSU/internal/milp"
)

const (
	eps        = 1e-6
	checkEvery = 1024
)

type Solver struct{}

func New() *Solver { return &Solver{} }

func (s *Solver) Name() string { return "bnb" }

// Solve minimizes (or maximizes, by negation) over all 0/1 assignments.
// A finite variable domain means the unbounded status can never arise
// here; exhausting the search without an incumbent means infeasible.
func (s *Solver) Solve(ctx context.Context, m *milp.Model) (milp.Solution, error) {
	if ctx.Err() != nil {
		return milp.Solution{Status: milp.StatusNotSolved}, nil
	}

	n := m.NumVars()
	sign := 1.0
	if m.Sense == milp.Maximize {
		sign = -1
	}

	st := &search{
		ctx:    ctx,
		rows:   m.Rows(),
		rmin:   make([]float64, m.NumRows()),
		rmax:   make([]float64, m.NumRows()),
		touch:  make([][]entry, n),
		costs:  make([]float64, n),
		assign: make([]int8, n),
		best:   make([]int8, n),
	}
	for i := 0; i < n; i++ {
		st.assign[i] = -1
		st.costs[i] = sign * m.Cost(milp.Var(i))
		if st.costs[i] < 0 {
			st.negFree += st.costs[i]
		}
	}
	for ri, r := range st.rows {
		for _, t := range r.Terms {
			if t.Coef < 0 {
				st.rmin[ri] += t.Coef
			} else {
				st.rmax[ri] += t.Coef
			}
			st.touch[t.Var] = append(st.touch[t.Var], entry{row: ri, coef: t.Coef})
		}
		if !rowOpen(r.Op, st.rmin[ri], st.rmax[ri], r.RHS) {
			return milp.Solution{Status: milp.StatusInfeasible}, nil
		}
	}

	st.dfs(0)

	switch {
	case st.stopped:
		return milp.Solution{Status: milp.StatusNotSolved}, nil
	case !st.found:
		return milp.Solution{Status: milp.StatusInfeasible}, nil
	}
	vals := make([]float64, n)
	for i, b := range st.best {
		vals[i] = float64(b)
	}
	return milp.Solution{Status: milp.StatusOptimal, Values: vals, Objective: sign * st.bestCost}, nil
}

type entry struct {
	row  int
	coef float64
}

type search struct {
	ctx  context.Context
	rows []milp.Row

	// achievable [min, max] of each row sum under the current fixing
	rmin, rmax []float64
	touch      [][]entry

	costs   []float64
	assign  []int8
	cur     float64
	negFree float64

	found    bool
	bestCost float64
	best     []int8

	nodes   int
	stopped bool
}

func (st *search) dfs(v int) {
	if st.stopped {
		return
	}
	st.nodes++
	if st.nodes%checkEvery == 0 && st.ctx.Err() != nil {
		st.stopped = true
		return
	}
	// Any completion costs at least cur+negFree; keep the first
	// incumbent on ties so results stay deterministic.
	if st.found && st.cur+st.negFree >= st.bestCost-eps {
		return
	}
	if v == len(st.assign) {
		st.found = true
		st.bestCost = st.cur
		copy(st.best, st.assign)
		return
	}

	first, second := int8(0), int8(1)
	if st.costs[v] < 0 {
		first, second = 1, 0
	}
	for _, b := range [2]int8{first, second} {
		if st.fix(v, b) {
			st.dfs(v + 1)
		}
		st.unfix(v, b)
		if st.stopped {
			return
		}
	}
}

// fix assigns v and updates row bounds. It returns false when some row
// touching v can no longer be satisfied; bounds are updated either way
// so unfix always reverses the full effect.
func (st *search) fix(v int, b int8) bool {
	st.assign[v] = b
	c := st.costs[v]
	if c < 0 {
		st.negFree -= c
	}
	if b == 1 {
		st.cur += c
	}
	ok := true
	for _, e := range st.touch[v] {
		if e.coef < 0 {
			st.rmin[e.row] -= e.coef
		} else {
			st.rmax[e.row] -= e.coef
		}
		if b == 1 {
			st.rmin[e.row] += e.coef
			st.rmax[e.row] += e.coef
		}
		r := st.rows[e.row]
		if !rowOpen(r.Op, st.rmin[e.row], st.rmax[e.row], r.RHS) {
			ok = false
		}
	}
	return ok
}

func (st *search) unfix(v int, b int8) {
	st.assign[v] = -1
	c := st.costs[v]
	if c < 0 {
		st.negFree += c
	}
	if b == 1 {
		st.cur -= c
	}
	for _, e := range st.touch[v] {
		if b == 1 {
			st.rmin[e.row] -= e.coef
			st.rmax[e.row] -= e.coef
		}
		if e.coef < 0 {
			st.rmin[e.row] += e.coef
		} else {
			st.rmax[e.row] += e.coef
		}
	}
}

func rowOpen(op milp.Op, min, max, rhs float64) bool {
	switch op {
	case milp.LE:
		return min <= rhs+eps
	case milp.GE:
		return max >= rhs-eps
	default:
		return min <= rhs+eps && max >= rhs-eps
	}
}
