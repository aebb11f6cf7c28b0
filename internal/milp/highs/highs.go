//go:build highs

// Package highs lowers models onto the HiGHS solver through the
// gohighs bindings. Build with -tags highs; libhighs must be installed
// on the host.
package highs

import (
	"context"
	"math"

	gohighs "github.com/bartolsthoorn/gohighs/highs"

	"github.com/ArvsGastardo/VWT-DLSU/internal/milp"
)

type Solver struct{}

func New() *Solver { return &Solver{} }

func (s *Solver) Name() string { return "highs" }

func (s *Solver) Solve(ctx context.Context, m *milp.Model) (milp.Solution, error) {
	if ctx.Err() != nil {
		return milp.Solution{Status: milp.StatusNotSolved}, nil
	}

	n := m.NumVars()
	hm := gohighs.Model{
		ColCosts:    make([]float64, n),
		ColLower:    make([]float64, n),
		ColUpper:    make([]float64, n),
		Integrality: make([]gohighs.Integrality, n),
	}
	// HiGHS minimizes; flip costs for a maximize model and flip the
	// objective back below.
	sign := 1.0
	if m.Sense == milp.Maximize {
		sign = -1
	}
	for i := 0; i < n; i++ {
		hm.ColCosts[i] = sign * m.Cost(milp.Var(i))
		hm.ColUpper[i] = 1
		hm.Integrality[i] = gohighs.IntegralityInteger
	}
	for _, r := range m.Rows() {
		coefs := make([]float64, n)
		for _, t := range r.Terms {
			coefs[t.Var] += t.Coef
		}
		lo, hi := math.Inf(-1), math.Inf(1)
		switch r.Op {
		case milp.LE:
			hi = r.RHS
		case milp.GE:
			lo = r.RHS
		default:
			lo, hi = r.RHS, r.RHS
		}
		hm.AddDenseRow(lo, coefs, hi)
	}

	sol, err := hm.Solve(gohighs.WithOutput(false))
	if err != nil {
		return milp.Solution{Status: milp.StatusNotSolved}, err
	}
	out := milp.Solution{Status: milp.StatusNotSolved}
	switch {
	case sol.IsOptimal():
		out.Status = milp.StatusOptimal
		out.Values = append([]float64(nil), sol.ColValues...)
		out.Objective = sign * sol.Objective
	case sol.IsInfeasible():
		out.Status = milp.StatusInfeasible
	case sol.IsUnbounded():
		out.Status = milp.StatusUnbounded
	}
	return out, nil
}
