package siteplan

import (
	"context"
	"math/rand"
	"time"

	"github.com/ArvsGastardo/VWT-DLSU/internal/field"
	"github.com/ArvsGastardo/VWT-DLSU/internal/milp"
)

// Problem is one complete siting instance.
type Problem struct {
	Layout      field.Layout
	SensorRange float64
	CommRange   float64
	Costs       Costs
}

// Stats describe how a solve went, independent of its outcome.
type Stats struct {
	Backend       string
	Vars          int
	Rows          int
	RepairedAreas int
	Elapsed       time.Duration
}

// Solve runs the full pipeline: relation build, coverage repair, model
// assembly, one blocking solver call, interpretation. The seed drives
// zone assignment for layouts that carry none; zero picks a clock
// seed.
func Solve(ctx context.Context, sv milp.Solver, p Problem, seed int64) (Outcome, Stats, error) {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	rel := field.Build(p.Layout, p.SensorRange, p.CommRange, rng)
	before := rel.Coverage.Len()
	rel = field.Repair(rel, p.Layout)

	a := Assemble(rel)
	st := Stats{
		Backend:       sv.Name(),
		Vars:          a.Model.NumVars(),
		Rows:          a.Model.NumRows(),
		RepairedAreas: rel.Coverage.Len() - before,
	}
	start := time.Now()
	sol, err := sv.Solve(ctx, a.Model)
	st.Elapsed = time.Since(start)
	if err != nil {
		return Outcome{Status: milp.StatusNotSolved}, st, err
	}
	return Interpret(a, sol, p.Costs), st, nil
}
