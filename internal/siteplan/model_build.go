// Package siteplan turns field relations into a binary program for
// turbine site selection and reads solver output back into a plan.
//
// The model minimizes the number of selected sites subject to full
// water-area sensor coverage, at least one site per rain zone, and an
// active communication link count of exactly one less than the
// selected count. A link variable exists for every unordered site
// pair; line-of-sight rows cap each one by adjacency and activation
// rows tie it to the selection of both endpoints.
package siteplan

import (
	"fmt"

	"github.com/ArvsGastardo/VWT-DLSU/internal/field"
	"github.com/ArvsGastardo/VWT-DLSU/internal/milp"
)

// Assembly is an assembled model plus the variable maps needed to read
// a solution back.
type Assembly struct {
	Model *milp.Model
	X     []milp.Var
	Y     map[[2]int]milp.Var
	Links [][2]int
}

// Assemble lowers relations onto a binary model. Site variables are
// declared first, then link variables by ascending (j, k).
func Assemble(r field.Relations) Assembly {
	m := milp.NewModel("turbine-siting")
	a := Assembly{Model: m, Y: map[[2]int]milp.Var{}}

	a.X = make([]milp.Var, r.Sites)
	for j := 0; j < r.Sites; j++ {
		v := m.Binary(fmt.Sprintf("x_%d", j))
		m.SetCost(v, 1)
		a.X[j] = v
	}
	for j := 0; j < r.Sites; j++ {
		for k := j + 1; k < r.Sites; k++ {
			l := [2]int{j, k}
			a.Y[l] = m.Binary(fmt.Sprintf("y_%d_%d", j, k))
			a.Links = append(a.Links, l)
		}
	}

	// Active links number exactly one less than selected sites.
	treeTerms := make([]milp.Term, 0, len(a.Links)+r.Sites)
	for _, l := range a.Links {
		treeTerms = append(treeTerms, milp.T(a.Y[l], 1))
	}
	for _, x := range a.X {
		treeTerms = append(treeTerms, milp.T(x, -1))
	}
	m.AddRow("tree_size", milp.EQ, -1, treeTerms...)

	for i := 0; i < r.Areas; i++ {
		var terms []milp.Term
		for _, j := range r.Coverage.Row(i) {
			terms = append(terms, milp.T(a.X[j], 1))
		}
		m.AddRow(fmt.Sprintf("water_coverage_%d", i), milp.GE, 1, terms...)
	}
	for z := 0; z < r.Zones; z++ {
		var terms []milp.Term
		for _, j := range r.ZoneSites[z] {
			terms = append(terms, milp.T(a.X[j], 1))
		}
		m.AddRow(fmt.Sprintf("zone_coverage_%d", z), milp.GE, 1, terms...)
	}
	for _, l := range a.Links {
		j, k := l[0], l[1]
		m.AddRow(fmt.Sprintf("link_activation_%d_%d", j, k), milp.LE, 0,
			milp.T(a.Y[l], 2), milp.T(a.X[j], -1), milp.T(a.X[k], -1))
		var los float64
		if r.Adjacency.Has(j, k) {
			los = 1
		}
		m.AddRow(fmt.Sprintf("line_of_sight_%d_%d", j, k), milp.LE, los, milp.T(a.Y[l], 1))
	}
	// Degree rows only exist where a site has candidate partners. A
	// lone candidate has no links to take; the tree row alone decides
	// its selection.
	if r.Sites > 1 {
		for j := 0; j < r.Sites; j++ {
			terms := []milp.Term{milp.T(a.X[j], -1)}
			for _, l := range a.Links {
				if l[0] == j || l[1] == j {
					terms = append(terms, milp.T(a.Y[l], 1))
				}
			}
			m.AddRow(fmt.Sprintf("degree_%d", j), milp.GE, 0, terms...)
		}
	}
	return a
}
