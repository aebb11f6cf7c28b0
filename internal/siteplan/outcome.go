package siteplan

import "github.com/ArvsGastardo/VWT-DLSU/internal/milp"

// Costs carry reporting parameters through to plan outcomes. They are
// not part of the optimization model.
type Costs struct {
	CapexPerTurbine    float64
	OpexPerTurbineYear float64
	HorizonYears       int
}

// Outcome is the interpreted result of one solve. On any status other
// than optimal only Status is meaningful.
type Outcome struct {
	Status        milp.Status
	SelectedSites []int
	ActiveLinks   [][2]int
	TurbineCount  int
	LinkCount     int
	Capex         float64
	OpexAnnual    float64
	TotalCost     float64
}

// Interpret reads the raw assignment back into site and link sets and
// derives counts and cost roll-ups. For a non-optimal status it
// returns the status alone and never touches variable values.
func Interpret(a Assembly, sol milp.Solution, c Costs) Outcome {
	if sol.Status != milp.StatusOptimal {
		return Outcome{Status: sol.Status}
	}
	out := Outcome{Status: sol.Status}
	for j, x := range a.X {
		if sol.True(x) {
			out.SelectedSites = append(out.SelectedSites, j)
		}
	}
	for _, l := range a.Links {
		if sol.True(a.Y[l]) {
			out.ActiveLinks = append(out.ActiveLinks, l)
		}
	}
	out.TurbineCount = len(out.SelectedSites)
	out.LinkCount = len(out.ActiveLinks)
	out.Capex = float64(out.TurbineCount) * c.CapexPerTurbine
	out.OpexAnnual = float64(out.TurbineCount) * c.OpexPerTurbineYear
	out.TotalCost = out.Capex + float64(c.HorizonYears)*out.OpexAnnual
	return out
}
