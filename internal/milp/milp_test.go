package milp

import "testing"

func TestModelDeclaration(t *testing.T) {
	m := NewModel("demo")
	a := m.Binary("a")
	b := m.Binary("b")
	m.SetCost(a, 2)
	m.AddRow("pick_one", GE, 1, T(a, 1), T(b, 1))

	if m.NumVars() != 2 {
		t.Fatalf("vars: %d", m.NumVars())
	}
	if m.NumRows() != 1 {
		t.Fatalf("rows: %d", m.NumRows())
	}
	if m.VarName(b) != "b" {
		t.Fatalf("name: %s", m.VarName(b))
	}
	if m.Cost(a) != 2 || m.Cost(b) != 0 {
		t.Fatalf("costs: %g %g", m.Cost(a), m.Cost(b))
	}
	if m.Rows()[0].Label != "pick_one" {
		t.Fatalf("label: %s", m.Rows()[0].Label)
	}
}

func TestRowSatisfies(t *testing.T) {
	m := NewModel("demo")
	a := m.Binary("a")
	b := m.Binary("b")

	le := Row{Terms: []Term{T(a, 1), T(b, 1)}, Op: LE, RHS: 1}
	ge := Row{Terms: []Term{T(a, 1), T(b, 1)}, Op: GE, RHS: 1}
	eq := Row{Terms: []Term{T(a, 1), T(b, -1)}, Op: EQ, RHS: 0}

	if !le.Satisfies([]float64{1, 0}) || le.Satisfies([]float64{1, 1}) {
		t.Fatal("LE comparison wrong")
	}
	if ge.Satisfies([]float64{0, 0}) || !ge.Satisfies([]float64{0, 1}) {
		t.Fatal("GE comparison wrong")
	}
	if !eq.Satisfies([]float64{1, 1}) || eq.Satisfies([]float64{1, 0}) {
		t.Fatal("EQ comparison wrong")
	}
}

func TestStatusStrings(t *testing.T) {
	cases := map[Status]string{
		StatusNotSolved:  "not_solved",
		StatusOptimal:    "optimal",
		StatusInfeasible: "infeasible",
		StatusUnbounded:  "unbounded",
	}
	for st, want := range cases {
		if st.String() != want {
			t.Fatalf("%d: got %s want %s", st, st.String(), want)
		}
	}
}

func TestSolutionTrue(t *testing.T) {
	s := Solution{Status: StatusOptimal, Values: []float64{1, 0, 0.99}}
	if !s.True(0) || s.True(1) || !s.True(2) {
		t.Fatal("True misreads values")
	}
	if s.True(9) {
		t.Fatal("out-of-range var should read false")
	}
}
